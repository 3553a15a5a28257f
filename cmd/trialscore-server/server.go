package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/trialscore/trialscore/internal/config"
	"github.com/trialscore/trialscore/internal/domain/identity"
	"github.com/trialscore/trialscore/internal/domain/reconcile"
	"github.com/trialscore/trialscore/internal/domain/trial"
	"github.com/trialscore/trialscore/internal/platform/auth"
	"github.com/trialscore/trialscore/internal/platform/db"
	"github.com/trialscore/trialscore/internal/platform/middleware"
)

// stores holds the persistence layer the HTTP server is built on.
type stores struct {
	users   identity.UserRepository
	centers identity.CenterRepository
	tests   trial.Repository
	scores  reconcile.Repository
	tx      db.Transactor
	audit   middleware.AuditRecorder
	pinger  db.Pinger
	stats   func() *db.PoolStats
}

// newServer wires services, handlers and middleware onto a fresh echo
// instance.
func newServer(cfg *config.Config, logger zerolog.Logger, st stores) (*echo.Echo, error) {
	policy, err := reconcile.NewPolicy(cfg.ScoreTolerance, cfg.AgreementRule, cfg.DisagreementRule)
	if err != nil {
		return nil, err
	}

	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	tokens := auth.NewTokenService([]byte(cfg.SecretKey), cfg.TokenTTL)

	authn := identity.NewAuthenticator(st.users, hasher, tokens)
	identitySvc := identity.NewService(st.users, st.centers, hasher)
	trialSvc := trial.NewService(st.tests)
	engine := reconcile.NewEngine(st.tx, st.tests, st.scores, policy, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)
	e.Validator = middleware.NewRequestValidator()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	if st.pinger != nil {
		e.GET("/health", db.HealthHandler(st.pinger, st.stats))
	}

	api := e.Group("",
		auth.RequireSession(auth.NewSessionValidator(tokens, authn), auth.AuthSkipper),
		middleware.Audit(logger, st.audit),
	)

	identity.NewHandler(authn, identitySvc).RegisterRoutes(api)
	trial.NewHandler(trialSvc).RegisterRoutes(api)
	reconcile.NewHandler(engine).RegisterRoutes(api)

	logger.Info().
		Float64("tolerance", policy.Tolerance).
		Str("agreement", string(policy.Agreement)).
		Str("disagreement", string(policy.Disagreement)).
		Msg("score reconciliation policy")

	return e, nil
}
