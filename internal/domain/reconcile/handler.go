package reconcile

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trialscore/trialscore/internal/domain/trial"
	"github.com/trialscore/trialscore/internal/platform/apperr"
	"github.com/trialscore/trialscore/internal/platform/auth"
	"github.com/trialscore/trialscore/internal/platform/middleware"
	"github.com/trialscore/trialscore/pkg/pagination"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readers := api.Group("/readers", auth.RequireRole(auth.RoleCentralReader))
	readers.POST("/submit-score", h.SubmitScore)
	readers.GET("/pending", h.Pending)

	api.GET("/tests/:id", h.GetTest, auth.RequireRole(auth.Roles...))

	admin := api.Group("/admin", auth.RequireRole(auth.RoleSuperAdmin))
	admin.POST("/finalize/:id", h.Finalize)
}

func parseTestID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid test id")
	}
	return id, nil
}

type outcomeResponse struct {
	Message string `json:"message"`
	*Outcome
}

func (h *Handler) SubmitScore(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	var in SubmitScoreInput
	if err := middleware.Bind(c, &in); err != nil {
		return err
	}
	out, err := h.engine.SubmitScore(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, outcomeResponse{Message: "Score submitted successfully", Outcome: out})
}

func (h *Handler) Pending(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.engine.PendingForReader(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*trial.Test{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetTest(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	testID, err := parseTestID(c)
	if err != nil {
		return err
	}
	d, err := h.engine.Detail(c.Request().Context(), id, testID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Finalize(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	testID, err := parseTestID(c)
	if err != nil {
		return err
	}
	var in FinalizeInput
	if err := middleware.Bind(c, &in); err != nil {
		return err
	}
	if in.FinalScore == nil {
		return apperr.Validation("final_score is required")
	}
	out, err := h.engine.Finalize(c.Request().Context(), id, testID, *in.FinalScore)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, outcomeResponse{Message: "Test finalized", Outcome: out})
}
