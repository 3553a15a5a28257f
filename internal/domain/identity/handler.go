package identity

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trialscore/trialscore/internal/platform/apperr"
	"github.com/trialscore/trialscore/internal/platform/auth"
	"github.com/trialscore/trialscore/internal/platform/middleware"
	"github.com/trialscore/trialscore/pkg/pagination"
)

type Handler struct {
	authn *Authenticator
	svc   *Service
}

func NewHandler(authn *Authenticator, svc *Service) *Handler {
	return &Handler{authn: authn, svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Public; RequireSession skips it.
	api.POST("/auth/login", h.Login)
	api.GET("/auth/me", h.Me)

	admin := api.Group("/admin", auth.RequireRole(auth.RoleSuperAdmin))
	admin.POST("/centers", h.CreateCenter)
	admin.GET("/centers", h.ListCenters)
	admin.POST("/users", h.CreateUser)
	admin.GET("/users", h.ListUsers)
	admin.GET("/users/:id", h.GetUser)
	admin.PUT("/users/:id/password", h.SetPassword)
	admin.PUT("/users/:id/role", h.SetRole)
}

func parseUserID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid user id")
	}
	return id, nil
}

// -- Auth --

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return middleware.BindError(err)
	}
	if req.Username == "" || req.Password == "" {
		return apperr.Authentication(IncorrectCredentialsDetail)
	}
	resp, err := h.authn.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Me(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, id)
}

// -- Centers --

func (h *Handler) CreateCenter(c echo.Context) error {
	var in CreateCenterInput
	if err := middleware.Bind(c, &in); err != nil {
		return err
	}
	center, err := h.svc.CreateCenter(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, center)
}

func (h *Handler) ListCenters(c echo.Context) error {
	items, err := h.svc.ListCenters(c.Request().Context())
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Center{}
	}
	return c.JSON(http.StatusOK, items)
}

// -- Users --

func (h *Handler) CreateUser(c echo.Context) error {
	var in CreateUserInput
	if err := middleware.Bind(c, &in); err != nil {
		return err
	}
	u, err := h.svc.CreateUser(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u.View())
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := parseUserID(c)
	if err != nil {
		return err
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u.View())
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg))
}

type setPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

func (h *Handler) SetPassword(c echo.Context) error {
	id, err := parseUserID(c)
	if err != nil {
		return err
	}
	var req setPasswordRequest
	if err := middleware.Bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.SetPassword(c.Request().Context(), id, req.Password); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=agent central_reader super_admin"`
}

func (h *Handler) SetRole(c echo.Context) error {
	id, err := parseUserID(c)
	if err != nil {
		return err
	}
	var req setRoleRequest
	if err := middleware.Bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.SetRole(c.Request().Context(), id, req.Role); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
