package trial

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
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	agents := api.Group("/agents", auth.RequireRole(auth.RoleAgent))
	agents.POST("/submit-test", h.SubmitTest)
	agents.GET("/tests", h.ListOwnTests)

	api.GET("/tests", h.ListTests, auth.RequireRole(auth.RoleCentralReader, auth.RoleSuperAdmin))
}

type submitTestResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
	TestID  string `json:"test_id"`
}

func (h *Handler) SubmitTest(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	var in SubmitTestInput
	if err := middleware.Bind(c, &in); err != nil {
		return err
	}
	t, err := h.svc.SubmitTest(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, submitTestResponse{
		Message: "Test submitted successfully",
		ID:      t.ID,
		TestID:  t.TestID,
	})
}

func (h *Handler) ListOwnTests(c echo.Context) error {
	return h.list(c, Filter{Status: Status(c.QueryParam("status"))})
}

func (h *Handler) ListTests(c echo.Context) error {
	f := Filter{
		Status:     Status(c.QueryParam("status")),
		CenterCode: c.QueryParam("center_code"),
	}
	if v := c.QueryParam("agent_id"); v != "" {
		agentID, err := strconv.ParseInt(v, 10, 64)
		if err != nil || agentID <= 0 {
			return apperr.Validation("agent_id must be a positive integer")
		}
		f.AgentID = agentID
	}
	return h.list(c, f)
}

func (h *Handler) list(c echo.Context, f Filter) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTests(c.Request().Context(), id, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Test{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
