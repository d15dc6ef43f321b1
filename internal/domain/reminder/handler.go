package reminder

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/telehealth/internal/domain/identity"
	"github.com/ehr/telehealth/internal/platform/apperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reminders", identity.RequireRole(identity.RolePatient))
	g.GET("", h.List)
	g.POST("", h.Create)
	g.POST("/:id/taken", h.MarkTaken)
	g.POST("/:id/snooze", h.Snooze)
	g.PATCH("/:id/status", h.SetStatus)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// List query: active=true, dueToday=true, status=<status>, type=<type>.
func (h *Handler) List(c echo.Context) error {
	f := Filter{
		ActiveOnly: c.QueryParam("active") == "true",
		DueToday:   c.QueryParam("dueToday") == "true",
		Status:     Status(c.QueryParam("status")),
		Type:       Type(c.QueryParam("type")),
	}
	if f.Status != "" && !f.Status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
	}
	if f.Type != "" && !f.Type.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown type")
	}
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, h.svc.List(ctx, identity.CallerFromContext(ctx), f))
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	rem, err := h.svc.Create(ctx, identity.CallerFromContext(ctx), in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, rem)
}

type takenRequest struct {
	Taken *bool   `json:"taken"`
	Notes *string `json:"notes"`
}

func (h *Handler) MarkTaken(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req takenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	taken := req.Taken == nil || *req.Taken
	ctx := c.Request().Context()
	rem, err := h.svc.MarkTaken(ctx, identity.CallerFromContext(ctx), id, taken, req.Notes)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, rem)
}

type snoozeRequest struct {
	Minutes int `json:"minutes"`
}

func (h *Handler) Snooze(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req snoozeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	rem, err := h.svc.Snooze(ctx, identity.CallerFromContext(ctx), id, req.Minutes)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, rem)
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	rem, err := h.svc.SetStatus(ctx, identity.CallerFromContext(ctx), id, req.Status)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, rem)
}
