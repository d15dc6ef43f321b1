package prescription

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
	api.GET("/prescriptions", h.List)
	api.POST("/prescriptions", h.Create, identity.RequireRole(identity.RoleDoctor))
	api.GET("/prescriptions/:id", h.Get)
	api.POST("/prescriptions/:id/discontinue", h.Discontinue, identity.RequireRole(identity.RoleDoctor))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// List serves the caller's prescriptions: a patient's own, or those a
// doctor issued. Query: active=true, status=<status>.
func (h *Handler) List(c echo.Context) error {
	f := Filter{ActiveOnly: c.QueryParam("active") == "true"}
	if st := c.QueryParam("status"); st != "" {
		f.Status = Status(st)
		if !f.Status.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
		}
	}
	ctx := c.Request().Context()
	caller := identity.CallerFromContext(ctx)
	if caller.IsDoctor() {
		return c.JSON(http.StatusOK, h.svc.ListForDoctor(ctx, caller, f))
	}
	return c.JSON(http.StatusOK, h.svc.ListForPatient(ctx, caller, f))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.Get(ctx, identity.CallerFromContext(ctx), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	p, err := h.svc.Create(ctx, identity.CallerFromContext(ctx), in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Discontinue(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.Discontinue(ctx, identity.CallerFromContext(ctx), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}
