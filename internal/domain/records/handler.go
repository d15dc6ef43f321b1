package records

import (
	"net/http"
	"strconv"

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
	patient := identity.RequireRole(identity.RolePatient)
	api.GET("/records", h.All, patient)
	api.GET("/records/recent", h.Recent, patient)
	api.GET("/records/type/:type", h.ByType, patient)
	api.GET("/symptoms", h.ListSymptoms, patient)
	api.POST("/symptoms", h.ReportSymptom, patient)
	api.POST("/symptoms/:id/resolve", h.ResolveSymptom, patient)
	api.GET("/doctor/patients/:id/records", h.ForDoctor, identity.RequireRole(identity.RoleDoctor))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) All(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, h.svc.PatientRecords(ctx, identity.CallerFromContext(ctx)))
}

func (h *Handler) Recent(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a number")
		}
		limit = n
	}
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, h.svc.RecentActivity(ctx, identity.CallerFromContext(ctx), limit))
}

func (h *Handler) ByType(c echo.Context) error {
	ctx := c.Request().Context()
	out, err := h.svc.RecordsByType(ctx, identity.CallerFromContext(ctx), RecordType(c.Param("type")))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ForDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	out, err := h.svc.PatientRecordsForDoctor(ctx, identity.CallerFromContext(ctx), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ListSymptoms(c echo.Context) error {
	ctx := c.Request().Context()
	active := c.QueryParam("active") == "true"
	return c.JSON(http.StatusOK, h.svc.ListSymptoms(ctx, identity.CallerFromContext(ctx), active))
}

func (h *Handler) ReportSymptom(c echo.Context) error {
	var in SymptomInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	sym, err := h.svc.ReportSymptom(ctx, identity.CallerFromContext(ctx), in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, sym)
}

func (h *Handler) ResolveSymptom(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	sym, err := h.svc.ResolveSymptom(ctx, identity.CallerFromContext(ctx), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, sym)
}
