package identity

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/telehealth/internal/platform/apperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/me", h.Me)
	api.PATCH("/me/patient-profile", h.UpdatePatientProfile, RequireRole(RolePatient))
	api.PATCH("/me/doctor-profile", h.UpdateDoctorProfile, RequireRole(RoleDoctor))
	api.GET("/doctors", h.ListDoctors)
}

// Me returns the resolved user, or JSON null for anonymous callers.
func (h *Handler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, FromContext(c.Request().Context()))
}

func (h *Handler) UpdatePatientProfile(c echo.Context) error {
	var upd PatientProfileUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	p, err := h.svc.UpdatePatientProfile(ctx, CallerFromContext(ctx), upd)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateDoctorProfile(c echo.Context) error {
	var upd DoctorProfileUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	d, err := h.svc.UpdateDoctorProfile(ctx, CallerFromContext(ctx), upd)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	f := DirectoryFilter{
		Specialty:     c.QueryParam("specialty"),
		AvailableOnly: c.QueryParam("available") == "true",
	}
	return c.JSON(http.StatusOK, h.svc.Doctors(c.Request().Context(), f))
}
