package consultation

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
	api.GET("/consultations", h.List)
	api.GET("/consultations/overview", h.Overview)
	api.GET("/consultations/:id", h.Get)
	api.POST("/consultations", h.Book)
	api.PATCH("/consultations/:id/notes", h.UpdateNotes)
	api.PATCH("/consultations/:id/status", h.UpdateStatus)
	api.POST("/consultations/:id/join", h.Join)
	api.GET("/doctor/patients", h.DoctorPatients)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) List(c echo.Context) error {
	w := Window(c.QueryParam("window"))
	if w == "" {
		w = WindowAll
	}
	if !w.Valid() {
		return apperr.ToHTTP(apperr.Invalid("window must be one of all, upcoming, past, today, pending"))
	}
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, h.svc.List(ctx, identity.CallerFromContext(ctx), w))
}

func (h *Handler) Overview(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, h.svc.Overview(ctx, identity.CallerFromContext(ctx)))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	v, err := h.svc.Get(ctx, identity.CallerFromContext(ctx), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Book(c echo.Context) error {
	var in BookInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	cons, err := h.svc.Book(ctx, identity.CallerFromContext(ctx), in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, cons)
}

func (h *Handler) UpdateNotes(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in NotesInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	cons, err := h.svc.UpdateClinicalNotes(ctx, identity.CallerFromContext(ctx), id, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body struct {
		Status Status `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	cons, err := h.svc.UpdateStatus(ctx, identity.CallerFromContext(ctx), id, body.Status)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) Join(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	cons, err := h.svc.Join(ctx, identity.CallerFromContext(ctx), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) DoctorPatients(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, h.svc.DoctorPatients(ctx, identity.CallerFromContext(ctx)))
}
