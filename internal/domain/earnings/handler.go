package earnings

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/telehealth/internal/domain/identity"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/doctor/earnings", identity.RequireRole(identity.RoleDoctor))
	g.GET("", h.Summary)
	g.GET("/transactions", h.Transactions)
}

func intQuery(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a number")
	}
	return n, nil
}

func (h *Handler) Summary(c echo.Context) error {
	months, err := intQuery(c, "months")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, h.svc.Summary(ctx, identity.CallerFromContext(ctx), months))
}

func (h *Handler) Transactions(c echo.Context) error {
	limit, err := intQuery(c, "limit")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, h.svc.Transactions(ctx, identity.CallerFromContext(ctx), limit))
}
