package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medlab/lims/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dashboard", auth.RequireRole(
		auth.RoleReception, auth.RolePhlebotomy, auth.RoleTechnologist, auth.RolePathologist))
	g.GET("/stats", h.stats)
}

func (h *Handler) stats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
