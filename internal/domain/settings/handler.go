package settings

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
	g := api.Group("/settings", auth.RequireRole(auth.RoleAdmin))
	g.GET("/workflow", h.getWorkflow)
	g.PUT("/workflow", h.updateWorkflow)
	g.GET("/permissions", h.listPermissions)
	g.PUT("/permissions/:role", h.upsertPermission)
}

func (h *Handler) getWorkflow(c echo.Context) error {
	ws, err := h.svc.Workflow(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws)
}

func (h *Handler) updateWorkflow(c echo.Context) error {
	var ws WorkflowSettings
	if err := c.Bind(&ws); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.UpdateWorkflow(c.Request().Context(), &ws); err != nil {
		return err
	}
	updated, err := h.svc.Workflow(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) listPermissions(c echo.Context) error {
	perms, err := h.svc.ListPermissions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, perms)
}

func (h *Handler) upsertPermission(c echo.Context) error {
	var rp RolePermission
	if err := c.Bind(&rp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rp.Role = c.Param("role")

	if err := h.svc.UpsertPermission(c.Request().Context(), &rp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, rp)
}
