package sample

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medlab/lims/internal/platform/auth"
	"github.com/medlab/lims/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	labStaff := auth.RequireRole(auth.RolePhlebotomy, auth.RoleTechnologist, auth.RolePathologist)

	g := api.Group("/samples", labStaff)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/barcode/:barcode", h.getByBarcode)
	g.POST("/:id/receive", h.receive)
	g.POST("/:id/reject", h.reject)

	// Collection is a phlebotomy-only action.
	api.Group("/samples", auth.RequireRole(auth.RolePhlebotomy)).POST("/:id/collect", h.collect)
}

func (h *Handler) get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sample id")
	}

	sm, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "sample not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, sm)
}

func (h *Handler) getByBarcode(c echo.Context) error {
	sm, err := h.svc.GetByBarcode(c.Request().Context(), c.Param("barcode"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "sample not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, sm)
}

func (h *Handler) list(c echo.Context) error {
	p := pagination.FromContext(c)

	params := map[string]string{}
	if v := c.QueryParam("status"); v != "" {
		params["status"] = v
	}
	if v := c.QueryParam("order_item_id"); v != "" {
		params["order_item_id"] = v
	}

	samples, total, err := h.svc.List(c.Request().Context(), params, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(samples, total, p.Limit, p.Offset))
}

func (h *Handler) collect(c echo.Context) error {
	return h.action(c, h.svc.Collect)
}

func (h *Handler) receive(c echo.Context) error {
	return h.action(c, h.svc.Receive)
}

func (h *Handler) action(c echo.Context, fn func(ctx context.Context, id uuid.UUID, userID *uuid.UUID) (*Sample, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sample id")
	}

	var actor *uuid.UUID
	if uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		actor = &uid
	}

	sm, err := fn(c.Request().Context(), id, actor)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "sample not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, sm)
}

type rejectRequest struct {
	RejectionReason string `json:"rejection_reason"`
}

func (h *Handler) reject(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sample id")
	}

	var req rejectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	sm, err := h.svc.Reject(c.Request().Context(), id, req.RejectionReason)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "sample not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, sm)
}
