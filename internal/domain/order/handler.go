package order

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medlab/lims/internal/domain/numbering"
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
	g := api.Group("/orders", auth.RequireRole(auth.RoleReception))
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/:id/cancel", h.cancel)
}

type createRequest struct {
	PatientID uuid.UUID   `json:"patient_id"`
	TestIDs   []uuid.UUID `json:"test_ids"`
	Priority  string      `json:"priority"`
	Notes     string      `json:"notes"`
}

func (h *Handler) create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	o, err := h.svc.Create(c.Request().Context(), CreateRequest{
		PatientID: req.PatientID,
		TestIDs:   req.TestIDs,
		Priority:  req.Priority,
		Notes:     req.Notes,
	})
	if err != nil {
		if errors.Is(err, numbering.ErrDateBucketExhausted) {
			return echo.NewHTTPError(http.StatusConflict, "daily order numbers exhausted, contact an administrator")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	o, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) list(c echo.Context) error {
	p := pagination.FromContext(c)

	params := map[string]string{}
	if v := c.QueryParam("patient_id"); v != "" {
		params["patient_id"] = v
	}
	if v := c.QueryParam("status"); v != "" {
		params["status"] = v
	}

	orders, total, err := h.svc.List(c.Request().Context(), params, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(orders, total, p.Limit, p.Offset))
}

func (h *Handler) cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	o, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, o)
}
