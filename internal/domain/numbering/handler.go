package numbering

import (
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
	g := api.Group("/terminals", auth.RequireRole(auth.RoleAdmin))
	g.GET("", h.ListTerminals)
	g.POST("", h.CreateTerminal)
	g.GET("/:id", h.GetTerminal)
	g.PUT("/:id", h.UpdateTerminal)
	g.POST("/:id/deactivate", h.DeactivateTerminal)
}

type terminalRequest struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	RangeStart int64  `json:"range_start"`
	RangeEnd   int64  `json:"range_end"`
	Active     *bool  `json:"active"`
}

func (h *Handler) CreateTerminal(c echo.Context) error {
	var req terminalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	t := &Terminal{
		Code:       req.Code,
		Name:       req.Name,
		RangeStart: req.RangeStart,
		RangeEnd:   req.RangeEnd,
		Active:     true,
	}
	if req.Active != nil {
		t.Active = *req.Active
	}

	if err := h.svc.CreateTerminal(c.Request().Context(), t); err != nil {
		if errors.Is(err, ErrRangeOverlap) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTerminal(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid terminal id")
	}

	t, err := h.svc.GetTerminal(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "terminal not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get terminal")
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTerminals(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListTerminals(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list terminals")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) UpdateTerminal(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid terminal id")
	}

	var req terminalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	t := &Terminal{
		Code:       req.Code,
		Name:       req.Name,
		RangeStart: req.RangeStart,
		RangeEnd:   req.RangeEnd,
		Active:     true,
	}
	if req.Active != nil {
		t.Active = *req.Active
	}

	if err := h.svc.UpdateTerminal(c.Request().Context(), id, t); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "terminal not found")
		case errors.Is(err, ErrRangeOverlap):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeactivateTerminal(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid terminal id")
	}

	t, err := h.svc.DeactivateTerminal(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "terminal not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to deactivate terminal")
	}
	return c.JSON(http.StatusOK, t)
}
