package result

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
	g := api.Group("/results", auth.RequireRole(auth.RoleTechnologist, auth.RolePathologist))
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/:id/enter", h.enter)
	g.POST("/:id/verify", h.verify)
	g.POST("/:id/publish", h.publish)
}

func (h *Handler) get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid result id")
	}

	res, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "result not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, res)
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

	results, total, err := h.svc.List(c.Request().Context(), params, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(results, total, p.Limit, p.Offset))
}

type enterRequest struct {
	Value       string     `json:"value"`
	Unit        string     `json:"unit"`
	ParameterID *uuid.UUID `json:"parameter_id"`
	Notes       string     `json:"notes"`
}

func (h *Handler) enter(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid result id")
	}

	var req enterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	res, err := h.svc.Enter(ctx, id, EnterInput{
		Value:       req.Value,
		Unit:        req.Unit,
		ParameterID: req.ParameterID,
		Notes:       req.Notes,
	}, actorFrom(c), auth.RolesFromContext(ctx))
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) verify(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid result id")
	}

	ctx := c.Request().Context()
	res, err := h.svc.Verify(ctx, id, actorFrom(c), auth.RolesFromContext(ctx))
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) publish(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid result id")
	}

	ctx := c.Request().Context()
	res, err := h.svc.Publish(ctx, id, auth.RolesFromContext(ctx))
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "result not found")
	case errors.Is(err, ErrPermissionDenied):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func actorFrom(c echo.Context) *uuid.UUID {
	if uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		return &uid
	}
	return nil
}
