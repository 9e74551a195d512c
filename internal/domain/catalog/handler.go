package catalog

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
	tests := api.Group("/catalog/tests")

	read := tests.Group("", auth.RequireRole(auth.RoleReception, auth.RolePhlebotomy, auth.RoleTechnologist, auth.RolePathologist))
	read.GET("", h.listTests)
	read.GET("/:id", h.getTest)
	read.GET("/:id/parameters", h.listParameters)

	write := tests.Group("", auth.RequireRole(auth.RoleAdmin))
	write.POST("", h.createTest)
	write.PUT("/:id", h.updateTest)

	params := api.Group("/catalog/parameters", auth.RequireRole(auth.RoleReception, auth.RolePhlebotomy, auth.RoleTechnologist, auth.RolePathologist))
	params.GET("/:id/reference-ranges", h.listReferenceRanges)
}

type testRequest struct {
	Code                string  `json:"code"`
	Name                string  `json:"name"`
	Description         string  `json:"description"`
	Category            string  `json:"category"`
	SampleType          string  `json:"sample_type"`
	Price               float64 `json:"price"`
	TurnaroundTimeHours int     `json:"turnaround_time_hours"`
	Active              *bool   `json:"active"`
}

func (h *Handler) createTest(c echo.Context) error {
	var req testRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	t := &LabTest{
		Code:                req.Code,
		Name:                req.Name,
		Description:         req.Description,
		Category:            req.Category,
		SampleType:          req.SampleType,
		Price:               req.Price,
		TurnaroundTimeHours: req.TurnaroundTimeHours,
		Active:              true,
	}
	if req.Active != nil {
		t.Active = *req.Active
	}

	if err := h.svc.CreateTest(c.Request().Context(), t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) updateTest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid test id")
	}

	var req testRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	t := &LabTest{
		Name:                req.Name,
		Description:         req.Description,
		Category:            req.Category,
		SampleType:          req.SampleType,
		Price:               req.Price,
		TurnaroundTimeHours: req.TurnaroundTimeHours,
		Active:              true,
	}
	if req.Active != nil {
		t.Active = *req.Active
	}

	if err := h.svc.UpdateTest(c.Request().Context(), id, t); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "test not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) getTest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid test id")
	}

	t, err := h.svc.GetTest(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "test not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) listTests(c echo.Context) error {
	p := pagination.FromContext(c)

	params := map[string]string{}
	if v := c.QueryParam("category"); v != "" {
		params["category"] = v
	}
	if v := c.QueryParam("active"); v != "" {
		params["active"] = v
	}
	if v := c.QueryParam("q"); v != "" {
		params["q"] = v
	}

	tests, total, err := h.svc.ListTests(c.Request().Context(), params, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(tests, total, p.Limit, p.Offset))
}

func (h *Handler) listParameters(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid test id")
	}

	params, err := h.svc.ListParametersForTest(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, params)
}

func (h *Handler) listReferenceRanges(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid parameter id")
	}

	ranges, err := h.svc.ListReferenceRanges(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ranges)
}
