package patient

import (
	"errors"
	"net/http"
	"time"

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
	read := api.Group("", auth.RequireRole(auth.RoleReception, auth.RolePhlebotomy, auth.RoleTechnologist, auth.RolePathologist))
	read.GET("/patients", h.Search)
	read.GET("/patients/:id", h.Get)

	write := api.Group("", auth.RequireRole(auth.RoleReception))
	write.POST("/patients", h.Register)
	write.PUT("/patients/:id", h.Update)
}

type registerRequest struct {
	FullName           string `json:"full_name"`
	FatherName         string `json:"father_name"`
	DOB                string `json:"dob"`
	Sex                string `json:"sex"`
	Phone              string `json:"phone"`
	CNIC               string `json:"cnic"`
	Address            string `json:"address"`
	Offline            bool   `json:"offline"`
	OriginTerminalCode string `json:"origin_terminal_code"`
}

func (r *registerRequest) toPatient() (*Patient, error) {
	dob, err := time.Parse("2006-01-02", r.DOB)
	if err != nil {
		return nil, err
	}
	return &Patient{
		FullName:   r.FullName,
		FatherName: r.FatherName,
		DOB:        dob,
		Sex:        r.Sex,
		Phone:      r.Phone,
		CNIC:       r.CNIC,
		Address:    r.Address,
	}, nil
}

type patientResponse struct {
	*Patient
	AgeYears  int `json:"age_years"`
	AgeMonths int `json:"age_months"`
	AgeDays   int `json:"age_days"`
}

func toResponse(p *Patient) patientResponse {
	years, months, days := p.Age(time.Now())
	return patientResponse{Patient: p, AgeYears: years, AgeMonths: months, AgeDays: days}
}

func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	p, err := req.toPatient()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "dob must be in format YYYY-MM-DD")
	}

	if err := h.svc.Register(c.Request().Context(), p, req.Offline, req.OriginTerminalCode); err != nil {
		return allocationHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toResponse(p))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get patient")
	}
	return c.JSON(http.StatusOK, toResponse(p))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := req.toPatient()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "dob must be in format YYYY-MM-DD")
	}

	if err := h.svc.Update(c.Request().Context(), id, p); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		case errors.Is(err, numbering.ErrDuplicateIdentifier):
			return echo.NewHTTPError(http.StatusConflict, "cnic or mrn already registered")
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, toResponse(p))
}

func (h *Handler) Search(c echo.Context) error {
	params := make(map[string]string)
	for _, key := range []string{"mrn", "cnic", "phone", "name"} {
		if v := c.QueryParam(key); v != "" {
			params[key] = v
		}
	}

	p := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), params, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to search patients")
	}

	responses := make([]patientResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, toResponse(item))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(responses, total, p.Limit, p.Offset))
}

// allocationHTTPError maps numbering failures to sanitized transport errors.
// Range bounds and cursor values stay out of user-facing messages.
func allocationHTTPError(err error) error {
	switch {
	case errors.Is(err, numbering.ErrMissingRangeCode):
		return echo.NewHTTPError(http.StatusBadRequest, "origin_terminal_code is required for offline registration")
	case errors.Is(err, numbering.ErrRangeUnavailable):
		return echo.NewHTTPError(http.StatusBadRequest, "terminal not found or not active")
	case errors.Is(err, numbering.ErrRangeExhausted):
		return echo.NewHTTPError(http.StatusConflict, "terminal range exhausted, contact an administrator")
	case errors.Is(err, numbering.ErrDateBucketExhausted):
		return echo.NewHTTPError(http.StatusConflict, "daily registration limit reached, contact an administrator")
	case errors.Is(err, numbering.ErrDuplicateIdentifier):
		return echo.NewHTTPError(http.StatusConflict, "identifier already exists")
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
