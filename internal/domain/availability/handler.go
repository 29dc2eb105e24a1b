package availability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medibook/medibook/internal/platform/auth"
	"github.com/medibook/medibook/pkg/apperrors"
)

type Handler struct {
	svc *Service
	loc *time.Location
}

func NewHandler(svc *Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{svc: svc, loc: loc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/availability-windows", h.ListWindows)
	api.GET("/availability-windows/:id", h.GetWindow)
	api.GET("/blackouts", h.ListBlackouts)

	manage := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
	manage.POST("/availability-windows", h.CreateWindow)
	manage.PUT("/availability-windows/:id", h.UpdateWindow)
	manage.DELETE("/availability-windows/:id", h.DeleteWindow)
	manage.POST("/blackouts", h.CreateBlackout)
	manage.DELETE("/blackouts/:id", h.DeleteBlackout)
}

type windowRequest struct {
	DoctorID     uuid.UUID `json:"doctor_id"`
	HospitalID   uuid.UUID `json:"hospital_id"`
	DayOfWeek    int       `json:"day_of_week"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	SlotDuration int       `json:"slot_duration"`
	MaxPatients  int       `json:"max_patients"`
	IsActive     *bool     `json:"is_active"`
}

func (r *windowRequest) toWindow() *Window {
	w := &Window{
		DoctorID:     r.DoctorID,
		HospitalID:   r.HospitalID,
		DayOfWeek:    r.DayOfWeek,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		SlotDuration: r.SlotDuration,
		MaxPatients:  r.MaxPatients,
		IsActive:     true,
	}
	if r.IsActive != nil {
		w.IsActive = *r.IsActive
	}
	return w
}

func parseIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func parseUUIDQuery(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.Validation(name, "must be a UUID")
	}
	return id, nil
}

// -- Window Handlers --

func (h *Handler) CreateWindow(c echo.Context) error {
	var req windowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	w := req.toWindow()
	if err := h.svc.CreateWindow(c.Request().Context(), w); err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) GetWindow(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	w, err := h.svc.GetWindow(c.Request().Context(), id)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) UpdateWindow(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	var req windowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	w := req.toWindow()
	w.ID = id
	if err := h.svc.UpdateWindow(c.Request().Context(), w); err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) DeleteWindow(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteWindow(c.Request().Context(), id); err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListWindows(c echo.Context) error {
	var f WindowFilter
	var err error
	if f.DoctorID, err = parseUUIDQuery(c, "doctor_id"); err != nil {
		return apperrors.ToHTTP(err)
	}
	if f.HospitalID, err = parseUUIDQuery(c, "hospital_id"); err != nil {
		return apperrors.ToHTTP(err)
	}
	if raw := c.QueryParam("day_of_week"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			return apperrors.ToHTTP(apperrors.Validation("day_of_week", "must be an integer"))
		}
		f.DayOfWeek = &d
	}
	f.ActiveOnly = c.QueryParam("active") == "true"

	items, err := h.svc.ListWindows(c.Request().Context(), f)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	if items == nil {
		items = []*Window{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}

// -- Blackout Handlers --

type blackoutRequest struct {
	DoctorID   uuid.UUID  `json:"doctor_id"`
	HospitalID *uuid.UUID `json:"hospital_id"`
	Date       string     `json:"date"`
	Reason     *string    `json:"reason"`
}

func (h *Handler) CreateBlackout(c echo.Context) error {
	var req blackoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	date, err := ParseDate(req.Date, h.loc)
	if err != nil {
		return apperrors.ToHTTP(apperrors.Validation("date", err.Error()))
	}
	b := &Blackout{DoctorID: req.DoctorID, HospitalID: req.HospitalID, Date: date, Reason: req.Reason}
	if err := h.svc.CreateBlackout(c.Request().Context(), b); err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) DeleteBlackout(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteBlackout(c.Request().Context(), id); err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListBlackouts defaults to the next 90 days when from/to are omitted.
func (h *Handler) ListBlackouts(c echo.Context) error {
	doctorID, err := parseUUIDQuery(c, "doctor_id")
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	from := DateOnly(time.Now().In(h.loc))
	to := from.AddDate(0, 0, 90)
	if raw := c.QueryParam("from"); raw != "" {
		if from, err = ParseDate(raw, h.loc); err != nil {
			return apperrors.ToHTTP(apperrors.Validation("from", err.Error()))
		}
	}
	if raw := c.QueryParam("to"); raw != "" {
		if to, err = ParseDate(raw, h.loc); err != nil {
			return apperrors.ToHTTP(apperrors.Validation("to", err.Error()))
		}
	}

	items, err := h.svc.ListBlackouts(c.Request().Context(), doctorID, from, to)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	if items == nil {
		items = []*Blackout{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}
