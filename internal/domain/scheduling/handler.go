package scheduling

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medibook/medibook/internal/domain/availability"
	"github.com/medibook/medibook/internal/domain/identity"
	"github.com/medibook/medibook/internal/platform/auth"
	"github.com/medibook/medibook/pkg/apperrors"
	"github.com/medibook/medibook/pkg/pagination"
)

type Handler struct {
	svc       *Service
	resolver  *Resolver
	committer *Committer
}

func NewHandler(svc *Service, resolver *Resolver, committer *Committer) *Handler {
	return &Handler{svc: svc, resolver: resolver, committer: committer}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors/:id/slots", h.ResolveSlots)
	api.GET("/doctors/:id/calendar", h.ResolveWeek)

	api.POST("/appointments", h.CommitBooking)
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.PATCH("/appointments/:id/status", h.UpdateStatus)
}

func (h *Handler) parseDate(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, apperrors.Validation(name, "is required")
	}
	d, err := availability.ParseDate(raw, h.resolver.Location())
	if err != nil {
		return time.Time{}, apperrors.Validation(name, err.Error())
	}
	return d, nil
}

func doctorAndHospital(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, apperrors.Validation("doctor_id", "must be a UUID")
	}
	hospitalID, err := uuid.Parse(c.QueryParam("hospital_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, apperrors.Validation("hospital_id", "must be a UUID")
	}
	return doctorID, hospitalID, nil
}

// -- Slot Handlers --

func (h *Handler) ResolveSlots(c echo.Context) error {
	doctorID, hospitalID, err := doctorAndHospital(c)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	date, err := h.parseDate("date", c.QueryParam("date"))
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	slots, err := h.resolver.Resolve(c.Request().Context(), doctorID, hospitalID, date)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"date":  availability.FormatDate(date),
		"slots": slots,
	})
}

// ResolveWeek defaults week_start to today.
func (h *Handler) ResolveWeek(c echo.Context) error {
	doctorID, hospitalID, err := doctorAndHospital(c)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	start := h.resolver.Today()
	if raw := c.QueryParam("week_start"); raw != "" {
		if start, err = h.parseDate("week_start", raw); err != nil {
			return apperrors.ToHTTP(err)
		}
	}
	week, err := h.resolver.ResolveWeek(c.Request().Context(), doctorID, hospitalID, start)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, week)
}

// -- Appointment Handlers --

type patientRequest struct {
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender"`
}

type bookingRequest struct {
	DoctorID   uuid.UUID      `json:"doctor_id"`
	HospitalID uuid.UUID      `json:"hospital_id"`
	Date       string         `json:"date"`
	Time       string         `json:"time"`
	Patient    patientRequest `json:"patient"`
	Reason     string         `json:"reason_for_visit"`
	Notes      *string        `json:"notes"`
}

func (h *Handler) CommitBooking(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return apperrors.ToHTTP(apperrors.Unauthorized("authentication required"))
	}
	var body bookingRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	date, err := h.parseDate("date", body.Date)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	var dob time.Time
	if body.Patient.DateOfBirth != "" {
		if dob, err = availability.ParseDate(body.Patient.DateOfBirth, time.UTC); err != nil {
			return apperrors.ToHTTP(apperrors.Validation("date_of_birth", err.Error()))
		}
	}

	appt, err := h.committer.Commit(c.Request().Context(), BookingRequest{
		DoctorID:      body.DoctorID,
		HospitalID:    body.HospitalID,
		Date:          date,
		Time:          body.Time,
		PatientAuthID: p.UserID,
		Patient: identity.Details{
			FullName:    body.Patient.FullName,
			Phone:       body.Patient.Phone,
			Email:       body.Patient.Email,
			DateOfBirth: dob,
			Gender:      body.Patient.Gender,
		},
		Reason: body.Reason,
		Notes:  body.Notes,
	})
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	var f AppointmentFilter
	if raw := c.QueryParam("doctor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apperrors.ToHTTP(apperrors.Validation("doctor_id", "must be a UUID"))
		}
		f.DoctorID = id
	}
	if raw := c.QueryParam("hospital_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apperrors.ToHTTP(apperrors.Validation("hospital_id", "must be a UUID"))
		}
		f.HospitalID = id
	}
	if raw := c.QueryParam("date"); raw != "" {
		d, err := h.parseDate("date", raw)
		if err != nil {
			return apperrors.ToHTTP(err)
		}
		f.Date = &d
	}
	f.Status = c.QueryParam("status")

	items, total, err := h.svc.ListAppointments(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body statusRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), id, body.Status)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}
