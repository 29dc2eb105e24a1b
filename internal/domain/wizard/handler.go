package wizard

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medibook/medibook/internal/domain/availability"
	"github.com/medibook/medibook/internal/domain/identity"
	"github.com/medibook/medibook/pkg/apperrors"
)

type Handler struct {
	wizard *Wizard
}

func NewHandler(w *Wizard) *Handler {
	return &Handler{wizard: w}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/booking-sessions", h.Start)
	api.GET("/booking-sessions/:id", h.Get)
	api.POST("/booking-sessions/:id/step", h.Complete)
	api.POST("/booking-sessions/:id/back", h.Back)
	api.DELETE("/booking-sessions/:id", h.Cancel)
	api.POST("/booking-sessions/:id/commit", h.Commit)
}

func sessionID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

type startRequest struct {
	HospitalID uuid.UUID `json:"hospital_id"`
}

func (h *Handler) Start(c echo.Context) error {
	var body startRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := h.wizard.Start(c.Request().Context(), body.HospitalID)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	v, err := h.wizard.Get(c.Request().Context(), id)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}

type patientRequest struct {
	FullName    string  `json:"full_name"`
	Phone       string  `json:"phone"`
	Email       string  `json:"email"`
	DateOfBirth string  `json:"date_of_birth"`
	Gender      string  `json:"gender"`
	Reason      string  `json:"reason_for_visit"`
	Notes       *string `json:"notes"`
}

type stepRequest struct {
	DoctorID uuid.UUID       `json:"doctor_id"`
	Date     string          `json:"date"`
	Time     string          `json:"time"`
	Patient  *patientRequest `json:"patient"`
}

func (r stepRequest) input() (StepInput, error) {
	in := StepInput{DoctorID: r.DoctorID, Date: r.Date, Time: r.Time}
	if r.Patient == nil {
		return in, nil
	}
	var dob time.Time
	if r.Patient.DateOfBirth != "" {
		d, err := availability.ParseDate(r.Patient.DateOfBirth, time.UTC)
		if err != nil {
			return in, apperrors.Validation("date_of_birth", err.Error())
		}
		dob = d
	}
	in.Patient = &PatientInfo{
		Details: identity.Details{
			FullName:    r.Patient.FullName,
			Phone:       r.Patient.Phone,
			Email:       r.Patient.Email,
			DateOfBirth: dob,
			Gender:      r.Patient.Gender,
		},
		Reason: r.Patient.Reason,
		Notes:  r.Patient.Notes,
	}
	return in, nil
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	var body stepRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in, err := body.input()
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	v, err := h.wizard.Complete(c.Request().Context(), id, in)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Back(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	v, err := h.wizard.Back(c.Request().Context(), id)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	if err := h.wizard.Cancel(c.Request().Context(), id); err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Commit(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	res, err := h.wizard.Commit(c.Request().Context(), id)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, res)
}
