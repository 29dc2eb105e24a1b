package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/medibook/medibook/internal/domain/availability"
	"github.com/medibook/medibook/internal/domain/identity"
	"github.com/medibook/medibook/internal/platform/db"
	"github.com/medibook/medibook/internal/platform/metrics"
	"github.com/medibook/medibook/pkg/apperrors"
)

// SlotLocker serializes commits for one (doctor, date, time) slot for the
// rest of the current transaction.
type SlotLocker interface {
	LockSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, at string) error
}

type advisorySlotLocker struct{}

// NewAdvisorySlotLocker locks slots with pg_advisory_xact_lock on the
// transaction bound to the context.
func NewAdvisorySlotLocker() SlotLocker { return advisorySlotLocker{} }

func (advisorySlotLocker) LockSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, at string) error {
	q := db.QuerierFromContext(ctx)
	if q == nil {
		return fmt.Errorf("lock slot: no transaction in context")
	}
	key := fmt.Sprintf("appointment-slot:%s:%s:%s", doctorID, availability.FormatDate(date), at)
	if err := db.AdvisoryXactLock(ctx, q, key); err != nil {
		return apperrors.Transient("failed to lock slot", err)
	}
	return nil
}

// Committer writes bookings. Capacity is checked and the appointment inserted
// inside one transaction while holding the slot lock, so concurrent commits
// for the same slot cannot both pass the check.
type Committer struct {
	tx       db.TxRunner
	locker   SlotLocker
	windows  WindowSource
	patients identity.PatientRepository
	appts    AppointmentRepository
	metrics  *metrics.SchedulingMetrics
	logger   zerolog.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewCommitter(
	tx db.TxRunner,
	locker SlotLocker,
	windows WindowSource,
	patients identity.PatientRepository,
	appts AppointmentRepository,
	m *metrics.SchedulingMetrics,
	loc *time.Location,
	logger zerolog.Logger,
) *Committer {
	if loc == nil {
		loc = time.UTC
	}
	return &Committer{
		tx: tx, locker: locker, windows: windows, patients: patients, appts: appts,
		metrics: m, logger: logger, loc: loc, now: time.Now,
	}
}

func (c *Committer) validate(req *BookingRequest) error {
	if req.DoctorID == uuid.Nil {
		return apperrors.Validation("doctor_id", "is required")
	}
	if req.HospitalID == uuid.Nil {
		return apperrors.Validation("hospital_id", "is required")
	}
	if strings.TrimSpace(req.PatientAuthID) == "" {
		return apperrors.Unauthorized("an authenticated patient is required to book")
	}
	if req.Date.IsZero() {
		return apperrors.Validation("date", "is required")
	}
	today := availability.DateOnly(c.now().In(c.loc))
	if availability.FormatDate(req.Date) < availability.FormatDate(today) {
		return apperrors.Validation("date", "must not be in the past")
	}
	t, err := availability.NormalizeTime(req.Time)
	if err != nil {
		return apperrors.Validation("time", err.Error())
	}
	req.Time = t
	req.Patient = req.Patient.Normalize()
	if err := req.Patient.Validate(c.now()); err != nil {
		return err
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		return apperrors.Validation("reason_for_visit", "is required")
	}
	if req.Notes != nil {
		n := strings.TrimSpace(*req.Notes)
		if n == "" {
			req.Notes = nil
		} else {
			req.Notes = &n
		}
	}
	return nil
}

// Commit books req as a pending appointment. It is never retried internally:
// a failed commit returns a typed error and leaves nothing behind.
func (c *Committer) Commit(ctx context.Context, req BookingRequest) (*Appointment, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "scheduling.commit", trace.WithAttributes(
		attribute.String("doctor_id", req.DoctorID.String()),
		attribute.String("hospital_id", req.HospitalID.String()),
	))
	defer span.End()

	appt, err := c.commit(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.KindOf(err)))
		c.metrics.ObserveBooking(bookingOutcome(err), time.Since(start).Seconds())

		ev := c.logger.Warn()
		if apperrors.IsTransient(err) {
			ev = c.logger.Error()
		}
		ev.Err(err).
			Str("doctor_id", req.DoctorID.String()).
			Str("hospital_id", req.HospitalID.String()).
			Str("date", availability.FormatDate(req.Date)).
			Str("time", req.Time).
			Msg("booking rejected")
		return nil, err
	}

	span.SetAttributes(attribute.String("appointment_id", appt.ID.String()))
	c.metrics.ObserveBooking("created", time.Since(start).Seconds())
	c.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", appt.DoctorID.String()).
		Str("hospital_id", appt.HospitalID.String()).
		Str("date", availability.FormatDate(appt.AppointmentDate)).
		Str("time", appt.AppointmentTime).
		Msg("appointment booked")
	return appt, nil
}

func (c *Committer) commit(ctx context.Context, req *BookingRequest) (*Appointment, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}
	at, _ := availability.ParseClock(req.Time)
	date := availability.DateOnly(req.Date)

	var appt *Appointment
	err := c.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := c.locker.LockSlot(ctx, req.DoctorID, date, req.Time); err != nil {
			return err
		}

		windows, err := c.windows.ActiveWindows(ctx, req.DoctorID, req.HospitalID)
		if err != nil {
			return err
		}
		capacity, ok := availability.CapacityAt(windows, date, at)
		if !ok {
			return apperrors.NotFound("availability slot")
		}
		blackedOut, err := c.windows.IsBlackedOut(ctx, req.DoctorID, req.HospitalID, date)
		if err != nil {
			return err
		}
		if blackedOut {
			return apperrors.NotFound("availability slot")
		}

		booked, err := c.appts.CountActive(ctx, req.DoctorID, date, req.Time)
		if err != nil {
			return err
		}
		if booked >= capacity {
			return apperrors.Capacity(fmt.Sprintf("the %s slot on %s is fully booked", req.Time, availability.FormatDate(date)))
		}

		patient := &identity.Patient{
			AuthUserID:  req.PatientAuthID,
			FullName:    req.Patient.FullName,
			Phone:       req.Patient.Phone,
			Email:       req.Patient.Email,
			DateOfBirth: req.Patient.DateOfBirth,
			Gender:      req.Patient.Gender,
		}
		if err := c.patients.Upsert(ctx, patient); err != nil {
			return err
		}

		appt = &Appointment{
			DoctorID:        req.DoctorID,
			HospitalID:      req.HospitalID,
			PatientID:       patient.ID,
			AppointmentDate: date,
			AppointmentTime: req.Time,
			Status:          StatusPending,
			ReasonForVisit:  req.Reason,
			Notes:           req.Notes,
		}
		return c.appts.Create(ctx, appt)
	})
	if err != nil {
		if apperrors.KindOf(err) == "" {
			return nil, apperrors.Transient("booking could not be saved", err)
		}
		return nil, err
	}
	return appt, nil
}

func bookingOutcome(err error) string {
	switch apperrors.KindOf(err) {
	case apperrors.KindCapacity:
		return "capacity"
	case apperrors.KindValidation:
		return "validation"
	case apperrors.KindNotFound:
		return "not_found"
	case apperrors.KindUnauthorized:
		return "unauthorized"
	default:
		return "error"
	}
}
