package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medibook/medibook/internal/platform/auth"
	"github.com/medibook/medibook/pkg/apperrors"
)

type Service struct {
	windows   WindowRepository
	blackouts BlackoutRepository
	logger    zerolog.Logger
}

func NewService(windows WindowRepository, blackouts BlackoutRepository, logger zerolog.Logger) *Service {
	return &Service{windows: windows, blackouts: blackouts, logger: logger}
}

// validateWindow normalizes the window's times in place and checks every
// field constraint. Windows spanning midnight are rejected here.
func validateWindow(w *Window) error {
	if w.DoctorID == uuid.Nil {
		return apperrors.Validation("doctor_id", "is required")
	}
	if w.HospitalID == uuid.Nil {
		return apperrors.Validation("hospital_id", "is required")
	}
	if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
		return apperrors.Validation("day_of_week", "must be between 0 (Sunday) and 6 (Saturday)")
	}
	start, err := ParseClock(w.StartTime)
	if err != nil {
		return apperrors.Validation("start_time", err.Error())
	}
	end, err := ParseClock(w.EndTime)
	if err != nil {
		return apperrors.Validation("end_time", err.Error())
	}
	if start >= end {
		return apperrors.Validation("end_time", "must be after start_time")
	}
	if w.SlotDuration < MinSlotDuration || w.SlotDuration > MaxSlotDuration {
		return apperrors.Validation("slot_duration",
			fmt.Sprintf("must be between %d and %d minutes", MinSlotDuration, MaxSlotDuration))
	}
	if w.MaxPatients < MinMaxPatients || w.MaxPatients > MaxMaxPatients {
		return apperrors.Validation("max_patients",
			fmt.Sprintf("must be between %d and %d", MinMaxPatients, MaxMaxPatients))
	}
	w.StartTime = start.String()
	w.EndTime = end.String()
	return nil
}

// authorizeManage lets admins manage any schedule and doctors only their own.
// Calls without a principal come from inside the process and pass.
func authorizeManage(ctx context.Context, doctorID uuid.UUID) error {
	p := auth.PrincipalFromContext(ctx)
	if p == nil || p.IsAdmin() {
		return nil
	}
	if p.DoctorID == "" || p.DoctorID != doctorID.String() {
		return apperrors.Forbidden("doctors may only manage their own availability")
	}
	return nil
}

// -- Windows --

func (s *Service) CreateWindow(ctx context.Context, w *Window) error {
	if err := validateWindow(w); err != nil {
		return err
	}
	if err := authorizeManage(ctx, w.DoctorID); err != nil {
		return err
	}
	if err := s.windows.Create(ctx, w); err != nil {
		return err
	}
	s.logger.Info().
		Str("window_id", w.ID.String()).
		Str("doctor_id", w.DoctorID.String()).
		Str("hospital_id", w.HospitalID.String()).
		Int("day_of_week", w.DayOfWeek).
		Msg("availability window created")
	return nil
}

func (s *Service) GetWindow(ctx context.Context, id uuid.UUID) (*Window, error) {
	return s.windows.GetByID(ctx, id)
}

// UpdateWindow replaces the schedule fields of an existing window. The doctor
// and hospital a window belongs to never change.
func (s *Service) UpdateWindow(ctx context.Context, w *Window) error {
	existing, err := s.windows.GetByID(ctx, w.ID)
	if err != nil {
		return err
	}
	if err := authorizeManage(ctx, existing.DoctorID); err != nil {
		return err
	}
	w.DoctorID = existing.DoctorID
	w.HospitalID = existing.HospitalID
	w.CreatedAt = existing.CreatedAt
	if err := validateWindow(w); err != nil {
		return err
	}
	return s.windows.Update(ctx, w)
}

func (s *Service) DeleteWindow(ctx context.Context, id uuid.UUID) error {
	existing, err := s.windows.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authorizeManage(ctx, existing.DoctorID); err != nil {
		return err
	}
	return s.windows.Delete(ctx, id)
}

func (s *Service) ListWindows(ctx context.Context, f WindowFilter) ([]*Window, error) {
	if f.DayOfWeek != nil && (*f.DayOfWeek < 0 || *f.DayOfWeek > 6) {
		return nil, apperrors.Validation("day_of_week", "must be between 0 (Sunday) and 6 (Saturday)")
	}
	return s.windows.List(ctx, f)
}

// ActiveWindows returns the active windows of a doctor at a hospital by value,
// ready for Generate.
func (s *Service) ActiveWindows(ctx context.Context, doctorID, hospitalID uuid.UUID) ([]Window, error) {
	items, err := s.windows.List(ctx, WindowFilter{DoctorID: doctorID, HospitalID: hospitalID, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	out := make([]Window, 0, len(items))
	for _, w := range items {
		out = append(out, *w)
	}
	return out, nil
}

// -- Blackouts --

func (s *Service) CreateBlackout(ctx context.Context, b *Blackout) error {
	if b.DoctorID == uuid.Nil {
		return apperrors.Validation("doctor_id", "is required")
	}
	if b.Date.IsZero() {
		return apperrors.Validation("date", "is required")
	}
	if err := authorizeManage(ctx, b.DoctorID); err != nil {
		return err
	}
	if b.HospitalID != nil && *b.HospitalID == uuid.Nil {
		b.HospitalID = nil
	}
	b.Date = DateOnly(b.Date)
	return s.blackouts.Create(ctx, b)
}

func (s *Service) GetBlackout(ctx context.Context, id uuid.UUID) (*Blackout, error) {
	return s.blackouts.GetByID(ctx, id)
}

func (s *Service) DeleteBlackout(ctx context.Context, id uuid.UUID) error {
	existing, err := s.blackouts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authorizeManage(ctx, existing.DoctorID); err != nil {
		return err
	}
	return s.blackouts.Delete(ctx, id)
}

func (s *Service) ListBlackouts(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Blackout, error) {
	if doctorID == uuid.Nil {
		return nil, apperrors.Validation("doctor_id", "is required")
	}
	if to.Before(from) {
		return nil, apperrors.Validation("to", "must not be before from")
	}
	return s.blackouts.ListByDoctor(ctx, doctorID, from, to)
}

// BlackedOutDates returns the dates in [from, to] on which the doctor has no
// slots at hospitalID, keyed by "YYYY-MM-DD".
func (s *Service) BlackedOutDates(ctx context.Context, doctorID, hospitalID uuid.UUID, from, to time.Time) (map[string]bool, error) {
	items, err := s.blackouts.ListByDoctor(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(items))
	for _, b := range items {
		if b.AppliesTo(hospitalID) {
			out[FormatDate(b.Date)] = true
		}
	}
	return out, nil
}

// IsBlackedOut reports whether the doctor has a blackout at hospitalID on date.
func (s *Service) IsBlackedOut(ctx context.Context, doctorID, hospitalID uuid.UUID, date time.Time) (bool, error) {
	dates, err := s.BlackedOutDates(ctx, doctorID, hospitalID, date, date)
	if err != nil {
		return false, err
	}
	return dates[FormatDate(date)], nil
}
