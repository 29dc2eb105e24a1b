// Package wizard drives the five-step booking flow: facility review, doctor
// selection, time selection, patient info and confirmation. Sessions are
// immutable snapshots held in a Store; only confirmation writes a booking.
package wizard

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medibook/medibook/internal/domain/availability"
	"github.com/medibook/medibook/internal/domain/directory"
	"github.com/medibook/medibook/internal/domain/identity"
	"github.com/medibook/medibook/internal/domain/scheduling"
	"github.com/medibook/medibook/internal/platform/auth"
	"github.com/medibook/medibook/internal/platform/metrics"
	"github.com/medibook/medibook/pkg/apperrors"
)

// Directory lists the doctors a session can choose from.
type Directory interface {
	GetHospital(ctx context.Context, id uuid.UUID) (*directory.Hospital, error)
	ListDoctorsForHospital(ctx context.Context, hospitalID uuid.UUID) ([]directory.Doctor, error)
}

// SlotResolver is the read side of scheduling used at time selection.
type SlotResolver interface {
	Resolve(ctx context.Context, doctorID, hospitalID uuid.UUID, date time.Time) ([]scheduling.Slot, error)
	IsSelectable(ctx context.Context, doctorID, hospitalID uuid.UUID, date time.Time) (bool, error)
	Location() *time.Location
}

// BookingCommitter writes the appointment at confirmation.
type BookingCommitter interface {
	Commit(ctx context.Context, req scheduling.BookingRequest) (*scheduling.Appointment, error)
}

// ProfileSource pre-fills the patient step.
type ProfileSource interface {
	CurrentUser(ctx context.Context) (*identity.Profile, error)
}

// StepInput carries the data for the current step. Zero fields fall back to
// what the session already holds, so re-entering a step after going back
// only needs to confirm it.
type StepInput struct {
	DoctorID uuid.UUID    `json:"doctor_id"`
	Date     string       `json:"date"`
	Time     string       `json:"time"`
	Patient  *PatientInfo `json:"patient,omitempty"`
}

// View is a session snapshot plus what the client needs to render its step.
type View struct {
	State    State               `json:"state"`
	Hospital *directory.Hospital `json:"hospital,omitempty"`
	Doctors  []directory.Doctor  `json:"doctors,omitempty"`
	Doctor   *directory.Doctor   `json:"doctor,omitempty"`
	Slots    []scheduling.Slot   `json:"slots,omitempty"`
}

// CommitResult is returned by a successful confirmation.
type CommitResult struct {
	Appointment *scheduling.Appointment `json:"appointment"`
	State       State                   `json:"state"`
}

type Wizard struct {
	store     Store
	directory Directory
	resolver  SlotResolver
	committer BookingCommitter
	profiles  ProfileSource
	metrics   *metrics.SchedulingMetrics
	logger    zerolog.Logger
	now       func() time.Time
}

func New(store Store, dir Directory, resolver SlotResolver, committer BookingCommitter, profiles ProfileSource, m *metrics.SchedulingMetrics, logger zerolog.Logger) *Wizard {
	return &Wizard{
		store: store, directory: dir, resolver: resolver, committer: committer,
		profiles: profiles, metrics: m, logger: logger, now: time.Now,
	}
}

func principalID(ctx context.Context) string {
	if p := auth.PrincipalFromContext(ctx); p != nil {
		return p.UserID
	}
	return ""
}

// owned hides sessions that belong to someone else.
func owned(ctx context.Context, s State) error {
	if s.OwnerID != "" && s.OwnerID != principalID(ctx) {
		return apperrors.NotFound("booking session")
	}
	return nil
}

func (w *Wizard) load(ctx context.Context, id uuid.UUID) (State, error) {
	s, err := w.store.Get(ctx, id)
	if err != nil {
		return State{}, err
	}
	if err := owned(ctx, s); err != nil {
		return State{}, err
	}
	return s, nil
}

// save writes next only if nobody else changed the session since base was read.
func (w *Wizard) save(ctx context.Context, base, next State) (State, error) {
	return w.store.Update(ctx, base.ID, func(cur State) (State, error) {
		if cur.Version != base.Version {
			return cur, apperrors.Conflict("booking session changed, reload and try again")
		}
		return next, nil
	})
}

// Start opens a session for hospitalID at facility review.
func (w *Wizard) Start(ctx context.Context, hospitalID uuid.UUID) (*View, error) {
	if hospitalID == uuid.Nil {
		return nil, apperrors.Validation("hospital_id", "is required")
	}
	if _, err := w.directory.GetHospital(ctx, hospitalID); err != nil {
		return nil, err
	}
	s := NewState(hospitalID, principalID(ctx), w.now())
	if err := w.store.Create(ctx, s); err != nil {
		return nil, err
	}
	w.logger.Debug().Str("session_id", s.ID.String()).Str("hospital_id", hospitalID.String()).Msg("booking session started")
	return w.view(ctx, s)
}

func (w *Wizard) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	s, err := w.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return w.view(ctx, s)
}

// Complete validates in against the current step and advances. On any error
// the stored session is left exactly as it was.
func (w *Wizard) Complete(ctx context.Context, id uuid.UUID, in StepInput) (*View, error) {
	cur, err := w.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := cur.mutable(); err != nil {
		return nil, err
	}

	var next State
	switch cur.Step {
	case StepFacilityReview:
		next, err = cur.Advance(w.now())
	case StepDoctorSelection:
		next, err = w.completeDoctor(ctx, cur, in)
	case StepTimeSelection:
		next, err = w.completeTime(ctx, cur, in)
	case StepPatientInfo:
		next, err = w.completePatient(cur, in)
	default:
		err = apperrors.Validation("step", "confirmation is submitted with commit")
	}
	if err != nil {
		return nil, err
	}

	if next.Step == StepPatientInfo && !next.Prefilled {
		next = w.prefill(ctx, next)
	}
	saved, err := w.save(ctx, cur, next)
	if err != nil {
		return nil, err
	}
	if saved.Step != cur.Step {
		w.metrics.ObserveWizardStep(cur.Step.String(), "forward")
	}
	return w.view(ctx, saved)
}

func (w *Wizard) completeDoctor(ctx context.Context, cur State, in StepInput) (State, error) {
	doctorID := in.DoctorID
	if doctorID == uuid.Nil {
		doctorID = cur.DoctorID
	}
	if doctorID == uuid.Nil {
		return cur, apperrors.Validation("doctor_id", "is required")
	}
	doctors, err := w.directory.ListDoctorsForHospital(ctx, cur.HospitalID)
	if err != nil {
		return cur, err
	}
	if findDoctor(doctors, doctorID) == nil {
		return cur, apperrors.NotFound("doctor")
	}
	return cur.WithDoctor(doctorID, w.now()).Advance(w.now())
}

// completeTime handles both picking a day and picking a slot. A request with
// a date and no time only selects the day and stays on the step.
func (w *Wizard) completeTime(ctx context.Context, cur State, in StepInput) (State, error) {
	raw := in.Date
	if raw == "" {
		raw = cur.Date
	}
	if raw == "" {
		return cur, apperrors.Validation("date", "is required")
	}
	date, err := availability.ParseDate(raw, w.resolver.Location())
	if err != nil {
		return cur, apperrors.Validation("date", err.Error())
	}
	ok, err := w.resolver.IsSelectable(ctx, cur.DoctorID, cur.HospitalID, date)
	if err != nil {
		return cur, err
	}
	if !ok {
		return cur, apperrors.Validation("date", "has no bookable slots")
	}

	next := cur.WithDate(availability.FormatDate(date), w.now())
	at := in.Time
	if at == "" {
		at = next.Time
	}
	if at == "" {
		return next, nil
	}
	if at, err = availability.NormalizeTime(at); err != nil {
		return cur, apperrors.Validation("time", err.Error())
	}

	slots, err := w.resolver.Resolve(ctx, cur.DoctorID, cur.HospitalID, date)
	if err != nil {
		return cur, err
	}
	slot := findSlot(slots, at)
	if slot == nil {
		return cur, apperrors.Validation("time", "is not a slot on "+next.Date)
	}
	if !slot.Available {
		return cur, apperrors.Capacity("the " + at + " slot on " + next.Date + " is fully booked")
	}
	return next.WithTime(at, w.now()).Advance(w.now())
}

func (w *Wizard) completePatient(cur State, in StepInput) (State, error) {
	info := cur.Patient
	if in.Patient != nil {
		info = *in.Patient
	}
	info.Details = info.Details.Normalize()
	if err := info.Details.Validate(w.now()); err != nil {
		return cur, err
	}
	info.Reason = strings.TrimSpace(info.Reason)
	if info.Reason == "" {
		return cur, apperrors.Validation("reason_for_visit", "is required")
	}
	if info.Notes != nil {
		n := strings.TrimSpace(*info.Notes)
		if n == "" {
			info.Notes = nil
		} else {
			info.Notes = &n
		}
	}
	return cur.WithPatient(info, w.now()).Advance(w.now())
}

// prefill is best effort; the patient can always type the fields.
func (w *Wizard) prefill(ctx context.Context, s State) State {
	if w.profiles == nil {
		return s
	}
	profile, err := w.profiles.CurrentUser(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Str("session_id", s.ID.String()).Msg("profile pre-fill skipped")
		return s
	}
	return s.WithPrefill(profile, w.now())
}

// Back returns to the previous step keeping everything entered so far.
func (w *Wizard) Back(ctx context.Context, id uuid.UUID) (*View, error) {
	cur, err := w.load(ctx, id)
	if err != nil {
		return nil, err
	}
	prev, err := cur.Back(w.now())
	if err != nil {
		return nil, err
	}
	saved, err := w.save(ctx, cur, prev)
	if err != nil {
		return nil, err
	}
	w.metrics.ObserveWizardStep(cur.Step.String(), "back")
	return w.view(ctx, saved)
}

// Cancel discards the session. Nothing was reserved, so nothing is undone.
func (w *Wizard) Cancel(ctx context.Context, id uuid.UUID) error {
	cur, err := w.load(ctx, id)
	if err != nil {
		return err
	}
	if err := w.store.Delete(ctx, id); err != nil {
		return err
	}
	w.metrics.ObserveWizardStep(cur.Step.String(), "cancel")
	w.logger.Debug().Str("session_id", id.String()).Str("step", cur.Step.String()).Msg("booking session cancelled")
	return nil
}

// Commit submits the confirmed booking. The in-flight flag is raised in the
// store first, so a duplicate submission fails with a conflict instead of
// booking twice. Failures keep every entered value; a full slot sends the
// session back to time selection.
func (w *Wizard) Commit(ctx context.Context, id uuid.UUID) (*CommitResult, error) {
	userID := principalID(ctx)
	if userID == "" {
		return nil, apperrors.Unauthorized("sign in to confirm the booking")
	}

	pending, err := w.store.Update(ctx, id, func(cur State) (State, error) {
		if err := owned(ctx, cur); err != nil {
			return cur, err
		}
		next, err := cur.BeginCommit(w.now())
		if err != nil {
			return cur, err
		}
		next.OwnerID = userID
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	req, err := w.bookingRequest(pending, userID)
	if err == nil {
		var appt *scheduling.Appointment
		if appt, err = w.committer.Commit(ctx, req); err == nil {
			return w.finishCommit(ctx, pending, appt), nil
		}
	}

	if _, uerr := w.store.Update(ctx, id, func(cur State) (State, error) {
		return cur.CommitFailed(err, w.now()), nil
	}); uerr != nil {
		w.logger.Error().Err(uerr).Str("session_id", id.String()).Msg("failed to release booking session after commit error")
	}
	if apperrors.IsCapacity(err) {
		w.metrics.ObserveWizardStep(StepConfirmation.String(), "capacity_back")
	}
	return nil, err
}

func (w *Wizard) bookingRequest(s State, userID string) (scheduling.BookingRequest, error) {
	date, err := availability.ParseDate(s.Date, w.resolver.Location())
	if err != nil {
		return scheduling.BookingRequest{}, apperrors.Validation("date", err.Error())
	}
	return scheduling.BookingRequest{
		DoctorID:      s.DoctorID,
		HospitalID:    s.HospitalID,
		Date:          date,
		Time:          s.Time,
		PatientAuthID: userID,
		Patient:       s.Patient.Details,
		Reason:        s.Patient.Reason,
		Notes:         s.Patient.Notes,
	}, nil
}

func (w *Wizard) finishCommit(ctx context.Context, pending State, appt *scheduling.Appointment) *CommitResult {
	done, err := w.store.Update(ctx, pending.ID, func(cur State) (State, error) {
		return cur.CommitSucceeded(appt.ID, w.now()), nil
	})
	if err != nil {
		// The appointment exists; report it even though the session could not be updated.
		w.logger.Error().Err(err).
			Str("session_id", pending.ID.String()).
			Str("appointment_id", appt.ID.String()).
			Msg("failed to record committed booking on session")
		done = pending.CommitSucceeded(appt.ID, w.now())
	}
	w.metrics.ObserveWizardStep(StepConfirmation.String(), "commit")
	return &CommitResult{Appointment: appt, State: done}
}

// view gathers step context. Slots are always resolved fresh.
func (w *Wizard) view(ctx context.Context, s State) (*View, error) {
	v := &View{State: s}
	hospital, err := w.directory.GetHospital(ctx, s.HospitalID)
	if err != nil {
		return nil, err
	}
	v.Hospital = hospital

	switch s.Step {
	case StepDoctorSelection, StepConfirmation:
		doctors, err := w.directory.ListDoctorsForHospital(ctx, s.HospitalID)
		if err != nil {
			return nil, err
		}
		if s.Step == StepDoctorSelection {
			v.Doctors = doctors
		}
		v.Doctor = findDoctor(doctors, s.DoctorID)
	case StepTimeSelection:
		if s.Date == "" {
			break
		}
		date, err := availability.ParseDate(s.Date, w.resolver.Location())
		if err != nil {
			return nil, apperrors.Validation("date", err.Error())
		}
		slots, err := w.resolver.Resolve(ctx, s.DoctorID, s.HospitalID, date)
		if err != nil {
			return nil, err
		}
		v.Slots = slots
	}
	return v, nil
}

func findDoctor(doctors []directory.Doctor, id uuid.UUID) *directory.Doctor {
	for i := range doctors {
		if doctors[i].ID == id {
			return &doctors[i]
		}
	}
	return nil
}

// findSlot returns the slot starting at at. Overlapping windows can list a
// time more than once; an available entry wins over a full one.
func findSlot(slots []scheduling.Slot, at string) *scheduling.Slot {
	var found *scheduling.Slot
	for i := range slots {
		if slots[i].Time != at {
			continue
		}
		if slots[i].Available {
			return &slots[i]
		}
		if found == nil {
			found = &slots[i]
		}
	}
	return found
}
