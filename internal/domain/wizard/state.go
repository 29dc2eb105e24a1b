package wizard

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/medibook/internal/domain/identity"
	"github.com/medibook/medibook/pkg/apperrors"
)

// Step is a position in the booking flow. Steps are strictly ordered.
type Step int

const (
	StepFacilityReview Step = iota + 1
	StepDoctorSelection
	StepTimeSelection
	StepPatientInfo
	StepConfirmation
)

var stepNames = map[Step]string{
	StepFacilityReview:  "facility_review",
	StepDoctorSelection: "doctor_selection",
	StepTimeSelection:   "time_selection",
	StepPatientInfo:     "patient_info",
	StepConfirmation:    "confirmation",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

func (s Step) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Step) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for step, n := range stepNames {
		if n == name {
			*s = step
			return nil
		}
	}
	return fmt.Errorf("unknown wizard step %q", name)
}

// PatientInfo is what the patient step collects.
type PatientInfo struct {
	Details identity.Details `json:"details"`
	Reason  string           `json:"reason_for_visit"`
	Notes   *string          `json:"notes,omitempty"`
}

func (p PatientInfo) empty() bool {
	d := p.Details
	return d.FullName == "" && d.Phone == "" && d.Email == "" && d.DateOfBirth.IsZero() && d.Gender == "" && p.Reason == ""
}

// State is one immutable snapshot of a booking session. Every transition
// returns a new State and leaves the receiver untouched.
type State struct {
	ID         uuid.UUID `json:"id"`
	OwnerID    string    `json:"owner_id,omitempty"`
	HospitalID uuid.UUID `json:"hospital_id"`
	Step       Step      `json:"step"`

	DoctorID uuid.UUID   `json:"doctor_id"`
	Date     string      `json:"date,omitempty"`
	Time     string      `json:"time,omitempty"`
	Patient  PatientInfo `json:"patient"`

	Prefilled bool `json:"prefilled"`
	// Committing is set while a commit is in flight and rejects a second one.
	Committing bool `json:"committing"`
	// ForceResolve asks the client to fetch slots again before picking a
	// time, because the last commit found the chosen slot full.
	ForceResolve  bool       `json:"force_resolve"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	LastError     string     `json:"last_error,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState opens a session at facility review.
func NewState(hospitalID uuid.UUID, ownerID string, now time.Time) State {
	return State{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		HospitalID: hospitalID,
		Step:       StepFacilityReview,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Completed reports whether the session already produced an appointment.
func (s State) Completed() bool {
	return s.AppointmentID != nil
}

func (s State) touch(now time.Time) State {
	s.Version++
	s.UpdatedAt = now
	return s
}

func (s State) mutable() error {
	if s.Completed() {
		return apperrors.Conflict("booking session is already completed")
	}
	if s.Committing {
		return apperrors.Conflict("a booking is already being submitted for this session")
	}
	return nil
}

// Advance moves to the next step. Data entered for later steps is kept.
func (s State) Advance(now time.Time) (State, error) {
	if err := s.mutable(); err != nil {
		return s, err
	}
	if s.Step >= StepConfirmation {
		return s, apperrors.Validation("step", "confirmation is the last step")
	}
	next := s
	next.Step++
	next.LastError = ""
	return next.touch(now), nil
}

// Back moves to the immediate predecessor without discarding anything.
func (s State) Back(now time.Time) (State, error) {
	if err := s.mutable(); err != nil {
		return s, err
	}
	if s.Step <= StepFacilityReview {
		return s, apperrors.Validation("step", "facility review is the first step")
	}
	prev := s
	prev.Step--
	prev.LastError = ""
	return prev.touch(now), nil
}

// WithDoctor records the chosen doctor. Switching to another doctor drops
// the date and time, which were resolved against the previous one.
func (s State) WithDoctor(doctorID uuid.UUID, now time.Time) State {
	next := s
	if next.DoctorID != doctorID {
		next.Date = ""
		next.Time = ""
	}
	next.DoctorID = doctorID
	return next.touch(now)
}

// WithDate records the selected day. A different day clears the time.
func (s State) WithDate(date string, now time.Time) State {
	next := s
	if next.Date != date {
		next.Time = ""
	}
	next.Date = date
	return next.touch(now)
}

// WithTime records the selected slot for the current date.
func (s State) WithTime(at string, now time.Time) State {
	next := s
	next.Time = at
	next.ForceResolve = false
	return next.touch(now)
}

func (s State) WithPatient(p PatientInfo, now time.Time) State {
	next := s
	next.Patient = p
	return next.touch(now)
}

// WithPrefill fills blank patient fields from the signed-in user's profile.
func (s State) WithPrefill(p *identity.Profile, now time.Time) State {
	if p == nil {
		return s
	}
	next := s
	d := next.Patient.Details
	if d.FullName == "" {
		d.FullName = p.FullName
	}
	if d.Phone == "" {
		d.Phone = p.Phone
	}
	if d.Email == "" {
		d.Email = p.Email
	}
	if d.DateOfBirth.IsZero() && p.DateOfBirth != nil {
		d.DateOfBirth = *p.DateOfBirth
	}
	if d.Gender == "" {
		d.Gender = p.Gender
	}
	next.Patient.Details = d
	next.Prefilled = true
	return next.touch(now)
}

// BeginCommit raises the in-flight flag. Only confirmation may commit.
func (s State) BeginCommit(now time.Time) (State, error) {
	if err := s.mutable(); err != nil {
		return s, err
	}
	if s.Step != StepConfirmation {
		return s, apperrors.Validation("step", "bookings can only be submitted from confirmation")
	}
	next := s
	next.Committing = true
	next.LastError = ""
	return next.touch(now), nil
}

// CommitSucceeded records the created appointment.
func (s State) CommitSucceeded(appointmentID uuid.UUID, now time.Time) State {
	next := s
	next.Committing = false
	next.AppointmentID = &appointmentID
	return next.touch(now)
}

// CommitFailed clears the in-flight flag and keeps every entered value. A
// full slot sends the session back to time selection for a fresh resolve.
func (s State) CommitFailed(err error, now time.Time) State {
	next := s
	next.Committing = false
	next.LastError = err.Error()
	if apperrors.IsCapacity(err) {
		next.Step = StepTimeSelection
		next.ForceResolve = true
	}
	return next.touch(now)
}
