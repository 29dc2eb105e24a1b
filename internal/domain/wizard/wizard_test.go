package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medibook/medibook/internal/domain/availability"
	"github.com/medibook/medibook/internal/domain/directory"
	"github.com/medibook/medibook/internal/domain/identity"
	"github.com/medibook/medibook/internal/domain/scheduling"
	"github.com/medibook/medibook/internal/platform/auth"
	"github.com/medibook/medibook/pkg/apperrors"
)

// -- Fakes --

type fakeDirectory struct {
	hospital directory.Hospital
	doctors  []directory.Doctor
}

func (f *fakeDirectory) GetHospital(_ context.Context, id uuid.UUID) (*directory.Hospital, error) {
	if id != f.hospital.ID {
		return nil, apperrors.NotFound("hospital")
	}
	h := f.hospital
	return &h, nil
}

func (f *fakeDirectory) ListDoctorsForHospital(_ context.Context, id uuid.UUID) ([]directory.Doctor, error) {
	if id != f.hospital.ID {
		return nil, apperrors.NotFound("hospital")
	}
	return append([]directory.Doctor(nil), f.doctors...), nil
}

type fakeResolver struct {
	mu      sync.Mutex
	slots   map[string][]scheduling.Slot
	resolve int
	err     error
}

func (f *fakeResolver) Resolve(_ context.Context, _, _ uuid.UUID, date time.Time) ([]scheduling.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolve++
	if f.err != nil {
		return nil, f.err
	}
	return append([]scheduling.Slot{}, f.slots[availability.FormatDate(date)]...), nil
}

func (f *fakeResolver) IsSelectable(_ context.Context, _, _ uuid.UUID, date time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.slots[availability.FormatDate(date)]) > 0, nil
}

func (f *fakeResolver) Location() *time.Location { return time.UTC }

func (f *fakeResolver) fill(date, at string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.slots[date] {
		if f.slots[date][i].Time == at {
			f.slots[date][i].BookedCount = f.slots[date][i].Capacity
			f.slots[date][i].Available = false
		}
	}
}

type fakeCommitter struct {
	mu      sync.Mutex
	calls   []scheduling.BookingRequest
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeCommitter) Commit(_ context.Context, req scheduling.BookingRequest) (*scheduling.Appointment, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &scheduling.Appointment{
		ID: uuid.New(), DoctorID: req.DoctorID, HospitalID: req.HospitalID,
		AppointmentDate: req.Date, AppointmentTime: req.Time, Status: scheduling.StatusPending,
		ReasonForVisit: req.Reason, Notes: req.Notes,
	}, nil
}

func (f *fakeCommitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeProfiles struct {
	profile *identity.Profile
	err     error
}

func (f *fakeProfiles) CurrentUser(context.Context) (*identity.Profile, error) {
	return f.profile, f.err
}

// -- Fixture --

type wizardFixture struct {
	hospitalID uuid.UUID
	doctorA    uuid.UUID
	doctorB    uuid.UUID
	store      *MemoryStore
	resolver   *fakeResolver
	committer  *fakeCommitter
	profiles   *fakeProfiles
	wizard     *Wizard
}

func newWizardFixture() *wizardFixture {
	f := &wizardFixture{
		hospitalID: uuid.New(),
		doctorA:    uuid.New(),
		doctorB:    uuid.New(),
		store:      NewMemoryStore(time.Hour),
		committer:  &fakeCommitter{},
		profiles: &fakeProfiles{profile: &identity.Profile{
			UserID: "user-1", FullName: "Ana Lima", Email: "ana@example.com", Phone: "+15550100",
		}},
		resolver: &fakeResolver{slots: map[string][]scheduling.Slot{
			"2030-01-07": {
				{Date: "2030-01-07", Time: "09:00", Capacity: 2, Available: true},
				{Date: "2030-01-07", Time: "09:30", Capacity: 2, BookedCount: 2, Available: false},
			},
			"2030-01-08": {
				{Date: "2030-01-08", Time: "10:00", Capacity: 1, Available: true},
			},
		}},
	}
	dir := &fakeDirectory{
		hospital: directory.Hospital{ID: f.hospitalID, Name: "St. Mary"},
		doctors: []directory.Doctor{
			{ID: f.doctorA, FullName: "Dr. Adams"},
			{ID: f.doctorB, FullName: "Dr. Baker"},
		},
	}
	f.wizard = New(f.store, dir, f.resolver, f.committer, f.profiles, nil, zerolog.Nop())
	f.wizard.now = func() time.Time { return t0 }
	return f
}

func userContext(id string) context.Context {
	return auth.WithPrincipal(context.Background(), &auth.Principal{UserID: id, Roles: []string{auth.RolePatient}})
}

func completePatient() *PatientInfo {
	return &PatientInfo{
		Details: identity.Details{
			FullName: "Ana Lima", Phone: "+15550100", Email: "ana@example.com",
			DateOfBirth: time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC), Gender: "female",
		},
		Reason: "persistent cough",
	}
}

// toConfirmation walks a new session through every step.
func (f *wizardFixture) toConfirmation(t *testing.T, ctx context.Context) uuid.UUID {
	t.Helper()
	v, err := f.wizard.Start(ctx, f.hospitalID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := v.State.ID
	steps := []StepInput{
		{},
		{DoctorID: f.doctorA},
		{Date: "2030-01-07", Time: "09:00"},
		{Patient: completePatient()},
	}
	for i, in := range steps {
		if _, err := f.wizard.Complete(ctx, id, in); err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
	}
	got, _ := f.store.Get(ctx, id)
	if got.Step != StepConfirmation {
		t.Fatalf("expected confirmation, got %s", got.Step)
	}
	return id
}

// -- Tests --

func TestWizard_HappyPath(t *testing.T) {
	f := newWizardFixture()
	ctx := userContext("user-1")
	id := f.toConfirmation(t, ctx)

	v, err := f.wizard.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v.Doctor == nil || v.Doctor.ID != f.doctorA {
		t.Errorf("confirmation should show the chosen doctor, got %+v", v.Doctor)
	}
	if f.committer.count() != 0 {
		t.Fatal("nothing may be committed before confirmation")
	}

	res, err := f.wizard.Commit(ctx, id)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Appointment == nil || !res.State.Completed() {
		t.Fatalf("expected completed session, got %+v", res)
	}
	req := f.committer.calls[0]
	if req.DoctorID != f.doctorA || req.HospitalID != f.hospitalID || req.Time != "09:00" ||
		availability.FormatDate(req.Date) != "2030-01-07" || req.PatientAuthID != "user-1" {
		t.Errorf("unexpected booking request: %+v", req)
	}
	if req.Reason != "persistent cough" {
		t.Errorf("expected reason to be passed through, got %q", req.Reason)
	}

	if _, err := f.wizard.Commit(ctx, id); apperrors.KindOf(err) != apperrors.KindConflict {
		t.Errorf("a completed session must not commit again, got %v", err)
	}
}

func TestWizard_Start_UnknownHospital(t *testing.T) {
	f := newWizardFixture()
	if _, err := f.wizard.Start(context.Background(), uuid.New()); !apperrors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := f.wizard.Start(context.Background(), uuid.Nil); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestWizard_DoctorSelection(t *testing.T) {
	f := newWizardFixture()
	ctx := userContext("user-1")
	v, _ := f.wizard.Start(ctx, f.hospitalID)
	id := v.State.ID

	v, err := f.wizard.Complete(ctx, id, StepInput{})
	if err != nil {
		t.Fatalf("facility review: %v", err)
	}
	if len(v.Doctors) != 2 {
		t.Errorf("doctor selection should list the hospital's doctors, got %d", len(v.Doctors))
	}

	if _, err := f.wizard.Complete(ctx, id, StepInput{}); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error without a doctor, got %v", err)
	}
	if _, err := f.wizard.Complete(ctx, id, StepInput{DoctorID: uuid.New()}); !apperrors.IsNotFound(err) {
		t.Errorf("expected not found for a doctor outside the hospital, got %v", err)
	}
	s, _ := f.store.Get(ctx, id)
	if s.Step != StepDoctorSelection || s.DoctorID != uuid.Nil {
		t.Errorf("errors must leave the session untouched, got %+v", s)
	}
}

func TestWizard_TimeSelection(t *testing.T) {
	f := newWizardFixture()
	ctx := userContext("user-1")
	v, _ := f.wizard.Start(ctx, f.hospitalID)
	id := v.State.ID
	_, _ = f.wizard.Complete(ctx, id, StepInput{})
	_, _ = f.wizard.Complete(ctx, id, StepInput{DoctorID: f.doctorA})

	tests := []struct {
		name string
		in   StepInput
		kind apperrors.Kind
	}{
		{"missing date", StepInput{}, apperrors.KindValidation},
		{"malformed date", StepInput{Date: "07-01-2030"}, apperrors.KindValidation},
		{"day without slots", StepInput{Date: "2030-01-09", Time: "09:00"}, apperrors.KindValidation},
		{"time not a slot", StepInput{Date: "2030-01-07", Time: "09:15"}, apperrors.KindValidation},
		{"full slot", StepInput{Date: "2030-01-07", Time: "09:30"}, apperrors.KindCapacity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.wizard.Complete(ctx, id, tt.in); apperrors.KindOf(err) != tt.kind {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}

	v, err := f.wizard.Complete(ctx, id, StepInput{Date: "2030-01-07"})
	if err != nil {
		t.Fatalf("select date: %v", err)
	}
	if v.State.Step != StepTimeSelection || v.State.Date != "2030-01-07" {
		t.Errorf("picking a day should stay on time selection, got %+v", v.State)
	}
	if len(v.Slots) != 2 {
		t.Errorf("expected the day's slots in the view, got %d", len(v.Slots))
	}

	v, err = f.wizard.Complete(ctx, id, StepInput{Time: "09:00:00"})
	if err != nil {
		t.Fatalf("select time: %v", err)
	}
	if v.State.Step != StepPatientInfo || v.State.Time != "09:00" {
		t.Errorf("expected patient info with normalized time, got %+v", v.State)
	}
}

func TestWizard_TimeSelection_DuplicateSlotTimes(t *testing.T) {
	f := newWizardFixture()
	f.resolver.slots["2030-01-07"] = []scheduling.Slot{
		{Date: "2030-01-07", Time: "11:00", Capacity: 1, BookedCount: 1, Available: false},
		{Date: "2030-01-07", Time: "11:00", Capacity: 3, BookedCount: 1, Available: true},
	}
	ctx := userContext("user-1")
	v, _ := f.wizard.Start(ctx, f.hospitalID)
	id := v.State.ID
	_, _ = f.wizard.Complete(ctx, id, StepInput{})
	_, _ = f.wizard.Complete(ctx, id, StepInput{DoctorID: f.doctorA})

	v, err := f.wizard.Complete(ctx, id, StepInput{Date: "2030-01-07", Time: "11:00"})
	if err != nil {
		t.Fatalf("a time with an available duplicate must be accepted: %v", err)
	}
	if v.State.Step != StepPatientInfo {
		t.Errorf("expected patient info, got %s", v.State.Step)
	}
}

func TestWizard_BackNavigationPreservesData(t *testing.T) {
	f := newWizardFixture()
	ctx := userContext("user-1")
	v, _ := f.wizard.Start(ctx, f.hospitalID)
	id := v.State.ID
	_, _ = f.wizard.Complete(ctx, id, StepInput{})
	_, _ = f.wizard.Complete(ctx, id, StepInput{DoctorID: f.doctorA})
	_, _ = f.wizard.Complete(ctx, id, StepInput{Date: "2030-01-07", Time: "09:00"})

	if _, err := f.wizard.Back(ctx, id); err != nil {
		t.Fatalf("back to time selection: %v", err)
	}
	v, err := f.wizard.Back(ctx, id)
	if err != nil {
		t.Fatalf("back to doctor selection: %v", err)
	}
	if v.State.Step != StepDoctorSelection || v.State.Time != "09:00" || v.State.Date != "2030-01-07" {
		t.Fatalf("going back must keep later data, got %+v", v.State)
	}

	v, err = f.wizard.Complete(ctx, id, StepInput{})
	if err != nil {
		t.Fatalf("re-confirm doctor: %v", err)
	}
	if v.State.Step != StepTimeSelection || v.State.Time != "09:00" {
		t.Fatalf("time should still be populated, got %+v", v.State)
	}

	v, err = f.wizard.Complete(ctx, id, StepInput{})
	if err != nil {
		t.Fatalf("re-confirm time: %v", err)
	}
	if v.State.Step != StepPatientInfo {
		t.Errorf("expected patient info, got %s", v.State.Step)
	}
}

func TestWizard_RetainedTimeIsRevalidated(t *testing.T) {
	f := newWizardFixture()
	ctx := userContext("user-1")
	v, _ := f.wizard.Start(ctx, f.hospitalID)
	id := v.State.ID
	_, _ = f.wizard.Complete(ctx, id, StepInput{})
	_, _ = f.wizard.Complete(ctx, id, StepInput{DoctorID: f.doctorA})
	_, _ = f.wizard.Complete(ctx, id, StepInput{Date: "2030-01-07", Time: "09:00"})
	_, _ = f.wizard.Back(ctx, id)

	f.resolver.fill("2030-01-07", "09:00")
	if _, err := f.wizard.Complete(ctx, id, StepInput{}); !apperrors.IsCapacity(err) {
		t.Fatalf("a retained slot that filled up must be rejected, got %v", err)
	}
	s, _ := f.store.Get(ctx, id)
	if s.Time != "09:00" || s.Step != StepTimeSelection {
		t.Errorf("rejection must not destroy the selection, got %+v", s)
	}
}

func TestWizard_DateChangeClearsTime(t *testing.T) {
	f := newWizardFixture()
	ctx := userContext("user-1")
	v, _ := f.wizard.Start(ctx, f.hospitalID)
	id := v.State.ID
	_, _ = f.wizard.Complete(ctx, id, StepInput{})
	_, _ = f.wizard.Complete(ctx, id, StepInput{DoctorID: f.doctorA})
	_, _ = f.wizard.Complete(ctx, id, StepInput{Date: "2030-01-07", Time: "09:00"})
	_, _ = f.wizard.Back(ctx, id)

	v, err := f.wizard.Complete(ctx, id, StepInput{Date: "2030-01-08"})
	if err != nil {
		t.Fatalf("change date: %v", err)
	}
	if v.State.Time != "" || v.State.Step != StepTimeSelection {
		t.Fatalf("a new date must clear the time and stay on the step, got %+v", v.State)
	}

	// A confirm without a time cannot advance to a time resolved for another day.
	v, err = f.wizard.Complete(ctx, id, StepInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.State.Step != StepTimeSelection {
		t.Errorf("expected to stay on time selection, got %s", v.State.Step)
	}
	if _, err := f.wizard.Complete(ctx, id, StepInput{Time: "09:00"}); !apperrors.IsValidation(err) {
		t.Errorf("09:00 is not a slot on the new date, got %v", err)
	}
}

func TestWizard_PatientInfoPrefill(t *testing.T) {
	f := newWizardFixture()
	ctx := userContext("user-1")
	v, _ := f.wizard.Start(ctx, f.hospitalID)
	id := v.State.ID
	_, _ = f.wizard.Complete(ctx, id, StepInput{})
	_, _ = f.wizard.Complete(ctx, id, StepInput{DoctorID: f.doctorA})
	v, err := f.wizard.Complete(ctx, id, StepInput{Date: "2030-01-07", Time: "09:00"})
	if err != nil {
		t.Fatalf("time selection: %v", err)
	}
	d := v.State.Patient.Details
	if !v.State.Prefilled || d.FullName != "Ana Lima" || d.Email != "ana@example.com" {
		t.Errorf("expected profile pre-fill, got %+v", v.State.Patient)
	}

	// Pre-filled values are incomplete until the patient adds the rest.
	if _, err := f.wizard.Complete(ctx, id, StepInput{}); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error for missing fields, got %v", err)
	}

	info := completePatient()
	info.Details.FullName = "Ana M. Lima"
	v, err = f.wizard.Complete(ctx, id, StepInput{Patient: info})
	if err != nil {
		t.Fatalf("patient info: %v", err)
	}
	if v.State.Step != StepConfirmation || v.State.Patient.Details.FullName != "Ana M. Lima" {
		t.Errorf("edited values should be kept, got %+v", v.State)
	}
}

func TestWizard_PrefillFailureIsIgnored(t *testing.T) {
	f := newWizardFixture()
	f.profiles.err = errors.New("identity service down")
	ctx := userContext("user-1")
	v, _ := f.wizard.Start(ctx, f.hospitalID)
	id := v.State.ID
	_, _ = f.wizard.Complete(ctx, id, StepInput{})
	_, _ = f.wizard.Complete(ctx, id, StepInput{DoctorID: f.doctorA})

	v, err := f.wizard.Complete(ctx, id, StepInput{Date: "2030-01-07", Time: "09:00"})
	if err != nil {
		t.Fatalf("a failed pre-fill must not block the flow: %v", err)
	}
	if v.State.Step != StepPatientInfo || v.State.Prefilled {
		t.Errorf("unexpected state: %+v", v.State)
	}
}

func TestWizard_CommitCapacityReturnsToTimeSelection(t *testing.T) {
	f := newWizardFixture()
	ctx := userContext("user-1")
	id := f.toConfirmation(t, ctx)
	f.committer.err = apperrors.Capacity("the 09:00 slot on 2030-01-07 is fully booked")
	f.resolver.fill("2030-01-07", "09:00")

	before := f.resolver.resolve
	if _, err := f.wizard.Commit(ctx, id); !apperrors.IsCapacity(err) {
		t.Fatalf("expected capacity error, got %v", err)
	}

	v, err := f.wizard.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	s := v.State
	if s.Step != StepTimeSelection || !s.ForceResolve || s.Committing {
		t.Errorf("expected time selection with forced re-resolve, got %+v", s)
	}
	if s.Patient.Details.FullName != "Ana Lima" || s.Patient.Reason != "persistent cough" {
		t.Errorf("patient info must survive a capacity error, got %+v", s.Patient)
	}
	if f.resolver.resolve == before || len(v.Slots) == 0 || v.Slots[0].Available {
		t.Errorf("view should carry freshly resolved slots, got %+v", v.Slots)
	}

	f.committer.err = nil
	v, err = f.wizard.Complete(ctx, id, StepInput{Date: "2030-01-08", Time: "10:00"})
	if err != nil {
		t.Fatalf("pick another slot: %v", err)
	}
	if v.State.ForceResolve {
		t.Error("picking a new time clears the re-resolve flag")
	}
	_, _ = f.wizard.Complete(ctx, id, StepInput{})
	if _, err := f.wizard.Commit(ctx, id); err != nil {
		t.Fatalf("retry commit: %v", err)
	}
}

func TestWizard_CommitTransientKeepsConfirmation(t *testing.T) {
	f := newWizardFixture()
	ctx := userContext("user-1")
	id := f.toConfirmation(t, ctx)
	f.committer.err = apperrors.Transient("booking could not be saved", errors.New("connection reset"))

	if _, err := f.wizard.Commit(ctx, id); !apperrors.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	s, _ := f.store.Get(ctx, id)
	if s.Step != StepConfirmation || s.Committing || s.LastError == "" {
		t.Errorf("expected confirmation ready for retry, got %+v", s)
	}
	if f.committer.count() != 1 {
		t.Errorf("commit must not be retried automatically, got %d calls", f.committer.count())
	}

	f.committer.err = nil
	if _, err := f.wizard.Commit(ctx, id); err != nil {
		t.Fatalf("manual retry: %v", err)
	}
}

func TestWizard_DuplicateCommitRejected(t *testing.T) {
	f := newWizardFixture()
	ctx := userContext("user-1")
	id := f.toConfirmation(t, ctx)
	f.committer.started = make(chan struct{}, 1)
	f.committer.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.wizard.Commit(ctx, id)
		done <- err
	}()
	<-f.committer.started

	if _, err := f.wizard.Commit(ctx, id); apperrors.KindOf(err) != apperrors.KindConflict {
		t.Errorf("second submission should conflict, got %v", err)
	}
	if _, err := f.wizard.Back(ctx, id); apperrors.KindOf(err) != apperrors.KindConflict {
		t.Errorf("navigation during a commit should conflict, got %v", err)
	}

	close(f.committer.release)
	if err := <-done; err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if f.committer.count() != 1 {
		t.Errorf("expected exactly one commit, got %d", f.committer.count())
	}
}

func TestWizard_CommitRequiresConfirmationAndIdentity(t *testing.T) {
	f := newWizardFixture()
	ctx := userContext("user-1")
	v, _ := f.wizard.Start(ctx, f.hospitalID)

	if _, err := f.wizard.Commit(ctx, v.State.ID); !apperrors.IsValidation(err) {
		t.Errorf("commit before confirmation should be a validation error, got %v", err)
	}
	if _, err := f.wizard.Commit(context.Background(), v.State.ID); apperrors.KindOf(err) != apperrors.KindUnauthorized {
		t.Errorf("anonymous commit should be unauthorized, got %v", err)
	}
	if f.committer.count() != 0 {
		t.Error("committer must not be called")
	}
}

func TestWizard_Cancel(t *testing.T) {
	f := newWizardFixture()
	ctx := userContext("user-1")
	id := f.toConfirmation(t, ctx)

	if err := f.wizard.Cancel(ctx, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.wizard.Get(ctx, id); !apperrors.IsNotFound(err) {
		t.Errorf("cancelled session should be gone, got %v", err)
	}
	if f.committer.count() != 0 {
		t.Error("cancel must not write a booking")
	}
}

func TestWizard_SessionsArePrivate(t *testing.T) {
	f := newWizardFixture()
	v, _ := f.wizard.Start(userContext("user-1"), f.hospitalID)

	if _, err := f.wizard.Get(userContext("user-2"), v.State.ID); !apperrors.IsNotFound(err) {
		t.Errorf("another user's session should be hidden, got %v", err)
	}
	if err := f.wizard.Cancel(userContext("user-2"), v.State.ID); !apperrors.IsNotFound(err) {
		t.Errorf("another user cannot cancel, got %v", err)
	}
}
