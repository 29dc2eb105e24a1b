package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/medibook/medibook/internal/domain/identity"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

var validAppointmentStatuses = map[string]bool{
	StatusPending: true, StatusConfirmed: true, StatusCompleted: true,
	StatusCancelled: true, StatusNoShow: true,
}

// activeStatuses are the statuses that hold a place in a slot.
var activeStatuses = []string{StatusPending, StatusConfirmed}

// occupiesCapacity reports whether an appointment in status counts against
// its slot's capacity.
func occupiesCapacity(status string) bool {
	for _, s := range activeStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// statusTransitions lists the statuses each status may move to.
var statusTransitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

func canTransition(from, to string) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	DoctorID        uuid.UUID `db:"doctor_id" json:"doctor_id"`
	HospitalID      uuid.UUID `db:"hospital_id" json:"hospital_id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	AppointmentDate time.Time `db:"appointment_date" json:"appointment_date"`
	AppointmentTime string    `db:"appointment_time" json:"appointment_time"`
	Status          string    `db:"status" json:"status"`
	ReasonForVisit  string    `db:"reason_for_visit" json:"reason_for_visit"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Slot is the occupancy of one generated slot. It is computed on every read.
type Slot struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Capacity    int    `json:"capacity"`
	BookedCount int    `json:"booked_count"`
	Available   bool   `json:"available"`
}

// Day is one column of the week calendar.
type Day struct {
	Date           string `json:"date"`
	Weekday        string `json:"weekday"`
	Selectable     bool   `json:"selectable"`
	SlotCount      int    `json:"slot_count"`
	AvailableCount int    `json:"available_count"`
}

// Week is the calendar view used for week-by-week navigation.
type Week struct {
	DoctorID   uuid.UUID `json:"doctor_id"`
	HospitalID uuid.UUID `json:"hospital_id"`
	Start      string    `json:"start"`
	Days       []Day     `json:"days"`
}

// BookingRequest is everything the committer needs to write an appointment.
type BookingRequest struct {
	DoctorID      uuid.UUID        `json:"doctor_id"`
	HospitalID    uuid.UUID        `json:"hospital_id"`
	Date          time.Time        `json:"date"`
	Time          string           `json:"time"`
	PatientAuthID string           `json:"-"`
	Patient       identity.Details `json:"patient"`
	Reason        string           `json:"reason_for_visit"`
	Notes         *string          `json:"notes,omitempty"`
}

// AppointmentFilter narrows appointment listings. Zero values are ignored.
type AppointmentFilter struct {
	DoctorID   uuid.UUID
	HospitalID uuid.UUID
	PatientID  uuid.UUID
	Date       *time.Time
	Status     string
}
