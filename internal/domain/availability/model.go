package availability

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinSlotDuration = 15
	MaxSlotDuration = 120
	MinMaxPatients  = 1
	MaxMaxPatients  = 50
)

// Window is a recurring weekly availability block for a doctor at one
// hospital. Slots are derived from it on read and never stored.
type Window struct {
	ID           uuid.UUID `db:"id" json:"id"`
	DoctorID     uuid.UUID `db:"doctor_id" json:"doctor_id"`
	HospitalID   uuid.UUID `db:"hospital_id" json:"hospital_id"`
	DayOfWeek    int       `db:"day_of_week" json:"day_of_week"`
	StartTime    string    `db:"start_time" json:"start_time"`
	EndTime      string    `db:"end_time" json:"end_time"`
	SlotDuration int       `db:"slot_duration" json:"slot_duration"`
	MaxPatients  int       `db:"max_patients" json:"max_patients"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Covers reports whether a slot starting at t is generated by w.
func (w *Window) Covers(t Clock) bool {
	start, err := ParseClock(w.StartTime)
	if err != nil {
		return false
	}
	end, err := ParseClock(w.EndTime)
	if err != nil || w.SlotDuration <= 0 {
		return false
	}
	if t < start || t.Add(w.SlotDuration) > end {
		return false
	}
	return int(t-start)%w.SlotDuration == 0
}

// Blackout removes every slot a doctor has on one date. A nil HospitalID
// applies to all of the doctor's hospitals.
type Blackout struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	DoctorID   uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	HospitalID *uuid.UUID `db:"hospital_id" json:"hospital_id,omitempty"`
	Date       time.Time  `db:"date" json:"date"`
	Reason     *string    `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// AppliesTo reports whether the blackout covers hospitalID.
func (b *Blackout) AppliesTo(hospitalID uuid.UUID) bool {
	return b.HospitalID == nil || *b.HospitalID == hospitalID
}

// WindowFilter narrows window listings. Zero values are ignored.
type WindowFilter struct {
	DoctorID   uuid.UUID
	HospitalID uuid.UUID
	DayOfWeek  *int
	ActiveOnly bool
}
