package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BookedSlotIndex reports the booked times of a doctor on one date.
type BookedSlotIndex interface {
	// BookedTimes returns one "HH:MM" entry per pending or confirmed
	// appointment, so a time booked twice appears twice.
	BookedTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error)
}

type AppointmentRepository interface {
	BookedSlotIndex
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateStatus moves the appointment from one status to another. It
	// returns a conflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
	List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error)
	// CountActive counts pending and confirmed appointments in one slot.
	CountActive(ctx context.Context, doctorID uuid.UUID, date time.Time, at string) (int, error)
}
