package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type WindowRepository interface {
	Create(ctx context.Context, w *Window) error
	GetByID(ctx context.Context, id uuid.UUID) (*Window, error)
	Update(ctx context.Context, w *Window) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f WindowFilter) ([]*Window, error)
}

type BlackoutRepository interface {
	Create(ctx context.Context, b *Blackout) error
	GetByID(ctx context.Context, id uuid.UUID) (*Blackout, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByDoctor returns blackouts in [from, to], ordered by date.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Blackout, error)
}
