package directory

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the read-only facility and doctor directory.
type Repository interface {
	GetHospital(ctx context.Context, id uuid.UUID) (*Hospital, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	// ListDoctorsForHospital returns the doctors associated with a hospital, ordered by name.
	ListDoctorsForHospital(ctx context.Context, hospitalID uuid.UUID) ([]Doctor, error)
}
