package identity

import (
	"context"
)

type PatientRepository interface {
	// Upsert creates the patient for p.AuthUserID or refreshes its details,
	// filling p.ID and timestamps from the stored row.
	Upsert(ctx context.Context, p *Patient) error
	GetByAuthUserID(ctx context.Context, authUserID string) (*Patient, error)
}
