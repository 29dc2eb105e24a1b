package identity

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/medibook/medibook/internal/platform/auth"
	"github.com/medibook/medibook/pkg/apperrors"
	"github.com/medibook/medibook/pkg/retry"
)

// Provider answers "who is booking" from the request's auth principal and the
// patient record stored on a previous booking.
type Provider struct {
	patients PatientRepository
	retry    retry.Config
	logger   zerolog.Logger
}

func NewProvider(patients PatientRepository, attempts int, logger zerolog.Logger) *Provider {
	cfg := retry.ProfileConfig()
	if attempts > 0 {
		cfg.MaxAttempts = attempts
	}
	cfg.Retryable = apperrors.IsTransient
	return &Provider{patients: patients, retry: cfg, logger: logger}
}

// CurrentUser returns nil for anonymous requests. The stored patient record
// wins over token claims. A failed lookup degrades to the claims alone since
// the result is only used to pre-fill a form.
func (p *Provider) CurrentUser(ctx context.Context) (*Profile, error) {
	principal := auth.PrincipalFromContext(ctx)
	if principal == nil || principal.UserID == "" {
		return nil, nil
	}
	profile := &Profile{
		UserID:   principal.UserID,
		Email:    principal.Email,
		Phone:    principal.Phone,
		FullName: principal.FullName,
	}

	var stored *Patient
	err := retry.Do(ctx, p.retry, func(ctx context.Context) error {
		var err error
		stored, err = p.patients.GetByAuthUserID(ctx, principal.UserID)
		return err
	})
	switch {
	case err == nil:
		mergePatient(profile, stored)
	case apperrors.IsNotFound(err):
	default:
		p.logger.Warn().Err(err).Str("auth_user_id", principal.UserID).Msg("patient profile lookup failed")
	}
	return profile, nil
}

func mergePatient(profile *Profile, stored *Patient) {
	if stored.FullName != "" {
		profile.FullName = stored.FullName
	}
	if stored.Phone != "" {
		profile.Phone = stored.Phone
	}
	if stored.Email != "" {
		profile.Email = stored.Email
	}
	if !stored.DateOfBirth.IsZero() {
		dob := stored.DateOfBirth
		profile.DateOfBirth = &dob
	}
	profile.Gender = stored.Gender
}
