package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medibook/medibook/internal/domain/identity"
	"github.com/medibook/medibook/internal/platform/auth"
	"github.com/medibook/medibook/pkg/apperrors"
)

// Service manages booked appointments after they have been committed.
type Service struct {
	appts    AppointmentRepository
	patients identity.PatientRepository
	logger   zerolog.Logger
}

func NewService(appts AppointmentRepository, patients identity.PatientRepository, logger zerolog.Logger) *Service {
	return &Service{appts: appts, patients: patients, logger: logger}
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListAppointments restricts patients to their own appointments.
func (s *Service) ListAppointments(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !validAppointmentStatuses[f.Status] {
		return nil, 0, apperrors.Validation("status", fmt.Sprintf("invalid appointment status: %s", f.Status))
	}
	p := auth.PrincipalFromContext(ctx)
	if p != nil && !p.HasRole(auth.RoleDoctor) {
		patient, err := s.patients.GetByAuthUserID(ctx, p.UserID)
		if apperrors.IsNotFound(err) {
			return []*Appointment{}, 0, nil
		}
		if err != nil {
			return nil, 0, err
		}
		f.PatientID = patient.ID
	}
	return s.appts.List(ctx, f, limit, offset)
}

// UpdateStatus moves an appointment along its lifecycle. Cancelled and
// no-show appointments stop counting against their slot immediately.
// Patients may only cancel their own appointments. The write only applies
// if the status read here is still current, so a stale request cannot revive
// a cancelled appointment whose place has been rebooked.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	if !validAppointmentStatuses[status] {
		return nil, apperrors.Validation("status", fmt.Sprintf("invalid appointment status: %s", status))
	}
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p := auth.PrincipalFromContext(ctx)
	if p != nil && !p.HasRole(auth.RoleDoctor) {
		if err := s.authorizeView(ctx, a); err != nil {
			return nil, err
		}
		if status != StatusCancelled {
			return nil, apperrors.Conflict("patients may only cancel appointments")
		}
	}

	if !canTransition(a.Status, status) {
		return nil, apperrors.Conflict(fmt.Sprintf("cannot change appointment status from %s to %s", a.Status, status))
	}
	if err := s.appts.UpdateStatus(ctx, id, a.Status, status); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("from", a.Status).
		Str("to", status).
		Bool("releases_slot", occupiesCapacity(a.Status) && !occupiesCapacity(status)).
		Msg("appointment status changed")
	a.Status = status
	return a, nil
}

// authorizeView hides other patients' appointments behind a not found error.
func (s *Service) authorizeView(ctx context.Context, a *Appointment) error {
	p := auth.PrincipalFromContext(ctx)
	if p == nil || p.HasRole(auth.RoleDoctor) {
		return nil
	}
	patient, err := s.patients.GetByAuthUserID(ctx, p.UserID)
	if apperrors.IsNotFound(err) {
		return apperrors.NotFound("appointment")
	}
	if err != nil {
		return err
	}
	if patient.ID != a.PatientID {
		return apperrors.NotFound("appointment")
	}
	return nil
}
