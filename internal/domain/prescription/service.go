package prescription

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/telehealth/internal/domain/consultation"
	"github.com/ehr/telehealth/internal/domain/identity"
	"github.com/ehr/telehealth/internal/platform/apperr"
	"github.com/ehr/telehealth/internal/platform/metrics"
)

// Consultations is satisfied by *consultation.Service.
type Consultations interface {
	Authorize(ctx context.Context, id uuid.UUID, caller *identity.Caller) (*consultation.Access, error)
	HasConsulted(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
}

type Service struct {
	repo          Repository
	consultations Consultations
	now           func() time.Time
}

func NewService(repo Repository, consultations Consultations) *Service {
	return &Service{repo: repo, consultations: consultations, now: time.Now}
}

func (s *Service) degraded(ctx context.Context, op string, err error) []*Prescription {
	zerolog.Ctx(ctx).Error().Err(err).Msg(op)
	metrics.StoreErrors.WithLabelValues("prescription").Inc()
	return []*Prescription{}
}

// ListForPatient returns the caller's own prescriptions, newest first.
// The query is always bound to the caller's patient profile.
func (s *Service) ListForPatient(ctx context.Context, caller *identity.Caller, f Filter) []*Prescription {
	if !caller.IsPatient() {
		return []*Prescription{}
	}
	out, err := s.repo.ListByPatient(ctx, caller.PatientID, f)
	if err != nil {
		return s.degraded(ctx, "list patient prescriptions", err)
	}
	if out == nil {
		out = []*Prescription{}
	}
	return out
}

// ListForDoctor returns the prescriptions the calling doctor issued.
func (s *Service) ListForDoctor(ctx context.Context, caller *identity.Caller, f Filter) []*Prescription {
	if !caller.IsDoctor() {
		return []*Prescription{}
	}
	out, err := s.repo.ListByDoctor(ctx, caller.DoctorID, f)
	if err != nil {
		return s.degraded(ctx, "list doctor prescriptions", err)
	}
	if out == nil {
		out = []*Prescription{}
	}
	return out
}

func (s *Service) Get(ctx context.Context, caller *identity.Caller, id uuid.UUID) (*Prescription, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("sign in to view prescriptions")
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("load prescription", err)
	}
	switch {
	case caller.IsPatient() && p.PatientID == caller.PatientID:
		return p, nil
	case caller.IsDoctor() && p.DoctorID == caller.DoctorID:
		return p, nil
	}
	metrics.AccessDenied.WithLabelValues(string(caller.Role), "prescription").Inc()
	return nil, apperr.Unauthorized("this prescription belongs to another patient")
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Create issues a prescription. The doctor must be treating the patient:
// either the named consultation is theirs with that patient, or they have
// consulted the patient before.
func (s *Service) Create(ctx context.Context, caller *identity.Caller, in CreateInput) (*Prescription, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("sign in to prescribe")
	}
	if !caller.IsDoctor() {
		return nil, apperr.Unauthorized("only doctors can issue prescriptions")
	}

	in.MedicationName = strings.TrimSpace(in.MedicationName)
	in.Dosage = strings.TrimSpace(in.Dosage)
	in.Frequency = strings.TrimSpace(in.Frequency)
	switch {
	case in.MedicationName == "":
		return nil, apperr.Invalid("medicationName is required")
	case in.Dosage == "":
		return nil, apperr.Invalid("dosage is required")
	case in.Frequency == "":
		return nil, apperr.Invalid("frequency is required")
	case in.Refills < 0 || in.Refills > maxRefills:
		return nil, apperr.Invalid("refills must be between 0 and %d", maxRefills)
	case in.Quantity != nil && *in.Quantity <= 0:
		return nil, apperr.Invalid("quantity must be positive")
	case in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()):
		return nil, apperr.Invalid("expiresAt must be in the future")
	}

	if in.ConsultationID != nil {
		access, err := s.consultations.Authorize(ctx, *in.ConsultationID, caller)
		if err != nil {
			return nil, err
		}
		if in.PatientID == uuid.Nil {
			in.PatientID = access.Consultation.PatientID
		}
		if access.Consultation.PatientID != in.PatientID {
			return nil, apperr.Invalid("patient does not match the consultation")
		}
	} else {
		if in.PatientID == uuid.Nil {
			return nil, apperr.Invalid("patientId is required")
		}
		ok, err := s.consultations.HasConsulted(ctx, caller.DoctorID, in.PatientID)
		if err != nil {
			return nil, err
		}
		if !ok {
			metrics.AccessDenied.WithLabelValues(string(caller.Role), "prescription").Inc()
			return nil, apperr.Unauthorized("you have no consultations with this patient")
		}
	}

	p := &Prescription{
		ID:              uuid.New(),
		ConsultationID:  in.ConsultationID,
		PatientID:       in.PatientID,
		DoctorID:        caller.DoctorID,
		MedicationName:  in.MedicationName,
		Dosage:          in.Dosage,
		Frequency:       in.Frequency,
		Duration:        optional(in.Duration),
		Quantity:        in.Quantity,
		Refills:         in.Refills,
		Instructions:    optional(in.Instructions),
		PharmacyName:    optional(in.PharmacyName),
		PharmacyAddress: optional(in.PharmacyAddress),
		Status:          StatusPending,
		IsActive:        true,
		ExpiresAt:       in.ExpiresAt,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, apperr.Internal("create prescription", err)
	}
	zerolog.Ctx(ctx).Info().
		Str("prescription_id", p.ID.String()).
		Str("doctor_id", caller.DoctorID.String()).
		Msg("prescription issued")
	return p, nil
}

// Discontinue cancels a prescription the caller issued. Prescriptions
// issued by other doctors read as not found.
func (s *Service) Discontinue(ctx context.Context, caller *identity.Caller, id uuid.UUID) (*Prescription, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("sign in to update prescriptions")
	}
	if !caller.IsDoctor() {
		return nil, apperr.Unauthorized("only the prescribing doctor can discontinue a prescription")
	}
	p, err := s.repo.Discontinue(ctx, id, caller.DoctorID)
	if err != nil {
		return nil, apperr.Internal("discontinue prescription", err)
	}
	return p, nil
}
