package prescription

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID, f Filter) ([]*Prescription, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, f Filter) ([]*Prescription, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	Create(ctx context.Context, p *Prescription) error
	// Discontinue deactivates the prescription only if doctorID issued it.
	Discontinue(ctx context.Context, id, doctorID uuid.UUID) (*Prescription, error)
}
