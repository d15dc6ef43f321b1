package records

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SymptomRepository interface {
	// ListByPatient returns symptoms newest first; activeOnly drops
	// resolved ones.
	ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Symptom, error)
	Create(ctx context.Context, s *Symptom) error
	// Resolve stamps resolved_date on a symptom owned by patientID. A
	// symptom already resolved keeps its first date.
	Resolve(ctx context.Context, id, patientID uuid.UUID, at time.Time) (*Symptom, error)
}
