package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository mutations are scoped to the owning patient: an id that
// belongs to someone else reports not found and changes nothing.
type Repository interface {
	List(ctx context.Context, patientID uuid.UUID, f Filter) ([]*Reminder, error)
	Get(ctx context.Context, id, patientID uuid.UUID) (*Reminder, error)
	Create(ctx context.Context, r *Reminder) error
	MarkTaken(ctx context.Context, id, patientID uuid.UUID, takenAt *time.Time, notes *string) (*Reminder, error)
	Snooze(ctx context.Context, id, patientID uuid.UUID, until time.Time) (*Reminder, error)
	SetStatus(ctx context.Context, id, patientID uuid.UUID, status Status) (*Reminder, error)
}
