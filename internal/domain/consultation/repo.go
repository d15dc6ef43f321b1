package consultation

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	GetView(ctx context.Context, id uuid.UUID) (*View, error)
	List(ctx context.Context, f Filter) ([]*View, error)
	Create(ctx context.Context, c *Consultation) error
	// UpdateNotes only touches a consultation owned by doctorID.
	UpdateNotes(ctx context.Context, id, doctorID uuid.UUID, in NotesInput) (*Consultation, error)
	// UpdateStatus moves id from one status to another and reports
	// not-found when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Consultation, error)
	MarkJoined(ctx context.Context, id uuid.UUID, as Participant) (*Consultation, error)
	DoctorPatients(ctx context.Context, doctorID uuid.UUID) ([]*PatientSummary, error)
	CountBetween(ctx context.Context, doctorID, patientID uuid.UUID) (int, error)
}
