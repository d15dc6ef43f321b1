package earnings

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository reads completed consultations of one doctor. Month
// boundaries are passed in so the caller owns the clock.
type Repository interface {
	Totals(ctx context.Context, doctorID uuid.UUID, thisMonth, lastMonth time.Time) (*Totals, error)
	Monthly(ctx context.Context, doctorID uuid.UUID, since time.Time) ([]MonthAmount, error)
	Transactions(ctx context.Context, doctorID uuid.UUID, limit int) ([]*Transaction, error)
}
