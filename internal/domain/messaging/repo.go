package messaging

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]*Message, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	// Create stores m and fills its timestamps and sender display fields.
	Create(ctx context.Context, m *Message) error
	MarkRead(ctx context.Context, id uuid.UUID) (*Message, error)
	// MarkAllRead marks every message in the consultation not sent by
	// readerID as read and returns how many changed.
	MarkAllRead(ctx context.Context, consultationID, readerID uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, consultationID, readerID uuid.UUID) (int, error)
}
