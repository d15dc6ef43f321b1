package messaging

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/telehealth/internal/platform/apperr"
	"github.com/ehr/telehealth/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const msgSelect = `SELECT m.id, m.consultation_id, m.sender_id, m.content, m.message_type, m.status,
	m.attachment_url, m.attachment_name, m.reply_to_id, m.created_at, m.updated_at,
	u.first_name, u.last_name, u.role
	FROM messages m JOIN users u ON u.id = m.sender_id`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ConsultationID, &m.SenderID, &m.Content, &m.Type, &m.Status,
		&m.AttachmentURL, &m.AttachmentName, &m.ReplyToID, &m.CreatedAt, &m.UpdatedAt,
		&m.SenderFirstName, &m.SenderLastName, &m.SenderRole)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("message")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]*Message, error) {
	rows, err := r.conn(ctx).Query(ctx,
		msgSelect+` WHERE m.consultation_id = $1 ORDER BY m.created_at ASC, m.id`, consultationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	return scanMessage(r.conn(ctx).QueryRow(ctx, msgSelect+` WHERE m.id = $1`, id))
}

// Create inserts m and fills the stored timestamps and the sender fields
// ListByConsultation joins in, so a sent message has the same shape as a
// listed one.
func (r *repoPG) Create(ctx context.Context, m *Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		WITH ins AS (
			INSERT INTO messages (id, consultation_id, sender_id, content, message_type, status,
				attachment_url, attachment_name, reply_to_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			RETURNING sender_id, created_at, updated_at
		)
		SELECT ins.created_at, ins.updated_at, u.first_name, u.last_name, u.role
		FROM ins JOIN users u ON u.id = ins.sender_id`,
		m.ID, m.ConsultationID, m.SenderID, m.Content, m.Type, m.Status,
		m.AttachmentURL, m.AttachmentName, m.ReplyToID,
	).Scan(&m.CreatedAt, &m.UpdatedAt, &m.SenderFirstName, &m.SenderLastName, &m.SenderRole)
}

func (r *repoPG) MarkRead(ctx context.Context, id uuid.UUID) (*Message, error) {
	if _, err := r.conn(ctx).Exec(ctx,
		`UPDATE messages SET status = 'read', updated_at = NOW() WHERE id = $1 AND status <> 'read'`, id,
	); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *repoPG) MarkAllRead(ctx context.Context, consultationID, readerID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE messages SET status = 'read', updated_at = NOW()
		WHERE consultation_id = $1 AND sender_id <> $2 AND status <> 'read'`,
		consultationID, readerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) UnreadCount(ctx context.Context, consultationID, readerID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE consultation_id = $1 AND sender_id <> $2 AND status <> 'read'`,
		consultationID, readerID).Scan(&n)
	return n, err
}
