package earnings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/telehealth/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

// earnedAt is when a completed consultation counts toward a month.
const earnedAt = `COALESCE(ended_at, scheduled_at)`

func (r *repoPG) Totals(ctx context.Context, doctorID uuid.UUID, thisMonth, lastMonth time.Time) (*Totals, error) {
	var t Totals
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			COALESCE(SUM(fee) FILTER (WHERE payment_status = 'paid'), 0)::float8,
			COALESCE(SUM(fee) FILTER (WHERE payment_status = 'pending'), 0)::float8,
			COALESCE(SUM(fee) FILTER (WHERE payment_status = 'paid' AND `+earnedAt+` >= $2), 0)::float8,
			COALESCE(SUM(fee) FILTER (WHERE payment_status = 'paid' AND `+earnedAt+` >= $3 AND `+earnedAt+` < $2), 0)::float8,
			COUNT(*),
			COALESCE(AVG(fee), 0)::float8
		FROM consultations
		WHERE doctor_id = $1 AND status = 'completed'`,
		doctorID, thisMonth, lastMonth,
	).Scan(&t.Earned, &t.Pending, &t.ThisMonth, &t.LastMonth, &t.CompletedCount, &t.AverageFee)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repoPG) Monthly(ctx context.Context, doctorID uuid.UUID, since time.Time) ([]MonthAmount, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT date_trunc('month', `+earnedAt+` AT TIME ZONE 'UTC') AS month,
			COALESCE(SUM(fee), 0)::float8, COUNT(*)
		FROM consultations
		WHERE doctor_id = $1 AND status = 'completed' AND payment_status = 'paid'
			AND `+earnedAt+` >= $2
		GROUP BY month
		ORDER BY month`,
		doctorID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonthAmount
	for rows.Next() {
		var m MonthAmount
		if err := rows.Scan(&m.Month, &m.Amount, &m.Count); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repoPG) Transactions(ctx context.Context, doctorID uuid.UUID, limit int) ([]*Transaction, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT c.id, COALESCE(c.ended_at, c.scheduled_at), c.fee::float8, c.payment_status,
			c.consultation_type, pu.first_name, pu.last_name
		FROM consultations c
		JOIN patient_profiles p ON p.id = c.patient_id
		JOIN users pu ON pu.id = p.user_id
		WHERE c.doctor_id = $1 AND c.status = 'completed'
		ORDER BY COALESCE(c.ended_at, c.scheduled_at) DESC, c.id
		LIMIT $2`,
		doctorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ConsultationID, &t.Date, &t.Amount, &t.PaymentStatus,
			&t.ConsultationType, &t.PatientFirstName, &t.PatientLastName); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
