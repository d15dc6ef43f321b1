package records

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/telehealth/internal/platform/apperr"
	"github.com/ehr/telehealth/internal/platform/db"
)

type symptomRepoPG struct{ pool *pgxpool.Pool }

func NewSymptomRepoPG(pool *pgxpool.Pool) SymptomRepository { return &symptomRepoPG{pool: pool} }

func (r *symptomRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const symptomCols = `id, patient_id, symptom_name, severity, description, body_part, onset_date,
	resolved_date, created_at, updated_at`

func scanSymptom(row pgx.Row) (*Symptom, error) {
	var s Symptom
	err := row.Scan(&s.ID, &s.PatientID, &s.Name, &s.Severity, &s.Description, &s.BodyPart,
		&s.OnsetDate, &s.ResolvedDate, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("symptom")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *symptomRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Symptom, error) {
	query := `SELECT ` + symptomCols + ` FROM symptoms WHERE patient_id = $1`
	if activeOnly {
		query += ` AND resolved_date IS NULL`
	}
	rows, err := r.conn(ctx).Query(ctx, query+` ORDER BY created_at DESC, id`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Symptom
	for rows.Next() {
		s, err := scanSymptom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *symptomRepoPG) Create(ctx context.Context, s *Symptom) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO symptoms (id, patient_id, symptom_name, severity, description, body_part, onset_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		s.ID, s.PatientID, s.Name, s.Severity, s.Description, s.BodyPart, s.OnsetDate,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *symptomRepoPG) Resolve(ctx context.Context, id, patientID uuid.UUID, at time.Time) (*Symptom, error) {
	return scanSymptom(r.conn(ctx).QueryRow(ctx, `
		UPDATE symptoms SET resolved_date = COALESCE(resolved_date, $3), updated_at = NOW()
		WHERE id = $1 AND patient_id = $2
		RETURNING `+symptomCols, id, patientID, at))
}
