package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const consultCols = `c.id, c.patient_id, c.doctor_id, c.scheduled_at, c.duration_minutes, c.status,
	c.consultation_type, c.symptoms, c.diagnosis, c.notes, c.fee, c.payment_status, c.meeting_id,
	c.room_id, c.patient_joined, c.doctor_joined, c.started_at, c.ended_at, c.created_at, c.updated_at`

// returningCols is consultCols without the table alias, for RETURNING.
var returningCols = strings.ReplaceAll(consultCols, "c.", "")

const partyCols = `,
	d.id, du.id, du.first_name, du.last_name, du.email, du.phone, du.avatar_url, d.specialty,
	p.id, pu.id, pu.first_name, pu.last_name, pu.email, pu.phone, pu.avatar_url`

const viewFrom = `
	FROM consultations c
	JOIN doctor_profiles d ON d.id = c.doctor_id
	JOIN users du ON du.id = d.user_id
	JOIN patient_profiles p ON p.id = c.patient_id
	JOIN users pu ON pu.id = p.user_id`

func consultDest(c *Consultation) []interface{} {
	return []interface{}{&c.ID, &c.PatientID, &c.DoctorID, &c.ScheduledAt, &c.DurationMinutes,
		&c.Status, &c.Type, &c.Symptoms, &c.Diagnosis, &c.Notes, &c.Fee, &c.PaymentStatus,
		&c.MeetingID, &c.RoomID, &c.PatientJoined, &c.DoctorJoined, &c.StartedAt, &c.EndedAt,
		&c.CreatedAt, &c.UpdatedAt}
}

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	err := row.Scan(consultDest(&c)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("consultation")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanView(row pgx.Row) (*View, error) {
	v := View{Doctor: &Party{}, Patient: &Party{}}
	d, p := v.Doctor, v.Patient
	dest := append(consultDest(&v.Consultation),
		&d.ID, &d.UserID, &d.FirstName, &d.LastName, &d.Email, &d.Phone, &d.AvatarURL, &d.Specialty,
		&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.AvatarURL)
	err := row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("consultation")
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return scanConsultation(r.conn(ctx).QueryRow(ctx,
		`SELECT `+consultCols+` FROM consultations c WHERE c.id = $1`, id))
}

func (r *repoPG) GetView(ctx context.Context, id uuid.UUID) (*View, error) {
	return scanView(r.conn(ctx).QueryRow(ctx,
		`SELECT `+consultCols+partyCols+viewFrom+` WHERE c.id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*View, error) {
	var where []string
	var args []interface{}
	idx := 1
	add := func(cond string, arg interface{}) {
		where = append(where, fmt.Sprintf(cond, idx))
		args = append(args, arg)
		idx++
	}

	if f.PatientID != nil {
		add("c.patient_id = $%d", *f.PatientID)
	}
	if f.DoctorID != nil {
		add("c.doctor_id = $%d", *f.DoctorID)
	}
	if f.From != nil {
		add("c.scheduled_at >= $%d", *f.From)
	}
	if f.Before != nil {
		add("c.scheduled_at < $%d", *f.Before)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("c.status = ANY($%d)", statuses)
	}

	query := `SELECT ` + consultCols + partyCols + viewFrom
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if f.Ascending {
		query += ` ORDER BY c.scheduled_at ASC, c.id`
	} else {
		query += ` ORDER BY c.scheduled_at DESC, c.id`
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*View
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, c *Consultation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consultations (id, patient_id, doctor_id, scheduled_at, duration_minutes, status,
			consultation_type, symptoms, fee, payment_status, meeting_id, room_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		c.ID, c.PatientID, c.DoctorID, c.ScheduledAt, c.DurationMinutes, c.Status,
		c.Type, c.Symptoms, c.Fee, c.PaymentStatus, c.MeetingID, c.RoomID,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *repoPG) UpdateNotes(ctx context.Context, id, doctorID uuid.UUID, in NotesInput) (*Consultation, error) {
	return scanConsultation(r.conn(ctx).QueryRow(ctx, `
		UPDATE consultations SET
			diagnosis = COALESCE($3, diagnosis),
			notes = COALESCE($4, notes),
			symptoms = COALESCE($5, symptoms),
			updated_at = NOW()
		WHERE id = $1 AND doctor_id = $2
		RETURNING `+returningCols,
		id, doctorID, in.Diagnosis, in.Notes, in.Symptoms))
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Consultation, error) {
	return scanConsultation(r.conn(ctx).QueryRow(ctx, `
		UPDATE consultations SET
			status = $3,
			started_at = CASE WHEN $3 = 'in_progress' THEN COALESCE(started_at, NOW()) ELSE started_at END,
			ended_at = CASE WHEN $3 IN ('completed', 'cancelled', 'no_show') THEN NOW() ELSE ended_at END,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+returningCols,
		id, from, to))
}

func (r *repoPG) MarkJoined(ctx context.Context, id uuid.UUID, as Participant) (*Consultation, error) {
	patient, doctor := as == AsPatient, as == AsDoctor
	return scanConsultation(r.conn(ctx).QueryRow(ctx, `
		UPDATE consultations SET
			patient_joined = patient_joined OR $2,
			doctor_joined = doctor_joined OR $3,
			started_at = COALESCE(started_at, NOW()),
			status = CASE
				WHEN status = 'scheduled' AND (patient_joined OR $2) AND (doctor_joined OR $3) THEN 'in_progress'
				ELSE status END,
			updated_at = NOW()
		WHERE id = $1 AND status IN ('scheduled', 'in_progress')
		RETURNING `+returningCols,
		id, patient, doctor))
}

func (r *repoPG) DoctorPatients(ctx context.Context, doctorID uuid.UUID) ([]*PatientSummary, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.id, pu.id, pu.first_name, pu.last_name, pu.email, pu.phone, pu.avatar_url,
			COUNT(c.id), MAX(c.scheduled_at)
		FROM consultations c
		JOIN patient_profiles p ON p.id = c.patient_id
		JOIN users pu ON pu.id = p.user_id
		WHERE c.doctor_id = $1
		GROUP BY p.id, pu.id
		ORDER BY MAX(c.scheduled_at) DESC`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PatientSummary
	for rows.Next() {
		var s PatientSummary
		if err := rows.Scan(&s.ID, &s.UserID, &s.FirstName, &s.LastName, &s.Email, &s.Phone,
			&s.AvatarURL, &s.ConsultationCount, &s.LastConsultationAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *repoPG) CountBetween(ctx context.Context, doctorID, patientID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM consultations WHERE doctor_id = $1 AND patient_id = $2`,
		doctorID, patientID).Scan(&n)
	return n, err
}
