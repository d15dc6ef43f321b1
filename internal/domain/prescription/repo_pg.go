package prescription

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

const rxCols = `rx.id, rx.consultation_id, rx.patient_id, rx.doctor_id, rx.medication_name,
	rx.dosage, rx.frequency, rx.duration, rx.quantity, rx.refills, rx.instructions,
	rx.pharmacy_name, rx.pharmacy_address, rx.status, rx.is_active, rx.prescribed_at,
	rx.expires_at, rx.created_at, rx.updated_at,
	du.first_name, du.last_name, d.specialty, pu.first_name, pu.last_name`

const rxFrom = `
	FROM prescriptions rx
	JOIN doctor_profiles d ON d.id = rx.doctor_id
	JOIN users du ON du.id = d.user_id
	JOIN patient_profiles p ON p.id = rx.patient_id
	JOIN users pu ON pu.id = p.user_id`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.ConsultationID, &p.PatientID, &p.DoctorID, &p.MedicationName,
		&p.Dosage, &p.Frequency, &p.Duration, &p.Quantity, &p.Refills, &p.Instructions,
		&p.PharmacyName, &p.PharmacyAddress, &p.Status, &p.IsActive, &p.PrescribedAt,
		&p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt,
		&p.DoctorFirstName, &p.DoctorLastName, &p.DoctorSpecialty, &p.PatientFirstName, &p.PatientLastName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("prescription")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) list(ctx context.Context, owner string, ownerID uuid.UUID, f Filter) ([]*Prescription, error) {
	where := []string{owner + " = $1"}
	args := []interface{}{ownerID}
	if f.ActiveOnly {
		where = append(where, "rx.is_active")
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("rx.status = $%d", len(args)))
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+rxCols+rxFrom+` WHERE `+strings.Join(where, " AND ")+` ORDER BY rx.prescribed_at DESC, rx.id`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, f Filter) ([]*Prescription, error) {
	return r.list(ctx, "rx.patient_id", patientID, f)
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, f Filter) ([]*Prescription, error) {
	return r.list(ctx, "rx.doctor_id", doctorID, f)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return scanPrescription(r.conn(ctx).QueryRow(ctx, `SELECT `+rxCols+rxFrom+` WHERE rx.id = $1`, id))
}

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (id, consultation_id, patient_id, doctor_id, medication_name,
			dosage, frequency, duration, quantity, refills, instructions, pharmacy_name,
			pharmacy_address, status, is_active, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING prescribed_at, created_at, updated_at`,
		p.ID, p.ConsultationID, p.PatientID, p.DoctorID, p.MedicationName,
		p.Dosage, p.Frequency, p.Duration, p.Quantity, p.Refills, p.Instructions, p.PharmacyName,
		p.PharmacyAddress, p.Status, p.IsActive, p.ExpiresAt,
	).Scan(&p.PrescribedAt, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) Discontinue(ctx context.Context, id, doctorID uuid.UUID) (*Prescription, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescriptions SET is_active = FALSE, status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND doctor_id = $2`, id, doctorID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.NotFound("prescription")
	}
	return r.GetByID(ctx, id)
}
