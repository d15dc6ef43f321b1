package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

const reminderCols = `r.id, r.patient_id, r.prescription_id, r.reminder_type, r.title, r.description,
	r.scheduled_time, r.days_of_week, r.is_recurring, r.status, r.snooze_until, r.is_taken,
	r.taken_at, r.notes, r.created_at, r.updated_at,
	rx.medication_name, rx.dosage, rx.frequency`

const reminderFrom = `
	FROM reminders r
	LEFT JOIN prescriptions rx ON rx.id = r.prescription_id`

func scanReminder(row pgx.Row) (*Reminder, error) {
	var rem Reminder
	var med, dosage, freq *string
	err := row.Scan(&rem.ID, &rem.PatientID, &rem.PrescriptionID, &rem.Type, &rem.Title, &rem.Description,
		&rem.ScheduledTime, &rem.DaysOfWeek, &rem.IsRecurring, &rem.Status, &rem.SnoozeUntil, &rem.IsTaken,
		&rem.TakenAt, &rem.Notes, &rem.CreatedAt, &rem.UpdatedAt,
		&med, &dosage, &freq)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("reminder")
	}
	if err != nil {
		return nil, err
	}
	if med != nil {
		rem.Prescription = &PrescriptionInfo{MedicationName: *med}
		if dosage != nil {
			rem.Prescription.Dosage = *dosage
		}
		if freq != nil {
			rem.Prescription.Frequency = *freq
		}
	}
	if rem.DaysOfWeek == nil {
		rem.DaysOfWeek = []string{}
	}
	return &rem, nil
}

func (r *repoPG) List(ctx context.Context, patientID uuid.UUID, f Filter) ([]*Reminder, error) {
	where := []string{"r.patient_id = $1"}
	args := []interface{}{patientID}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ActiveOnly {
		where = append(where, "r.status = 'active'")
	}
	if f.Status != "" {
		add("r.status = $%d", f.Status)
	}
	if f.Type != "" {
		add("r.reminder_type = $%d", f.Type)
	}
	if f.DueToday {
		where = append(where, "r.status <> 'completed'")
		add("(cardinality(r.days_of_week) = 0 OR $%d = ANY(r.days_of_week))", f.Weekday)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+reminderCols+reminderFrom+` WHERE `+strings.Join(where, " AND ")+
			` ORDER BY r.scheduled_time ASC, r.created_at ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}

func (r *repoPG) Get(ctx context.Context, id, patientID uuid.UUID) (*Reminder, error) {
	return scanReminder(r.conn(ctx).QueryRow(ctx,
		`SELECT `+reminderCols+reminderFrom+` WHERE r.id = $1 AND r.patient_id = $2`, id, patientID))
}

func (r *repoPG) Create(ctx context.Context, rem *Reminder) error {
	if rem.ID == uuid.Nil {
		rem.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO reminders (id, patient_id, prescription_id, reminder_type, title, description,
			scheduled_time, days_of_week, is_recurring, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		rem.ID, rem.PatientID, rem.PrescriptionID, rem.Type, rem.Title, rem.Description,
		rem.ScheduledTime, rem.DaysOfWeek, rem.IsRecurring, rem.Status,
	).Scan(&rem.CreatedAt, &rem.UpdatedAt)
}

// update runs an ownership-scoped UPDATE and reloads the row.
func (r *repoPG) update(ctx context.Context, id, patientID uuid.UUID, set string, args ...interface{}) (*Reminder, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE reminders SET `+set+`, updated_at = NOW() WHERE id = $1 AND patient_id = $2`,
		append([]interface{}{id, patientID}, args...)...)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.NotFound("reminder")
	}
	return r.Get(ctx, id, patientID)
}

func (r *repoPG) MarkTaken(ctx context.Context, id, patientID uuid.UUID, takenAt *time.Time, notes *string) (*Reminder, error) {
	return r.update(ctx, id, patientID,
		`is_taken = $3, taken_at = $4, notes = COALESCE($5, notes)`,
		takenAt != nil, takenAt, notes)
}

func (r *repoPG) Snooze(ctx context.Context, id, patientID uuid.UUID, until time.Time) (*Reminder, error) {
	return r.update(ctx, id, patientID, `snooze_until = $3`, until)
}

func (r *repoPG) SetStatus(ctx context.Context, id, patientID uuid.UUID, status Status) (*Reminder, error) {
	return r.update(ctx, id, patientID, `status = $3`, status)
}
