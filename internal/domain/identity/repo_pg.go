package identity

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

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, external_id, role, first_name, last_name, email, phone, avatar_url,
	is_active, is_verified, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Role, &u.FirstName, &u.LastName, &u.Email,
		&u.Phone, &u.AvatarURL, &u.IsActive, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepoPG) GetByExternalID(ctx context.Context, externalID string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE external_id = $1`, externalID))
}

func (r *userRepoPG) CreateIfAbsent(ctx context.Context, u *User) (bool, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO users (id, external_id, role, first_name, last_name, email, phone, avatar_url,
			is_active, is_verified)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (external_id) DO NOTHING`,
		u.ID, u.ExternalID, u.Role, u.FirstName, u.LastName, u.Email, u.Phone, u.AvatarURL,
		u.IsActive, u.IsVerified)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// =========== Profile Repository ===========

type profileRepoPG struct{ pool *pgxpool.Pool }

func NewProfileRepoPG(pool *pgxpool.Pool) ProfileRepository { return &profileRepoPG{pool: pool} }

func (r *profileRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, user_id, date_of_birth, gender, blood_type, allergies, medical_history,
	current_medications, emergency_contact_name, emergency_contact_phone, created_at, updated_at`

func scanPatient(row pgx.Row) (*PatientProfile, error) {
	var p PatientProfile
	err := row.Scan(&p.ID, &p.UserID, &p.DateOfBirth, &p.Gender, &p.BloodType, &p.Allergies,
		&p.MedicalHistory, &p.CurrentMedications, &p.EmergencyContactName, &p.EmergencyContactPhone,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient profile")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const doctorCols = `id, user_id, license_number, specialty, years_of_experience, consultation_fee,
	bio, is_available, is_verified, rating, total_reviews, created_at, updated_at`

func doctorDest(d *DoctorProfile) []interface{} {
	return []interface{}{&d.ID, &d.UserID, &d.LicenseNumber, &d.Specialty, &d.YearsOfExperience,
		&d.ConsultationFee, &d.Bio, &d.IsAvailable, &d.IsVerified, &d.Rating, &d.TotalReviews,
		&d.CreatedAt, &d.UpdatedAt}
}

func scanDoctor(row pgx.Row) (*DoctorProfile, error) {
	var d DoctorProfile
	err := row.Scan(doctorDest(&d)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("doctor profile")
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *profileRepoPG) GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*PatientProfile, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient_profiles WHERE user_id = $1`, userID))
}

func (r *profileRepoPG) GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctor_profiles WHERE user_id = $1`, userID))
}

func (r *profileRepoPG) GetDoctor(ctx context.Context, id uuid.UUID) (*DoctorProfile, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctor_profiles WHERE id = $1`, id))
}

func (r *profileRepoPG) CreatePatientIfAbsent(ctx context.Context, p *PatientProfile) (bool, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_profiles (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`, p.ID, p.UserID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *profileRepoPG) CreateDoctorIfAbsent(ctx context.Context, d *DoctorProfile) (bool, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_profiles (id, user_id, is_available, is_verified) VALUES ($1, $2, FALSE, FALSE)
		ON CONFLICT (user_id) DO NOTHING`, d.ID, d.UserID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *profileRepoPG) UpdatePatient(ctx context.Context, userID uuid.UUID, u PatientProfileUpdate) (*PatientProfile, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `
		UPDATE patient_profiles SET
			date_of_birth = COALESCE($2, date_of_birth),
			gender = COALESCE($3, gender),
			blood_type = COALESCE($4, blood_type),
			allergies = COALESCE($5, allergies),
			medical_history = COALESCE($6, medical_history),
			current_medications = COALESCE($7, current_medications),
			emergency_contact_name = COALESCE($8, emergency_contact_name),
			emergency_contact_phone = COALESCE($9, emergency_contact_phone),
			updated_at = NOW()
		WHERE user_id = $1
		RETURNING `+patientCols,
		userID, u.DateOfBirth, u.Gender, u.BloodType, u.Allergies, u.MedicalHistory,
		u.CurrentMedications, u.EmergencyContactName, u.EmergencyContactPhone))
}

func (r *profileRepoPG) UpdateDoctor(ctx context.Context, userID uuid.UUID, u DoctorProfileUpdate) (*DoctorProfile, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `
		UPDATE doctor_profiles SET
			license_number = COALESCE($2, license_number),
			specialty = COALESCE($3, specialty),
			years_of_experience = COALESCE($4, years_of_experience),
			consultation_fee = COALESCE($5, consultation_fee),
			bio = COALESCE($6, bio),
			is_available = COALESCE($7, is_available),
			updated_at = NOW()
		WHERE user_id = $1
		RETURNING `+doctorCols,
		userID, u.LicenseNumber, u.Specialty, u.YearsOfExperience, u.ConsultationFee, u.Bio, u.IsAvailable))
}

func (r *profileRepoPG) ListDoctors(ctx context.Context, f DirectoryFilter) ([]*DoctorListing, error) {
	var where []string
	var args []interface{}
	idx := 1
	if f.Specialty != "" {
		where = append(where, fmt.Sprintf("d.specialty ILIKE $%d", idx))
		args = append(args, f.Specialty)
		idx++
	}
	if f.AvailableOnly {
		where = append(where, "d.is_available")
	}
	where = append(where, "u.is_active")

	query := `SELECT d.id, d.user_id, d.license_number, d.specialty, d.years_of_experience,
			d.consultation_fee, d.bio, d.is_available, d.is_verified, d.rating, d.total_reviews,
			d.created_at, d.updated_at, u.first_name, u.last_name, u.email, u.avatar_url
		FROM doctor_profiles d JOIN users u ON u.id = d.user_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY d.rating DESC, u.last_name, u.first_name`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*DoctorListing
	for rows.Next() {
		var l DoctorListing
		dest := append(doctorDest(&l.DoctorProfile), &l.FirstName, &l.LastName, &l.Email, &l.AvatarURL)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
