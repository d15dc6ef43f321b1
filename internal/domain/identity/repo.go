package identity

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	GetByExternalID(ctx context.Context, externalID string) (*User, error)
	// CreateIfAbsent inserts u unless a user with the same external id
	// exists. It reports whether a row was written.
	CreateIfAbsent(ctx context.Context, u *User) (bool, error)
}

type ProfileRepository interface {
	GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*PatientProfile, error)
	GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*DoctorProfile, error)
	CreatePatientIfAbsent(ctx context.Context, p *PatientProfile) (bool, error)
	CreateDoctorIfAbsent(ctx context.Context, d *DoctorProfile) (bool, error)
	UpdatePatient(ctx context.Context, userID uuid.UUID, upd PatientProfileUpdate) (*PatientProfile, error)
	UpdateDoctor(ctx context.Context, userID uuid.UUID, upd DoctorProfileUpdate) (*DoctorProfile, error)
	ListDoctors(ctx context.Context, f DirectoryFilter) ([]*DoctorListing, error)
}

// Transactor runs fn in one database transaction. *db.Transactor
// satisfies it.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
