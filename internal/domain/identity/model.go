package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// User is the application identity keyed by the provider's subject.
type User struct {
	ID         uuid.UUID `json:"id"`
	ExternalID string    `json:"externalId"`
	Role       Role      `json:"role"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Email      string    `json:"email"`
	Phone      *string   `json:"phone,omitempty"`
	AvatarURL  *string   `json:"avatarUrl,omitempty"`
	IsActive   bool      `json:"isActive"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type PatientProfile struct {
	ID                    uuid.UUID  `json:"id"`
	UserID                uuid.UUID  `json:"userId"`
	DateOfBirth           *time.Time `json:"dateOfBirth,omitempty"`
	Gender                *string    `json:"gender,omitempty"`
	BloodType             *string    `json:"bloodType,omitempty"`
	Allergies             *string    `json:"allergies,omitempty"`
	MedicalHistory        *string    `json:"medicalHistory,omitempty"`
	CurrentMedications    *string    `json:"currentMedications,omitempty"`
	EmergencyContactName  *string    `json:"emergencyContactName,omitempty"`
	EmergencyContactPhone *string    `json:"emergencyContactPhone,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// DoctorProfile starts unavailable and unverified; both flags are flipped
// by review outside this service.
type DoctorProfile struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"userId"`
	LicenseNumber     *string   `json:"licenseNumber,omitempty"`
	Specialty         *string   `json:"specialty,omitempty"`
	YearsOfExperience int       `json:"yearsOfExperience"`
	ConsultationFee   float64   `json:"consultationFee"`
	Bio               *string   `json:"bio,omitempty"`
	IsAvailable       bool      `json:"isAvailable"`
	IsVerified        bool      `json:"isVerified"`
	Rating            float64   `json:"rating"`
	TotalReviews      int       `json:"totalReviews"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// CurrentUser is the resolved caller: the User merged with whichever role
// profile matches its role. Transient users were built from session claims
// after a store failure and exist nowhere in the database.
type CurrentUser struct {
	User
	PatientData *PatientProfile `json:"patientData,omitempty"`
	DoctorData  *DoctorProfile  `json:"doctorData,omitempty"`
	Transient   bool            `json:"transient,omitempty"`
}

// Caller returns the identity handed to every access-scoped operation.
func (cu *CurrentUser) Caller() *Caller {
	if cu == nil {
		return nil
	}
	c := &Caller{UserID: cu.ID, Role: cu.Role}
	if cu.PatientData != nil {
		c.PatientID = cu.PatientData.ID
	}
	if cu.DoctorData != nil {
		c.DoctorID = cu.DoctorData.ID
	}
	return c
}

// Caller identifies who is asking. Profile ids are uuid.Nil when the caller
// has no profile of that kind, which no stored row ever matches.
type Caller struct {
	UserID    uuid.UUID
	Role      Role
	PatientID uuid.UUID
	DoctorID  uuid.UUID
}

func (c *Caller) IsPatient() bool {
	return c != nil && c.Role == RolePatient && c.PatientID != uuid.Nil
}

func (c *Caller) IsDoctor() bool {
	return c != nil && c.Role == RoleDoctor && c.DoctorID != uuid.Nil
}

// PatientProfileUpdate holds optional changes; nil fields are left as is.
type PatientProfileUpdate struct {
	DateOfBirth           *time.Time `json:"dateOfBirth"`
	Gender                *string    `json:"gender"`
	BloodType             *string    `json:"bloodType"`
	Allergies             *string    `json:"allergies"`
	MedicalHistory        *string    `json:"medicalHistory"`
	CurrentMedications    *string    `json:"currentMedications"`
	EmergencyContactName  *string    `json:"emergencyContactName"`
	EmergencyContactPhone *string    `json:"emergencyContactPhone"`
}

type DoctorProfileUpdate struct {
	LicenseNumber     *string  `json:"licenseNumber"`
	Specialty         *string  `json:"specialty"`
	YearsOfExperience *int     `json:"yearsOfExperience"`
	ConsultationFee   *float64 `json:"consultationFee"`
	Bio               *string  `json:"bio"`
	IsAvailable       *bool    `json:"isAvailable"`
}

// DoctorListing is a directory entry shown to patients choosing a doctor.
type DoctorListing struct {
	DoctorProfile
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

type DirectoryFilter struct {
	Specialty     string
	AvailableOnly bool
}

var validBloodTypes = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

var validGenders = map[string]bool{
	"male": true, "female": true, "other": true, "prefer_not_to_say": true,
}
