package prescription

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusSentToPharmacy Status = "sent_to_pharmacy"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusDelivered      Status = "delivered"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSentToPharmacy, StatusReadyForPickup, StatusDelivered,
		StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Prescription struct {
	ID              uuid.UUID  `json:"id"`
	ConsultationID  *uuid.UUID `json:"consultationId,omitempty"`
	PatientID       uuid.UUID  `json:"patientId"`
	DoctorID        uuid.UUID  `json:"doctorId"`
	MedicationName  string     `json:"medicationName"`
	Dosage          string     `json:"dosage"`
	Frequency       string     `json:"frequency"`
	Duration        *string    `json:"duration,omitempty"`
	Quantity        *int       `json:"quantity,omitempty"`
	Refills         int        `json:"refills"`
	Instructions    *string    `json:"instructions,omitempty"`
	PharmacyName    *string    `json:"pharmacyName,omitempty"`
	PharmacyAddress *string    `json:"pharmacyAddress,omitempty"`
	Status          Status     `json:"status"`
	IsActive        bool       `json:"isActive"`
	PrescribedAt    time.Time  `json:"prescribedAt"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	// Joined for display.
	DoctorFirstName  string  `json:"doctorFirstName,omitempty"`
	DoctorLastName   string  `json:"doctorLastName,omitempty"`
	DoctorSpecialty  *string `json:"doctorSpecialty,omitempty"`
	PatientFirstName string  `json:"patientFirstName,omitempty"`
	PatientLastName  string  `json:"patientLastName,omitempty"`
}

// DoctorName is "Dr. First Last", or "" when the doctor was not joined.
func (p *Prescription) DoctorName() string {
	if p.DoctorFirstName == "" && p.DoctorLastName == "" {
		return ""
	}
	return "Dr. " + p.DoctorFirstName + " " + p.DoctorLastName
}

// Filter narrows a prescription list. The owning patient or doctor is
// always supplied separately by the service.
type Filter struct {
	ActiveOnly bool
	Status     Status
}

type CreateInput struct {
	ConsultationID  *uuid.UUID `json:"consultationId"`
	PatientID       uuid.UUID  `json:"patientId"`
	MedicationName  string     `json:"medicationName"`
	Dosage          string     `json:"dosage"`
	Frequency       string     `json:"frequency"`
	Duration        string     `json:"duration"`
	Quantity        *int       `json:"quantity"`
	Refills         int        `json:"refills"`
	Instructions    string     `json:"instructions"`
	PharmacyName    string     `json:"pharmacyName"`
	PharmacyAddress string     `json:"pharmacyAddress"`
	ExpiresAt       *time.Time `json:"expiresAt"`
}

const maxRefills = 12
