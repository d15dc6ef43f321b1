package records

import (
	"time"

	"github.com/google/uuid"
)

type RecordType string

const (
	TypeConsultation RecordType = "consultation"
	TypeSymptom      RecordType = "symptom"
	TypePrescription RecordType = "prescription"
)

func (t RecordType) Valid() bool {
	return t == TypeConsultation || t == TypeSymptom || t == TypePrescription
}

// MedicalRecord is one entry of a patient's history, whatever its source.
type MedicalRecord struct {
	ID          uuid.UUID   `json:"id"`
	Date        time.Time   `json:"date"`
	Type        RecordType  `json:"type"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Doctor      *string     `json:"doctor,omitempty"`
	Status      string      `json:"status"`
	Data        interface{} `json:"data"`
}

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

func (s Severity) Valid() bool {
	return s == SeverityMild || s == SeverityModerate || s == SeveritySevere
}

type Symptom struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    uuid.UUID  `json:"patientId"`
	Name         string     `json:"symptomName"`
	Severity     Severity   `json:"severity"`
	Description  *string    `json:"description,omitempty"`
	BodyPart     *string    `json:"bodyPart,omitempty"`
	OnsetDate    *time.Time `json:"onsetDate,omitempty"`
	ResolvedDate *time.Time `json:"resolvedDate,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type SymptomInput struct {
	Name        string     `json:"symptomName"`
	Severity    Severity   `json:"severity"`
	Description string     `json:"description"`
	BodyPart    string     `json:"bodyPart"`
	OnsetDate   *time.Time `json:"onsetDate"`
}

const (
	defaultRecentLimit = 5
	maxRecentLimit     = 50
)
