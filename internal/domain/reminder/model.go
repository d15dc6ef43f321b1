package reminder

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeMedication  Type = "medication"
	TypeAppointment Type = "appointment"
	TypeCheckup     Type = "checkup"
	TypeCustom      Type = "custom"
)

func (t Type) Valid() bool {
	switch t {
	case TypeMedication, TypeAppointment, TypeCheckup, TypeCustom:
		return true
	}
	return false
}

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusPaused || s == StatusCompleted
}

type Reminder struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patientId"`
	PrescriptionID *uuid.UUID `json:"prescriptionId,omitempty"`
	Type           Type       `json:"reminderType"`
	Title          string     `json:"title"`
	Description    *string    `json:"description,omitempty"`
	ScheduledTime  string     `json:"scheduledTime"`
	DaysOfWeek     []string   `json:"daysOfWeek"`
	IsRecurring    bool       `json:"isRecurring"`
	Status         Status     `json:"status"`
	SnoozeUntil    *time.Time `json:"snoozeUntil,omitempty"`
	IsTaken        bool       `json:"isTaken"`
	TakenAt        *time.Time `json:"takenAt,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	Prescription *PrescriptionInfo `json:"prescription,omitempty"`
}

// PrescriptionInfo is the linked medication, joined for display.
type PrescriptionInfo struct {
	MedicationName string `json:"medicationName"`
	Dosage         string `json:"dosage"`
	Frequency      string `json:"frequency"`
}

// Filter narrows a patient's reminder list. DueToday keeps reminders
// with no day restriction or one that includes Weekday.
type Filter struct {
	ActiveOnly bool
	Status     Status
	Type       Type
	DueToday   bool
	Weekday    string
}

type CreateInput struct {
	PrescriptionID *uuid.UUID `json:"prescriptionId"`
	Type           Type       `json:"reminderType"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	ScheduledTime  string     `json:"scheduledTime"`
	DaysOfWeek     []string   `json:"daysOfWeek"`
	IsRecurring    bool       `json:"isRecurring"`
}

const (
	minSnoozeMinutes = 1
	maxSnoozeMinutes = 1440
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

var weekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

func weekdayName(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}
