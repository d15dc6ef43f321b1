package consultation

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal statuses are never left.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

type Type string

const (
	TypeChatOnly  Type = "chat_only"
	TypeVideoCall Type = "video_call"
	TypeAudioCall Type = "audio_call"
)

func (t Type) Valid() bool {
	return t == TypeChatOnly || t == TypeVideoCall || t == TypeAudioCall
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type Consultation struct {
	ID              uuid.UUID     `json:"id"`
	PatientID       uuid.UUID     `json:"patientId"`
	DoctorID        uuid.UUID     `json:"doctorId"`
	ScheduledAt     time.Time     `json:"scheduledAt"`
	DurationMinutes int           `json:"durationMinutes"`
	Status          Status        `json:"status"`
	Type            Type          `json:"consultationType"`
	Symptoms        *string       `json:"symptoms,omitempty"`
	Diagnosis       *string       `json:"diagnosis,omitempty"`
	Notes           *string       `json:"notes,omitempty"`
	Fee             float64       `json:"fee"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	MeetingID       *string       `json:"meetingId,omitempty"`
	RoomID          *string       `json:"roomId,omitempty"`
	PatientJoined   bool          `json:"patientJoined"`
	DoctorJoined    bool          `json:"doctorJoined"`
	StartedAt       *time.Time    `json:"startedAt,omitempty"`
	EndedAt         *time.Time    `json:"endedAt,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// Party is the display side of a consultation participant: the role
// profile id plus the user fields the other side sees.
type Party struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	AvatarURL *string   `json:"avatarUrl,omitempty"`
	Specialty *string   `json:"specialty,omitempty"`
}

// View is a consultation with both parties nested.
type View struct {
	Consultation
	Doctor  *Party `json:"doctor"`
	Patient *Party `json:"patient"`
}

type Window string

const (
	WindowAll      Window = "all"
	WindowUpcoming Window = "upcoming"
	WindowPast     Window = "past"
	WindowToday    Window = "today"
	WindowPending  Window = "pending"
)

func (w Window) Valid() bool {
	switch w {
	case WindowAll, WindowUpcoming, WindowPast, WindowToday, WindowPending:
		return true
	}
	return false
}

// Filter parameterizes the one consultation list query. From is inclusive,
// Before exclusive.
type Filter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	From      *time.Time
	Before    *time.Time
	Statuses  []Status
	Ascending bool
}

type Overview struct {
	AllConsultations      []*View `json:"allConsultations"`
	UpcomingConsultations []*View `json:"upcomingConsultations"`
	PastConsultations     []*View `json:"pastConsultations"`
}

type Participant string

const (
	AsPatient Participant = "patient"
	AsDoctor  Participant = "doctor"
)

// Access is an allowed authorization decision.
type Access struct {
	Consultation *Consultation
	As           Participant
}

type BookInput struct {
	DoctorID        uuid.UUID `json:"doctorId"`
	ScheduledAt     time.Time `json:"scheduledAt"`
	Type            Type      `json:"consultationType"`
	Symptoms        string    `json:"symptoms"`
	DurationMinutes int       `json:"durationMinutes"`
}

type NotesInput struct {
	Diagnosis *string `json:"diagnosis"`
	Notes     *string `json:"notes"`
	Symptoms  *string `json:"symptoms"`
}

// PatientSummary is one row of a doctor's patient list.
type PatientSummary struct {
	Party
	ConsultationCount  int       `json:"consultationCount"`
	LastConsultationAt time.Time `json:"lastConsultationAt"`
}

// doctorTransitions lists the statuses a doctor may move a consultation to.
// Patients may only cancel a scheduled consultation.
var doctorTransitions = map[Status][]Status{
	StatusScheduled:  {StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func canTransition(as Participant, from, to Status) bool {
	if as == AsPatient {
		return from == StatusScheduled && to == StatusCancelled
	}
	for _, s := range doctorTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

const (
	defaultDurationMinutes = 30
	minDurationMinutes     = 15
	maxDurationMinutes     = 120
)
