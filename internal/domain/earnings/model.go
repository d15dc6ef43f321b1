package earnings

import (
	"time"

	"github.com/google/uuid"
)

type Summary struct {
	TotalEarnings          float64          `json:"totalEarnings"`
	PendingEarnings        float64          `json:"pendingEarnings"`
	ThisMonth              float64          `json:"thisMonth"`
	LastMonth              float64          `json:"lastMonth"`
	CompletedConsultations int              `json:"completedConsultations"`
	AverageFee             float64          `json:"averageFee"`
	Monthly                []MonthlyEarning `json:"monthly"`
}

// MonthlyEarning is one bucket of the series; Month is "YYYY-MM".
type MonthlyEarning struct {
	Month         string  `json:"month"`
	Amount        float64 `json:"amount"`
	Consultations int     `json:"consultations"`
}

// Totals are the scalar aggregates read from the store.
type Totals struct {
	Earned         float64
	Pending        float64
	ThisMonth      float64
	LastMonth      float64
	CompletedCount int
	AverageFee     float64
}

// MonthAmount is a paid total for the month starting at Month.
type MonthAmount struct {
	Month  time.Time
	Amount float64
	Count  int
}

type Transaction struct {
	ConsultationID   uuid.UUID `json:"consultationId"`
	Date             time.Time `json:"date"`
	Amount           float64   `json:"amount"`
	PaymentStatus    string    `json:"paymentStatus"`
	ConsultationType string    `json:"consultationType"`
	PatientFirstName string    `json:"patientFirstName"`
	PatientLastName  string    `json:"patientLastName"`
}

const (
	defaultMonths = 6
	maxMonths     = 24

	defaultTransactionLimit = 20
	maxTransactionLimit     = 100

	monthLayout = "2006-01"
)
