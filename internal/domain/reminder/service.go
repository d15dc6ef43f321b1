package reminder

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/telehealth/internal/domain/identity"
	"github.com/ehr/telehealth/internal/domain/prescription"
	"github.com/ehr/telehealth/internal/platform/apperr"
	"github.com/ehr/telehealth/internal/platform/metrics"
)

// Prescriptions is satisfied by prescription.Repository.
type Prescriptions interface {
	GetByID(ctx context.Context, id uuid.UUID) (*prescription.Prescription, error)
}

type Service struct {
	repo          Repository
	prescriptions Prescriptions
	now           func() time.Time
}

func NewService(repo Repository, prescriptions Prescriptions) *Service {
	return &Service{repo: repo, prescriptions: prescriptions, now: time.Now}
}

func requirePatient(caller *identity.Caller) error {
	if caller == nil {
		return apperr.Unauthenticated("sign in to manage reminders")
	}
	if !caller.IsPatient() {
		return apperr.Unauthorized("reminders are available to patients only")
	}
	return nil
}

// List returns the caller's reminders ordered by time of day.
func (s *Service) List(ctx context.Context, caller *identity.Caller, f Filter) []*Reminder {
	if !caller.IsPatient() {
		return []*Reminder{}
	}
	if f.DueToday {
		f.Weekday = weekdayName(s.now())
	}
	out, err := s.repo.List(ctx, caller.PatientID, f)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("list reminders")
		metrics.StoreErrors.WithLabelValues("reminder").Inc()
		return []*Reminder{}
	}
	if out == nil {
		out = []*Reminder{}
	}
	return out
}

func (s *Service) Create(ctx context.Context, caller *identity.Caller, in CreateInput) (*Reminder, error) {
	if err := requirePatient(caller); err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperr.Invalid("title is required")
	}
	if in.Type == "" {
		in.Type = TypeMedication
	}
	if !in.Type.Valid() {
		return nil, apperr.Invalid("reminder type %q is not supported", in.Type)
	}
	if !clockPattern.MatchString(in.ScheduledTime) {
		return nil, apperr.Invalid("scheduledTime must be HH:MM")
	}
	days := make([]string, 0, len(in.DaysOfWeek))
	for _, d := range in.DaysOfWeek {
		d = strings.ToLower(strings.TrimSpace(d))
		if !weekdays[d] {
			return nil, apperr.Invalid("unknown day %q", d)
		}
		days = append(days, d)
	}

	if in.PrescriptionID != nil {
		rx, err := s.prescriptions.GetByID(ctx, *in.PrescriptionID)
		if err != nil {
			return nil, apperr.Internal("load prescription", err)
		}
		if rx.PatientID != caller.PatientID {
			metrics.AccessDenied.WithLabelValues(string(caller.Role), "reminder").Inc()
			return nil, apperr.Unauthorized("this prescription belongs to another patient")
		}
	}

	rem := &Reminder{
		ID:             uuid.New(),
		PatientID:      caller.PatientID,
		PrescriptionID: in.PrescriptionID,
		Type:           in.Type,
		Title:          in.Title,
		ScheduledTime:  in.ScheduledTime,
		DaysOfWeek:     days,
		IsRecurring:    in.IsRecurring,
		Status:         StatusActive,
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		rem.Description = &d
	}
	if err := s.repo.Create(ctx, rem); err != nil {
		return nil, apperr.Internal("create reminder", err)
	}
	return rem, nil
}

// MarkTaken records whether the reminder was acted on. Clearing it also
// clears taken_at.
func (s *Service) MarkTaken(ctx context.Context, caller *identity.Caller, id uuid.UUID, taken bool, notes *string) (*Reminder, error) {
	if err := requirePatient(caller); err != nil {
		return nil, err
	}
	var at *time.Time
	if taken {
		now := s.now().UTC()
		at = &now
	}
	rem, err := s.repo.MarkTaken(ctx, id, caller.PatientID, at, notes)
	if err != nil {
		return nil, apperr.Internal("mark reminder taken", err)
	}
	return rem, nil
}

// Snooze postpones the reminder by minutes from now.
func (s *Service) Snooze(ctx context.Context, caller *identity.Caller, id uuid.UUID, minutes int) (*Reminder, error) {
	if err := requirePatient(caller); err != nil {
		return nil, err
	}
	if minutes < minSnoozeMinutes || minutes > maxSnoozeMinutes {
		return nil, apperr.Invalid("minutes must be between %d and %d", minSnoozeMinutes, maxSnoozeMinutes)
	}
	until := s.now().UTC().Add(time.Duration(minutes) * time.Minute)
	rem, err := s.repo.Snooze(ctx, id, caller.PatientID, until)
	if err != nil {
		return nil, apperr.Internal("snooze reminder", err)
	}
	return rem, nil
}

// SetStatus pauses, resumes or completes a reminder.
func (s *Service) SetStatus(ctx context.Context, caller *identity.Caller, id uuid.UUID, status Status) (*Reminder, error) {
	if err := requirePatient(caller); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.Invalid("reminder status %q is not supported", status)
	}
	rem, err := s.repo.SetStatus(ctx, id, caller.PatientID, status)
	if err != nil {
		return nil, apperr.Internal("update reminder status", err)
	}
	return rem, nil
}
