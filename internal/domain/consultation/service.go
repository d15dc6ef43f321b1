package consultation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/telehealth/internal/domain/identity"
	"github.com/ehr/telehealth/internal/platform/apperr"
	"github.com/ehr/telehealth/internal/platform/metrics"
)

// DoctorLookup is satisfied by *identity.Service.
type DoctorLookup interface {
	Doctor(ctx context.Context, id uuid.UUID) (*identity.DoctorProfile, error)
}

type Service struct {
	repo    Repository
	doctors DoctorLookup
	now     func() time.Time
}

func NewService(repo Repository, doctors DoctorLookup) *Service {
	return &Service{repo: repo, doctors: doctors, now: time.Now}
}

// -- Authorization --

// Authorize decides whether caller is the patient or the doctor on the
// consultation. A missing consultation is reported before any identity
// comparison is made. Decisions are never cached.
func (s *Service) Authorize(ctx context.Context, id uuid.UUID, caller *identity.Caller) (*Access, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("sign in to access consultations")
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("load consultation", err)
	}

	switch {
	case caller.IsPatient() && c.PatientID == caller.PatientID:
		return &Access{Consultation: c, As: AsPatient}, nil
	case caller.IsDoctor() && c.DoctorID == caller.DoctorID:
		return &Access{Consultation: c, As: AsDoctor}, nil
	}

	zerolog.Ctx(ctx).Warn().
		Str("consultation_id", id.String()).
		Str("user_id", caller.UserID.String()).
		Str("role", string(caller.Role)).
		Msg("consultation access denied")
	metrics.AccessDenied.WithLabelValues(string(caller.Role), "consultation").Inc()
	return nil, apperr.Unauthorized("you are not a participant in this consultation")
}

// CanAccess reports whether Authorize would allow caller.
func (s *Service) CanAccess(ctx context.Context, id uuid.UUID, caller *identity.Caller) bool {
	_, err := s.Authorize(ctx, id, caller)
	return err == nil
}

// -- Views --

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// scope restricts f to the caller's own consultations. It reports false
// for callers without a patient or doctor profile.
func scope(caller *identity.Caller, f *Filter) bool {
	switch {
	case caller.IsPatient():
		id := caller.PatientID
		f.PatientID = &id
	case caller.IsDoctor():
		id := caller.DoctorID
		f.DoctorID = &id
	default:
		return false
	}
	return true
}

// pastForDoctor keeps completed and cancelled consultations. Doctors see
// "past" by status while patients see it by time, so a cancelled future
// visit is past for the doctor only.
func pastForDoctor(all []*View) []*View {
	out := make([]*View, 0, len(all))
	for _, v := range all {
		if v.Status == StatusCompleted || v.Status == StatusCancelled {
			out = append(out, v)
		}
	}
	return out
}

// List returns the caller's consultations in window w. Anonymous callers
// and store failures get an empty list.
func (s *Service) List(ctx context.Context, caller *identity.Caller, w Window) []*View {
	var f Filter
	if caller == nil || !scope(caller, &f) {
		return []*View{}
	}

	now := s.now()
	doctorPast := false
	switch w {
	case WindowUpcoming:
		f.From = &now
		f.Ascending = true
	case WindowPast:
		if caller.IsDoctor() {
			doctorPast = true
		} else {
			f.Before = &now
		}
	case WindowToday:
		from := startOfDay(now)
		before := from.Add(24 * time.Hour)
		f.From, f.Before = &from, &before
		f.Ascending = true
	case WindowPending:
		f.Statuses = []Status{StatusScheduled}
		f.Ascending = true
	}

	out := s.list(ctx, f)
	if doctorPast {
		out = pastForDoctor(out)
	}
	return out
}

func (s *Service) list(ctx context.Context, f Filter) []*View {
	out, err := s.repo.List(ctx, f)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("list consultations")
		metrics.StoreErrors.WithLabelValues("consultation").Inc()
		return []*View{}
	}
	if out == nil {
		out = []*View{}
	}
	return out
}

// Overview assembles the all/upcoming/past lists for either role.
func (s *Service) Overview(ctx context.Context, caller *identity.Caller) *Overview {
	ov := &Overview{
		AllConsultations: s.List(ctx, caller, WindowAll),
	}
	ov.UpcomingConsultations = s.List(ctx, caller, WindowUpcoming)
	if caller.IsDoctor() {
		ov.PastConsultations = pastForDoctor(ov.AllConsultations)
	} else {
		ov.PastConsultations = s.List(ctx, caller, WindowPast)
	}
	return ov
}

// Get returns one consultation the caller participates in.
func (s *Service) Get(ctx context.Context, caller *identity.Caller, id uuid.UUID) (*View, error) {
	if _, err := s.Authorize(ctx, id, caller); err != nil {
		return nil, err
	}
	v, err := s.repo.GetView(ctx, id)
	if err != nil {
		return nil, apperr.Internal("load consultation", err)
	}
	return v, nil
}

// -- Lifecycle --

func (s *Service) Book(ctx context.Context, caller *identity.Caller, in BookInput) (*Consultation, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("sign in to book a consultation")
	}
	if !caller.IsPatient() {
		return nil, apperr.Unauthorized("only patients can book consultations")
	}
	if in.DoctorID == uuid.Nil {
		return nil, apperr.Invalid("doctorId is required")
	}
	if in.Type == "" {
		in.Type = TypeVideoCall
	}
	if !in.Type.Valid() {
		return nil, apperr.Invalid("consultation type %q is not supported", in.Type)
	}
	if in.DurationMinutes == 0 {
		in.DurationMinutes = defaultDurationMinutes
	}
	if in.DurationMinutes < minDurationMinutes || in.DurationMinutes > maxDurationMinutes {
		return nil, apperr.Invalid("duration must be between %d and %d minutes", minDurationMinutes, maxDurationMinutes)
	}
	if !in.ScheduledAt.After(s.now()) {
		return nil, apperr.Invalid("scheduledAt must be in the future")
	}

	doc, err := s.doctors.Doctor(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doc.IsAvailable {
		return nil, apperr.Conflict("doctor is not accepting consultations")
	}

	c := &Consultation{
		ID:              uuid.New(),
		PatientID:       caller.PatientID,
		DoctorID:        doc.ID,
		ScheduledAt:     in.ScheduledAt.UTC(),
		DurationMinutes: in.DurationMinutes,
		Status:          StatusScheduled,
		Type:            in.Type,
		Fee:             doc.ConsultationFee,
		PaymentStatus:   PaymentPending,
	}
	if in.Symptoms != "" {
		c.Symptoms = &in.Symptoms
	}
	if in.Type != TypeChatOnly {
		meeting := uuid.NewString()
		room := "consult-" + c.ID.String()
		c.MeetingID, c.RoomID = &meeting, &room
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, apperr.Internal("book consultation", err)
	}
	metrics.ConsultationsBooked.Inc()
	return c, nil
}

func (s *Service) UpdateClinicalNotes(ctx context.Context, caller *identity.Caller, id uuid.UUID, in NotesInput) (*Consultation, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("sign in to update consultations")
	}
	if !caller.IsDoctor() {
		return nil, apperr.Unauthorized("only the consulting doctor can edit clinical notes")
	}
	if in.Diagnosis == nil && in.Notes == nil && in.Symptoms == nil {
		return nil, apperr.Invalid("nothing to update")
	}
	if _, err := s.Authorize(ctx, id, caller); err != nil {
		return nil, err
	}

	c, err := s.repo.UpdateNotes(ctx, id, caller.DoctorID, in)
	if err != nil {
		return nil, apperr.Internal("update clinical notes", err)
	}
	return c, nil
}

func (s *Service) UpdateStatus(ctx context.Context, caller *identity.Caller, id uuid.UUID, to Status) (*Consultation, error) {
	if !to.Valid() {
		return nil, apperr.Invalid("status %q is not valid", to)
	}
	access, err := s.Authorize(ctx, id, caller)
	if err != nil {
		return nil, err
	}

	from := access.Consultation.Status
	if from.Terminal() {
		return nil, apperr.Conflict("consultation is already %s", from)
	}
	if !canTransition(access.As, from, to) {
		if access.As == AsPatient {
			return nil, apperr.Unauthorized("patients can only cancel a scheduled consultation")
		}
		return nil, apperr.Conflict("cannot move consultation from %s to %s", from, to)
	}

	c, err := s.repo.UpdateStatus(ctx, id, from, to)
	if apperr.IsNotFound(err) {
		return nil, apperr.Conflict("consultation status changed, reload and retry")
	}
	if err != nil {
		return nil, apperr.Internal("update consultation status", err)
	}
	return c, nil
}

// Join records that the caller entered the meeting. The consultation
// starts once both sides have joined.
func (s *Service) Join(ctx context.Context, caller *identity.Caller, id uuid.UUID) (*Consultation, error) {
	access, err := s.Authorize(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if access.Consultation.Status.Terminal() {
		return nil, apperr.Conflict("consultation is already %s", access.Consultation.Status)
	}

	c, err := s.repo.MarkJoined(ctx, id, access.As)
	if apperr.IsNotFound(err) {
		return nil, apperr.Conflict("consultation is no longer open")
	}
	if err != nil {
		return nil, apperr.Internal("join consultation", err)
	}
	return c, nil
}

// DoctorPatients lists the distinct patients a doctor has consulted.
func (s *Service) DoctorPatients(ctx context.Context, caller *identity.Caller) []*PatientSummary {
	if !caller.IsDoctor() {
		return []*PatientSummary{}
	}
	out, err := s.repo.DoctorPatients(ctx, caller.DoctorID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("list doctor patients")
		metrics.StoreErrors.WithLabelValues("consultation").Inc()
		return []*PatientSummary{}
	}
	if out == nil {
		out = []*PatientSummary{}
	}
	return out
}

// HasConsulted reports whether the doctor has at least one consultation
// with the patient, in any status.
func (s *Service) HasConsulted(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	n, err := s.repo.CountBetween(ctx, doctorID, patientID)
	if err != nil {
		return false, apperr.Internal("check doctor-patient relationship", err)
	}
	return n > 0, nil
}
