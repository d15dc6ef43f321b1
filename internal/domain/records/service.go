package records

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/telehealth/internal/domain/consultation"
	"github.com/ehr/telehealth/internal/domain/identity"
	"github.com/ehr/telehealth/internal/domain/prescription"
	"github.com/ehr/telehealth/internal/platform/apperr"
	"github.com/ehr/telehealth/internal/platform/metrics"
)

// ConsultationSource is satisfied by consultation.Repository.
type ConsultationSource interface {
	List(ctx context.Context, f consultation.Filter) ([]*consultation.View, error)
}

// PrescriptionSource is satisfied by prescription.Repository.
type PrescriptionSource interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID, f prescription.Filter) ([]*prescription.Prescription, error)
}

// Relationship is satisfied by *consultation.Service.
type Relationship interface {
	HasConsulted(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
}

type Service struct {
	symptoms      SymptomRepository
	consultations ConsultationSource
	prescriptions PrescriptionSource
	relationship  Relationship
	now           func() time.Time
}

func NewService(symptoms SymptomRepository, consultations ConsultationSource, prescriptions PrescriptionSource, relationship Relationship) *Service {
	return &Service{
		symptoms:      symptoms,
		consultations: consultations,
		prescriptions: prescriptions,
		relationship:  relationship,
		now:           time.Now,
	}
}

// -- Aggregation --

// PatientRecords merges the caller's consultations, symptoms and
// prescriptions into one history, newest first.
func (s *Service) PatientRecords(ctx context.Context, caller *identity.Caller) []*MedicalRecord {
	if !caller.IsPatient() {
		return []*MedicalRecord{}
	}
	return s.aggregate(ctx, caller.PatientID)
}

// RecordsByType filters the aggregate to one source type.
func (s *Service) RecordsByType(ctx context.Context, caller *identity.Caller, t RecordType) ([]*MedicalRecord, error) {
	if !t.Valid() {
		return nil, apperr.Invalid("record type %q is not supported", t)
	}
	out := []*MedicalRecord{}
	for _, r := range s.PatientRecords(ctx, caller) {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out, nil
}

// RecentActivity returns the first limit records of the aggregate.
func (s *Service) RecentActivity(ctx context.Context, caller *identity.Caller, limit int) []*MedicalRecord {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	all := s.PatientRecords(ctx, caller)
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// PatientRecordsForDoctor is the aggregate for one of the calling
// doctor's patients.
func (s *Service) PatientRecordsForDoctor(ctx context.Context, caller *identity.Caller, patientID uuid.UUID) ([]*MedicalRecord, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("sign in to view medical records")
	}
	if !caller.IsDoctor() {
		return nil, apperr.Unauthorized("only doctors can view a patient's records")
	}
	ok, err := s.relationship.HasConsulted(ctx, caller.DoctorID, patientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.AccessDenied.WithLabelValues(string(caller.Role), "records").Inc()
		return nil, apperr.Unauthorized("you have no consultations with this patient")
	}
	return s.aggregate(ctx, patientID), nil
}

// aggregate runs the three source queries independently. A failing
// source is logged and left out; the rest are still returned.
func (s *Service) aggregate(ctx context.Context, patientID uuid.UUID) []*MedicalRecord {
	log := zerolog.Ctx(ctx)
	out := []*MedicalRecord{}

	views, err := s.consultations.List(ctx, consultation.Filter{PatientID: &patientID})
	if err != nil {
		log.Error().Err(err).Msg("records: list consultations")
		metrics.StoreErrors.WithLabelValues("records").Inc()
	}
	for _, v := range views {
		out = append(out, fromConsultation(v))
	}

	symptoms, err := s.symptoms.ListByPatient(ctx, patientID, false)
	if err != nil {
		log.Error().Err(err).Msg("records: list symptoms")
		metrics.StoreErrors.WithLabelValues("records").Inc()
	}
	for _, sym := range symptoms {
		out = append(out, fromSymptom(sym))
	}

	rxs, err := s.prescriptions.ListByPatient(ctx, patientID, prescription.Filter{})
	if err != nil {
		log.Error().Err(err).Msg("records: list prescriptions")
		metrics.StoreErrors.WithLabelValues("records").Inc()
	}
	for _, rx := range rxs {
		out = append(out, fromPrescription(rx))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

// -- Mapping --

func consultationTitle(t consultation.Type) string {
	return strings.ToUpper(strings.ReplaceAll(string(t), "_", " ")) + " Consultation"
}

func symptomTitle(name string, sev Severity) string {
	return name + " - " + strings.ToUpper(string(sev)) + " Severity"
}

func prescriptionTitle(medication string) string {
	return medication + " Prescription"
}

func firstNonEmpty(vals ...*string) string {
	for _, v := range vals {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

func fromConsultation(v *consultation.View) *MedicalRecord {
	r := &MedicalRecord{
		ID:          v.ID,
		Date:        v.ScheduledAt,
		Type:        TypeConsultation,
		Title:       consultationTitle(v.Type),
		Description: firstNonEmpty(v.Diagnosis, v.Symptoms, v.Notes),
		Status:      string(v.Status),
		Data:        v,
	}
	if r.Description == "" {
		r.Description = "No diagnosis recorded"
	}
	if v.Doctor != nil && (v.Doctor.FirstName != "" || v.Doctor.LastName != "") {
		name := "Dr. " + v.Doctor.FirstName + " " + v.Doctor.LastName
		r.Doctor = &name
	}
	return r
}

func fromSymptom(sym *Symptom) *MedicalRecord {
	status := "pending"
	if sym.ResolvedDate != nil {
		status = "completed"
	}
	desc := firstNonEmpty(sym.Description)
	if desc == "" && sym.BodyPart != nil {
		desc = "Affected area: " + *sym.BodyPart
	}
	return &MedicalRecord{
		ID:          sym.ID,
		Date:        sym.CreatedAt,
		Type:        TypeSymptom,
		Title:       symptomTitle(sym.Name, sym.Severity),
		Description: desc,
		Status:      status,
		Data:        sym,
	}
}

func fromPrescription(rx *prescription.Prescription) *MedicalRecord {
	r := &MedicalRecord{
		ID:          rx.ID,
		Date:        rx.PrescribedAt,
		Type:        TypePrescription,
		Title:       prescriptionTitle(rx.MedicationName),
		Description: rx.Dosage + " - " + rx.Frequency,
		Status:      string(rx.Status),
		Data:        rx,
	}
	if name := rx.DoctorName(); name != "" {
		r.Doctor = &name
	}
	return r
}

// -- Symptoms --

func (s *Service) ListSymptoms(ctx context.Context, caller *identity.Caller, activeOnly bool) []*Symptom {
	if !caller.IsPatient() {
		return []*Symptom{}
	}
	out, err := s.symptoms.ListByPatient(ctx, caller.PatientID, activeOnly)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("list symptoms")
		metrics.StoreErrors.WithLabelValues("records").Inc()
		return []*Symptom{}
	}
	if out == nil {
		out = []*Symptom{}
	}
	return out
}

func (s *Service) ReportSymptom(ctx context.Context, caller *identity.Caller, in SymptomInput) (*Symptom, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("sign in to report symptoms")
	}
	if !caller.IsPatient() {
		return nil, apperr.Unauthorized("only patients can report symptoms")
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.Invalid("symptomName is required")
	}
	in.Severity = Severity(strings.ToLower(string(in.Severity)))
	if !in.Severity.Valid() {
		return nil, apperr.Invalid("severity must be mild, moderate or severe")
	}
	if in.OnsetDate != nil && in.OnsetDate.After(s.now()) {
		return nil, apperr.Invalid("onsetDate cannot be in the future")
	}

	sym := &Symptom{
		ID:        uuid.New(),
		PatientID: caller.PatientID,
		Name:      in.Name,
		Severity:  in.Severity,
		OnsetDate: in.OnsetDate,
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		sym.Description = &d
	}
	if b := strings.TrimSpace(in.BodyPart); b != "" {
		sym.BodyPart = &b
	}
	if err := s.symptoms.Create(ctx, sym); err != nil {
		return nil, apperr.Internal("report symptom", err)
	}
	return sym, nil
}

func (s *Service) ResolveSymptom(ctx context.Context, caller *identity.Caller, id uuid.UUID) (*Symptom, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("sign in to update symptoms")
	}
	if !caller.IsPatient() {
		return nil, apperr.Unauthorized("only patients can resolve symptoms")
	}
	sym, err := s.symptoms.Resolve(ctx, id, caller.PatientID, s.now().UTC())
	if err != nil {
		return nil, apperr.Internal("resolve symptom", err)
	}
	return sym, nil
}
