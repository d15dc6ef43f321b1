package prescription

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/telehealth/internal/domain/consultation"
	"github.com/ehr/telehealth/internal/domain/identity"
	"github.com/ehr/telehealth/internal/platform/apperr"
)

var baseNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

// -- Fakes --

type fakeConsultations struct {
	items map[uuid.UUID]*consultation.Consultation
	err   error
}

func (f *fakeConsultations) Authorize(_ context.Context, id uuid.UUID, caller *identity.Caller) (*consultation.Access, error) {
	c, ok := f.items[id]
	if !ok {
		return nil, apperr.NotFound("consultation")
	}
	if caller.IsDoctor() && c.DoctorID == caller.DoctorID {
		return &consultation.Access{Consultation: c, As: consultation.AsDoctor}, nil
	}
	if caller.IsPatient() && c.PatientID == caller.PatientID {
		return &consultation.Access{Consultation: c, As: consultation.AsPatient}, nil
	}
	return nil, apperr.Unauthorized("not a participant")
}

func (f *fakeConsultations) HasConsulted(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, apperr.Internal("count", f.err)
	}
	for _, c := range f.items {
		if c.DoctorID == doctorID && c.PatientID == patientID {
			return true, nil
		}
	}
	return false, nil
}

type mockRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Prescription
	err   error
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Prescription)}
}

func (m *mockRepo) list(match func(*Prescription) bool, f Filter) ([]*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*Prescription
	for _, p := range m.items {
		if !match(p) || (f.ActiveOnly && !p.IsActive) || (f.Status != "" && p.Status != f.Status) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PrescribedAt.After(out[j].PrescribedAt) })
	return out, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, f Filter) ([]*Prescription, error) {
	return m.list(func(p *Prescription) bool { return p.PatientID == patientID }, f)
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, f Filter) ([]*Prescription, error) {
	return m.list(func(p *Prescription) bool { return p.DoctorID == doctorID }, f)
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("prescription")
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) Create(_ context.Context, p *Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if p.PrescribedAt.IsZero() {
		p.PrescribedAt = baseNow
	}
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *mockRepo) Discontinue(_ context.Context, id, doctorID uuid.UUID) (*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok || p.DoctorID != doctorID {
		return nil, apperr.NotFound("prescription")
	}
	p.IsActive = false
	p.Status = StatusCancelled
	cp := *p
	return &cp, nil
}

// -- Fixture --

type fixture struct {
	repo *mockRepo
	cons *fakeConsultations
	svc  *Service
}

func newFixture() *fixture {
	repo := newMockRepo()
	cons := &fakeConsultations{items: make(map[uuid.UUID]*consultation.Consultation)}
	svc := NewService(repo, cons)
	svc.now = func() time.Time { return baseNow }
	return &fixture{repo: repo, cons: cons, svc: svc}
}

func patientCaller() *identity.Caller {
	return &identity.Caller{UserID: uuid.New(), Role: identity.RolePatient, PatientID: uuid.New()}
}

func doctorCaller() *identity.Caller {
	return &identity.Caller{UserID: uuid.New(), Role: identity.RoleDoctor, DoctorID: uuid.New()}
}

func (f *fixture) consult(p, d *identity.Caller) uuid.UUID {
	c := &consultation.Consultation{ID: uuid.New(), PatientID: p.PatientID, DoctorID: d.DoctorID}
	f.cons.items[c.ID] = c
	return c.ID
}

func (f *fixture) seed(patientID, doctorID uuid.UUID, at time.Time, active bool) *Prescription {
	p := &Prescription{
		ID:             uuid.New(),
		PatientID:      patientID,
		DoctorID:       doctorID,
		MedicationName: "Amoxicillin",
		Dosage:         "500mg",
		Frequency:      "3x daily",
		Status:         StatusPending,
		IsActive:       active,
		PrescribedAt:   at,
	}
	if !active {
		p.Status = StatusCompleted
	}
	if err := f.repo.Create(context.Background(), p); err != nil {
		panic(err)
	}
	return p
}

// -- Tests --

func TestListForPatient_OnlyOwnPrescriptions(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	f := newFixture()
	patients := []*identity.Caller{patientCaller(), patientCaller(), patientCaller()}
	d := doctorCaller()
	for i := 0; i < 60; i++ {
		owner := patients[rng.Intn(len(patients))]
		f.seed(owner.PatientID, d.DoctorID, baseNow.Add(-time.Duration(rng.Intn(1000))*time.Hour), rng.Intn(2) == 0)
	}

	for _, p := range patients {
		got := f.svc.ListForPatient(context.Background(), p, Filter{})
		for _, rx := range got {
			assert.Equal(t, p.PatientID, rx.PatientID)
		}
		for i := 1; i < len(got); i++ {
			assert.False(t, got[i].PrescribedAt.After(got[i-1].PrescribedAt))
		}
	}
}

func TestListForPatient_Filters(t *testing.T) {
	f := newFixture()
	p, d := patientCaller(), doctorCaller()
	f.seed(p.PatientID, d.DoctorID, baseNow.Add(-time.Hour), true)
	f.seed(p.PatientID, d.DoctorID, baseNow.Add(-2*time.Hour), false)
	ctx := context.Background()

	assert.Len(t, f.svc.ListForPatient(ctx, p, Filter{}), 2)
	assert.Len(t, f.svc.ListForPatient(ctx, p, Filter{ActiveOnly: true}), 1)
	assert.Len(t, f.svc.ListForPatient(ctx, p, Filter{Status: StatusCompleted}), 1)
}

func TestListForPatient_Degrades(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	got := f.svc.ListForPatient(ctx, nil, Filter{})
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, f.svc.ListForPatient(ctx, doctorCaller(), Filter{}))

	f.repo.err = errors.New("connection reset")
	got = f.svc.ListForPatient(ctx, patientCaller(), Filter{})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListForDoctor(t *testing.T) {
	f := newFixture()
	p, d := patientCaller(), doctorCaller()
	f.seed(p.PatientID, d.DoctorID, baseNow, true)
	f.seed(p.PatientID, uuid.New(), baseNow, true)

	got := f.svc.ListForDoctor(context.Background(), d, Filter{})
	require.Len(t, got, 1)
	assert.Equal(t, d.DoctorID, got[0].DoctorID)
	assert.Empty(t, f.svc.ListForDoctor(context.Background(), p, Filter{}))
}

func TestGet_Visibility(t *testing.T) {
	f := newFixture()
	p, d := patientCaller(), doctorCaller()
	rx := f.seed(p.PatientID, d.DoctorID, baseNow, true)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, p, rx.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, d, rx.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, patientCaller(), rx.ID)
	assert.True(t, apperr.IsUnauthorized(err))
	_, err = f.svc.Get(ctx, doctorCaller(), rx.ID)
	assert.True(t, apperr.IsUnauthorized(err))
	_, err = f.svc.Get(ctx, p, uuid.New())
	assert.True(t, apperr.IsNotFound(err))
	_, err = f.svc.Get(ctx, nil, rx.ID)
	assert.True(t, apperr.IsUnauthenticated(err))
}

func TestCreate_WithConsultation(t *testing.T) {
	f := newFixture()
	p, d := patientCaller(), doctorCaller()
	cid := f.consult(p, d)

	rx, err := f.svc.Create(context.Background(), d, CreateInput{
		ConsultationID: &cid,
		MedicationName: " Ibuprofen ",
		Dosage:         "200mg",
		Frequency:      "as needed",
		Instructions:   "with food",
	})
	require.NoError(t, err)
	assert.Equal(t, p.PatientID, rx.PatientID)
	assert.Equal(t, d.DoctorID, rx.DoctorID)
	assert.Equal(t, "Ibuprofen", rx.MedicationName)
	assert.Equal(t, StatusPending, rx.Status)
	assert.True(t, rx.IsActive)
	require.NotNil(t, rx.Instructions)
	assert.Nil(t, rx.PharmacyName)
}

func TestCreate_Errors(t *testing.T) {
	f := newFixture()
	p, d := patientCaller(), doctorCaller()
	cid := f.consult(p, d)
	strangerConsult := f.consult(patientCaller(), doctorCaller())
	ctx := context.Background()
	past := baseNow.Add(-time.Hour)
	zero := 0
	valid := CreateInput{PatientID: p.PatientID, MedicationName: "X", Dosage: "1", Frequency: "daily"}

	with := func(mut func(*CreateInput)) CreateInput {
		in := valid
		mut(&in)
		return in
	}

	tests := []struct {
		name   string
		caller *identity.Caller
		in     CreateInput
		kind   apperr.Kind
	}{
		{"anonymous", nil, valid, apperr.KindUnauthenticated},
		{"patient", p, valid, apperr.KindUnauthorized},
		{"no medication", d, with(func(in *CreateInput) { in.MedicationName = " " }), apperr.KindInvalid},
		{"no dosage", d, with(func(in *CreateInput) { in.Dosage = "" }), apperr.KindInvalid},
		{"no frequency", d, with(func(in *CreateInput) { in.Frequency = "" }), apperr.KindInvalid},
		{"refills", d, with(func(in *CreateInput) { in.Refills = maxRefills + 1 }), apperr.KindInvalid},
		{"quantity", d, with(func(in *CreateInput) { in.Quantity = &zero }), apperr.KindInvalid},
		{"expired", d, with(func(in *CreateInput) { in.ExpiresAt = &past }), apperr.KindInvalid},
		{"no patient", d, with(func(in *CreateInput) { in.PatientID = uuid.Nil }), apperr.KindInvalid},
		{"stranger patient", d, with(func(in *CreateInput) { in.PatientID = uuid.New() }), apperr.KindUnauthorized},
		{"other doctor's consultation", d, with(func(in *CreateInput) { in.ConsultationID = &strangerConsult }), apperr.KindUnauthorized},
		{"patient mismatch", d, with(func(in *CreateInput) {
			in.ConsultationID = &cid
			in.PatientID = uuid.New()
		}), apperr.KindInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.caller, tt.in)
			assert.Equal(t, tt.kind, apperr.KindOf(err), "got %v", err)
		})
	}
	assert.Empty(t, f.repo.items)
}

func TestCreate_PriorRelationship(t *testing.T) {
	f := newFixture()
	p, d := patientCaller(), doctorCaller()
	f.consult(p, d)

	rx, err := f.svc.Create(context.Background(), d, CreateInput{
		PatientID: p.PatientID, MedicationName: "X", Dosage: "1", Frequency: "daily",
	})
	require.NoError(t, err)
	assert.Nil(t, rx.ConsultationID)

	f.cons.err = errors.New("connection reset")
	_, err = f.svc.Create(context.Background(), d, CreateInput{
		PatientID: p.PatientID, MedicationName: "X", Dosage: "1", Frequency: "daily",
	})
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestDiscontinue(t *testing.T) {
	f := newFixture()
	p, d := patientCaller(), doctorCaller()
	rx := f.seed(p.PatientID, d.DoctorID, baseNow, true)
	ctx := context.Background()

	_, err := f.svc.Discontinue(ctx, doctorCaller(), rx.ID)
	assert.True(t, apperr.IsNotFound(err))
	assert.True(t, f.repo.items[rx.ID].IsActive)

	_, err = f.svc.Discontinue(ctx, p, rx.ID)
	assert.True(t, apperr.IsUnauthorized(err))

	got, err := f.svc.Discontinue(ctx, d, rx.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestPrescription_DoctorName(t *testing.T) {
	assert.Equal(t, "", (&Prescription{}).DoctorName())
	assert.Equal(t, "Dr. Ada Lovelace", (&Prescription{DoctorFirstName: "Ada", DoctorLastName: "Lovelace"}).DoctorName())
}
