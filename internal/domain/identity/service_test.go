package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/telehealth/internal/platform/apperr"
	"github.com/ehr/telehealth/internal/platform/auth"
)

// -- Mock Repositories --

type mockUserRepo struct {
	mu      sync.Mutex
	byExt   map[string]*User
	inserts int
	err     error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{byExt: make(map[string]*User)}
}

func (m *mockUserRepo) GetByExternalID(_ context.Context, externalID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byExt[externalID]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) CreateIfAbsent(_ context.Context, u *User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.byExt[u.ExternalID]; ok {
		return false, nil
	}
	cp := *u
	cp.CreatedAt, cp.UpdatedAt = time.Now(), time.Now()
	m.byExt[u.ExternalID] = &cp
	m.inserts++
	return true, nil
}

type mockProfileRepo struct {
	mu             sync.Mutex
	patients       map[uuid.UUID]*PatientProfile
	doctors        map[uuid.UUID]*DoctorProfile
	users          map[uuid.UUID]*User
	patientInserts int
	doctorInserts  int
	err            error
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{
		patients: make(map[uuid.UUID]*PatientProfile),
		doctors:  make(map[uuid.UUID]*DoctorProfile),
		users:    make(map[uuid.UUID]*User),
	}
}

func (m *mockProfileRepo) GetPatientByUserID(_ context.Context, userID uuid.UUID) (*PatientProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.patients[userID]
	if !ok {
		return nil, apperr.NotFound("patient profile")
	}
	return p, nil
}

func (m *mockProfileRepo) GetDoctorByUserID(_ context.Context, userID uuid.UUID) (*DoctorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	d, ok := m.doctors[userID]
	if !ok {
		return nil, apperr.NotFound("doctor profile")
	}
	return d, nil
}

func (m *mockProfileRepo) GetDoctor(_ context.Context, id uuid.UUID) (*DoctorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.doctors {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, apperr.NotFound("doctor profile")
}

func (m *mockProfileRepo) CreatePatientIfAbsent(_ context.Context, p *PatientProfile) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.patients[p.UserID]; ok {
		return false, nil
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.patients[p.UserID] = p
	m.patientInserts++
	return true, nil
}

func (m *mockProfileRepo) CreateDoctorIfAbsent(_ context.Context, d *DoctorProfile) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.doctors[d.UserID]; ok {
		return false, nil
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	m.doctors[d.UserID] = d
	m.doctorInserts++
	return true, nil
}

func (m *mockProfileRepo) UpdatePatient(_ context.Context, userID uuid.UUID, u PatientProfileUpdate) (*PatientProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[userID]
	if !ok {
		return nil, apperr.NotFound("patient profile")
	}
	if u.Gender != nil {
		p.Gender = u.Gender
	}
	if u.BloodType != nil {
		p.BloodType = u.BloodType
	}
	if u.Allergies != nil {
		p.Allergies = u.Allergies
	}
	if u.DateOfBirth != nil {
		p.DateOfBirth = u.DateOfBirth
	}
	return p, nil
}

func (m *mockProfileRepo) UpdateDoctor(_ context.Context, userID uuid.UUID, u DoctorProfileUpdate) (*DoctorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[userID]
	if !ok {
		return nil, apperr.NotFound("doctor profile")
	}
	if u.Specialty != nil {
		d.Specialty = u.Specialty
	}
	if u.ConsultationFee != nil {
		d.ConsultationFee = *u.ConsultationFee
	}
	if u.IsAvailable != nil {
		d.IsAvailable = *u.IsAvailable
	}
	return d, nil
}

func (m *mockProfileRepo) ListDoctors(_ context.Context, f DirectoryFilter) ([]*DoctorListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*DoctorListing
	for _, d := range m.doctors {
		if f.AvailableOnly && !d.IsAvailable {
			continue
		}
		if f.Specialty != "" && (d.Specialty == nil || !strings.EqualFold(*d.Specialty, f.Specialty)) {
			continue
		}
		out = append(out, &DoctorListing{DoctorProfile: *d})
	}
	return out, nil
}

type passthroughTx struct {
	mu    sync.Mutex
	calls int
}

func (p *passthroughTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return fn(ctx)
}

func newTestService() (*Service, *mockUserRepo, *mockProfileRepo) {
	users := newMockUserRepo()
	profiles := newMockProfileRepo()
	return NewService(users, profiles, &passthroughTx{}), users, profiles
}

func patientSession(sub string) *auth.Session {
	return &auth.Session{Subject: sub, Email: sub + "@example.com", FirstName: "Pat", LastName: "Ient"}
}

// -- Resolve --

func TestResolve_NilSession(t *testing.T) {
	svc, _, _ := newTestService()
	cu, err := svc.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, cu)
}

func TestResolve_ProvisionsOnceThenReuses(t *testing.T) {
	svc, users, profiles := newTestService()
	ctx := context.Background()

	first, err := svc.Resolve(ctx, patientSession("user_new"))
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, RolePatient, first.Role)
	require.NotNil(t, first.PatientData)
	assert.Nil(t, first.DoctorData)
	assert.False(t, first.Transient)
	assert.Equal(t, 1, users.inserts)
	assert.Equal(t, 1, profiles.patientInserts)

	second, err := svc.Resolve(ctx, patientSession("user_new"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.PatientData.ID, second.PatientData.ID)
	assert.Equal(t, 1, users.inserts)
	assert.Equal(t, 1, profiles.patientInserts)
}

func TestResolve_DoctorHint(t *testing.T) {
	svc, _, profiles := newTestService()
	sess := &auth.Session{Subject: "doc_1", RoleHint: "Doctor"}

	cu, err := svc.Resolve(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, RoleDoctor, cu.Role)
	require.NotNil(t, cu.DoctorData)
	assert.False(t, cu.DoctorData.IsAvailable)
	assert.False(t, cu.DoctorData.IsVerified)
	assert.Equal(t, 1, profiles.doctorInserts)

	caller := cu.Caller()
	assert.True(t, caller.IsDoctor())
	assert.Equal(t, cu.DoctorData.ID, caller.DoctorID)
	assert.Equal(t, uuid.Nil, caller.PatientID)
}

func TestResolve_AdminHintIgnored(t *testing.T) {
	svc, _, _ := newTestService()
	cu, err := svc.Resolve(context.Background(), &auth.Session{Subject: "sneaky", RoleHint: "admin"})
	require.NoError(t, err)
	assert.Equal(t, RolePatient, cu.Role)
}

func TestResolve_RepairsMissingProfile(t *testing.T) {
	svc, users, profiles := newTestService()
	ctx := context.Background()
	legacy := &User{ID: uuid.New(), ExternalID: "legacy", Role: RolePatient, IsActive: true}
	_, err := users.CreateIfAbsent(ctx, legacy)
	require.NoError(t, err)

	cu, err := svc.Resolve(ctx, patientSession("legacy"))
	require.NoError(t, err)
	require.NotNil(t, cu.PatientData)
	assert.Equal(t, legacy.ID, cu.PatientData.UserID)
	assert.Equal(t, 1, users.inserts)
	assert.Equal(t, 1, profiles.patientInserts)
}

func TestResolve_StoreFailureFallsBackToTransient(t *testing.T) {
	svc, users, _ := newTestService()
	users.err = errors.New("connection refused")
	sess := &auth.Session{Subject: "user_x", Email: "x@example.com", FirstName: "X", RoleHint: "doctor"}

	cu, err := svc.Resolve(context.Background(), sess)
	require.NoError(t, err)
	require.NotNil(t, cu)
	assert.True(t, cu.Transient)
	assert.Equal(t, RolePatient, cu.Role)
	assert.Equal(t, uuid.Nil, cu.ID)
	assert.Equal(t, "x@example.com", cu.Email)
	assert.Nil(t, cu.PatientData)
	assert.False(t, cu.Caller().IsPatient())
}

func TestResolve_ProfileFailureFallsBack(t *testing.T) {
	svc, _, profiles := newTestService()
	profiles.err = errors.New("timeout")

	cu, err := svc.Resolve(context.Background(), patientSession("user_y"))
	require.NoError(t, err)
	assert.True(t, cu.Transient)
}

func TestResolve_RunsInTransaction(t *testing.T) {
	tx := &passthroughTx{}
	svc := NewService(newMockUserRepo(), newMockProfileRepo(), tx)
	_, err := svc.Resolve(context.Background(), patientSession("user_tx"))
	require.NoError(t, err)
	assert.Equal(t, 1, tx.calls)
}

func TestResolve_ConcurrentFirstRequests(t *testing.T) {
	svc, users, profiles := newTestService()

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cu, err := svc.Resolve(context.Background(), patientSession("racer"))
			if err == nil && cu != nil {
				ids[i] = cu.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, users.inserts)
	assert.Equal(t, 1, profiles.patientInserts)
}

// -- Profiles --

func resolvedCaller(t *testing.T, svc *Service, sess *auth.Session) *Caller {
	t.Helper()
	cu, err := svc.Resolve(context.Background(), sess)
	require.NoError(t, err)
	return cu.Caller()
}

func TestUpdatePatientProfile(t *testing.T) {
	svc, _, _ := newTestService()
	caller := resolvedCaller(t, svc, patientSession("p1"))

	bt := "o+"
	allergies := "penicillin"
	p, err := svc.UpdatePatientProfile(context.Background(), caller, PatientProfileUpdate{BloodType: &bt, Allergies: &allergies})
	require.NoError(t, err)
	assert.Equal(t, "O+", *p.BloodType)
	assert.Equal(t, "penicillin", *p.Allergies)
}

func TestUpdatePatientProfile_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	caller := resolvedCaller(t, svc, patientSession("p1"))

	bad := "Z"
	_, err := svc.UpdatePatientProfile(context.Background(), caller, PatientProfileUpdate{BloodType: &bad})
	assert.True(t, apperr.IsInvalid(err))

	future := time.Now().Add(48 * time.Hour)
	_, err = svc.UpdatePatientProfile(context.Background(), caller, PatientProfileUpdate{DateOfBirth: &future})
	assert.True(t, apperr.IsInvalid(err))
}

func TestUpdatePatientProfile_WrongRole(t *testing.T) {
	svc, _, _ := newTestService()
	doctor := resolvedCaller(t, svc, &auth.Session{Subject: "d1", RoleHint: "doctor"})

	_, err := svc.UpdatePatientProfile(context.Background(), doctor, PatientProfileUpdate{})
	assert.True(t, apperr.IsUnauthorized(err))

	_, err = svc.UpdatePatientProfile(context.Background(), nil, PatientProfileUpdate{})
	assert.True(t, apperr.IsUnauthenticated(err))
}

func TestUpdateDoctorProfile(t *testing.T) {
	svc, _, _ := newTestService()
	doctor := resolvedCaller(t, svc, &auth.Session{Subject: "d1", RoleHint: "doctor"})

	fee := 75.0
	avail := true
	d, err := svc.UpdateDoctorProfile(context.Background(), doctor, DoctorProfileUpdate{ConsultationFee: &fee, IsAvailable: &avail})
	require.NoError(t, err)
	assert.Equal(t, 75.0, d.ConsultationFee)
	assert.True(t, d.IsAvailable)

	neg := -1.0
	_, err = svc.UpdateDoctorProfile(context.Background(), doctor, DoctorProfileUpdate{ConsultationFee: &neg})
	assert.True(t, apperr.IsInvalid(err))
}

func TestDoctors_DegradesOnStoreError(t *testing.T) {
	svc, _, profiles := newTestService()
	profiles.err = errors.New("down")

	out := svc.Doctors(context.Background(), DirectoryFilter{})
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestDoctors_Filter(t *testing.T) {
	svc, _, profiles := newTestService()
	cardio := "Cardiology"
	profiles.doctors[uuid.New()] = &DoctorProfile{ID: uuid.New(), Specialty: &cardio, IsAvailable: true}
	profiles.doctors[uuid.New()] = &DoctorProfile{ID: uuid.New(), Specialty: &cardio}

	assert.Len(t, svc.Doctors(context.Background(), DirectoryFilter{Specialty: "cardiology"}), 2)
	assert.Len(t, svc.Doctors(context.Background(), DirectoryFilter{AvailableOnly: true}), 1)
}
