//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/ehr/telehealth/internal/domain/consultation"
	"github.com/ehr/telehealth/internal/domain/identity"
	"github.com/ehr/telehealth/internal/platform/auth"
	"github.com/ehr/telehealth/internal/platform/db"
)

func newIdentityService() *identity.Service {
	return identity.NewService(
		identity.NewUserRepoPG(globalPool),
		identity.NewProfileRepoPG(globalPool),
		db.NewTransactor(globalPool),
	)
}

func newConsultationService() *consultation.Service {
	return consultation.NewService(consultation.NewRepoPG(globalPool), newIdentityService())
}

// signUp resolves a fresh external identity with the given role hint.
func signUp(t *testing.T, ctx context.Context, role string) *identity.CurrentUser {
	t.Helper()
	sub := "user_" + uuid.NewString()
	cu, err := newIdentityService().Resolve(ctx, &auth.Session{
		Subject:   sub,
		Email:     sub + "@example.test",
		FirstName: "Test",
		LastName:  role,
		RoleHint:  role,
	})
	if err != nil {
		t.Fatalf("resolve identity: %v", err)
	}
	if cu.Transient {
		t.Fatal("expected a persisted identity, got the transient fallback")
	}
	return cu
}

// availableDoctor signs up a doctor who accepts consultations at fee.
func availableDoctor(t *testing.T, ctx context.Context, fee float64) *identity.CurrentUser {
	t.Helper()
	cu := signUp(t, ctx, "doctor")
	available := true
	specialty := "General Practice"
	_, err := newIdentityService().UpdateDoctorProfile(ctx, cu.Caller(), identity.DoctorProfileUpdate{
		IsAvailable:     &available,
		ConsultationFee: &fee,
		Specialty:       &specialty,
	})
	if err != nil {
		t.Fatalf("update doctor profile: %v", err)
	}
	return cu
}
