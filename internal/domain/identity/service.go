package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/telehealth/internal/platform/apperr"
	"github.com/ehr/telehealth/internal/platform/auth"
	"github.com/ehr/telehealth/internal/platform/metrics"
)

// Resolution outcomes, also used as metric labels.
const (
	outcomeExisting    = "existing"
	outcomeProvisioned = "provisioned"
	outcomeRepaired    = "repaired"
	outcomeFallback    = "fallback"
)

type Service struct {
	users    UserRepository
	profiles ProfileRepository
	tx       Transactor
	now      func() time.Time
}

func NewService(users UserRepository, profiles ProfileRepository, tx Transactor) *Service {
	return &Service{users: users, profiles: profiles, tx: tx, now: time.Now}
}

// Resolve maps an authenticated session to its application user, creating
// the user and its role profile on first sight. A nil session resolves to
// nil. Store failures never surface: the caller gets a transient patient
// built from the session claims instead.
func (s *Service) Resolve(ctx context.Context, sess *auth.Session) (*CurrentUser, error) {
	if sess == nil || sess.Subject == "" {
		return nil, nil
	}

	var cu *CurrentUser
	var outcome string
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		cu, outcome, err = s.resolve(ctx, sess)
		return err
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("external_id", sess.Subject).
			Msg("identity store unavailable, serving transient user")
		metrics.IdentityResolutions.WithLabelValues(outcomeFallback).Inc()
		return s.transientUser(sess), nil
	}

	metrics.IdentityResolutions.WithLabelValues(outcome).Inc()
	if outcome != outcomeExisting {
		zerolog.Ctx(ctx).Info().
			Str("user_id", cu.ID.String()).
			Str("role", string(cu.Role)).
			Str("outcome", outcome).
			Msg("identity provisioned")
	}
	return cu, nil
}

func (s *Service) resolve(ctx context.Context, sess *auth.Session) (*CurrentUser, string, error) {
	outcome := outcomeExisting

	u, err := s.users.GetByExternalID(ctx, sess.Subject)
	if apperr.IsNotFound(err) {
		created, err := s.users.CreateIfAbsent(ctx, newUserFromSession(sess))
		if err != nil {
			return nil, "", err
		}
		if created {
			outcome = outcomeProvisioned
		}
		// Re-read so a concurrent first request that won the insert is
		// observed instead of our discarded row.
		u, err = s.users.GetByExternalID(ctx, sess.Subject)
		if err != nil {
			return nil, "", err
		}
	} else if err != nil {
		return nil, "", err
	}

	cu := &CurrentUser{User: *u}
	created, err := s.attachProfile(ctx, cu)
	if err != nil {
		return nil, "", err
	}
	if created && outcome == outcomeExisting {
		outcome = outcomeRepaired
	}
	return cu, outcome, nil
}

// attachProfile loads the role profile for cu, creating it when missing.
// It reports whether a profile row was inserted.
func (s *Service) attachProfile(ctx context.Context, cu *CurrentUser) (bool, error) {
	switch cu.Role {
	case RolePatient:
		p, err := s.profiles.GetPatientByUserID(ctx, cu.ID)
		if err == nil {
			cu.PatientData = p
			return false, nil
		}
		if !apperr.IsNotFound(err) {
			return false, err
		}
		created, err := s.profiles.CreatePatientIfAbsent(ctx, &PatientProfile{UserID: cu.ID})
		if err != nil {
			return false, err
		}
		if cu.PatientData, err = s.profiles.GetPatientByUserID(ctx, cu.ID); err != nil {
			return false, err
		}
		return created, nil

	case RoleDoctor:
		d, err := s.profiles.GetDoctorByUserID(ctx, cu.ID)
		if err == nil {
			cu.DoctorData = d
			return false, nil
		}
		if !apperr.IsNotFound(err) {
			return false, err
		}
		created, err := s.profiles.CreateDoctorIfAbsent(ctx, &DoctorProfile{UserID: cu.ID})
		if err != nil {
			return false, err
		}
		if cu.DoctorData, err = s.profiles.GetDoctorByUserID(ctx, cu.ID); err != nil {
			return false, err
		}
		return created, nil
	}
	return false, nil
}

// roleFromHint accepts patient and doctor hints. Admin is never granted
// from provider metadata.
func roleFromHint(hint string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(hint))) {
	case RoleDoctor:
		return RoleDoctor
	default:
		return RolePatient
	}
}

func newUserFromSession(sess *auth.Session) *User {
	u := &User{
		ID:         uuid.New(),
		ExternalID: sess.Subject,
		Role:       roleFromHint(sess.RoleHint),
		FirstName:  sess.FirstName,
		LastName:   sess.LastName,
		Email:      sess.Email,
		IsActive:   true,
	}
	if sess.Phone != "" {
		u.Phone = &sess.Phone
	}
	if sess.AvatarURL != "" {
		u.AvatarURL = &sess.AvatarURL
	}
	return u
}

func (s *Service) transientUser(sess *auth.Session) *CurrentUser {
	u := newUserFromSession(sess)
	u.ID = uuid.Nil
	u.Role = RolePatient
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	return &CurrentUser{User: *u, Transient: true}
}

// -- Profiles --

func (s *Service) UpdatePatientProfile(ctx context.Context, caller *Caller, upd PatientProfileUpdate) (*PatientProfile, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("sign in to update your profile")
	}
	if !caller.IsPatient() {
		return nil, apperr.Unauthorized("only patients have a patient profile")
	}
	if upd.Gender != nil && !validGenders[*upd.Gender] {
		return nil, apperr.Invalid("gender %q is not supported", *upd.Gender)
	}
	if upd.BloodType != nil && !validBloodTypes[strings.ToUpper(*upd.BloodType)] {
		return nil, apperr.Invalid("blood type %q is not valid", *upd.BloodType)
	}
	if upd.BloodType != nil {
		bt := strings.ToUpper(*upd.BloodType)
		upd.BloodType = &bt
	}
	if upd.DateOfBirth != nil && upd.DateOfBirth.After(s.now()) {
		return nil, apperr.Invalid("date of birth cannot be in the future")
	}

	p, err := s.profiles.UpdatePatient(ctx, caller.UserID, upd)
	if err != nil {
		return nil, apperr.Internal("update patient profile", err)
	}
	return p, nil
}

func (s *Service) UpdateDoctorProfile(ctx context.Context, caller *Caller, upd DoctorProfileUpdate) (*DoctorProfile, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("sign in to update your profile")
	}
	if !caller.IsDoctor() {
		return nil, apperr.Unauthorized("only doctors have a doctor profile")
	}
	if upd.YearsOfExperience != nil && (*upd.YearsOfExperience < 0 || *upd.YearsOfExperience > 80) {
		return nil, apperr.Invalid("years of experience must be between 0 and 80")
	}
	if upd.ConsultationFee != nil && *upd.ConsultationFee < 0 {
		return nil, apperr.Invalid("consultation fee cannot be negative")
	}

	d, err := s.profiles.UpdateDoctor(ctx, caller.UserID, upd)
	if err != nil {
		return nil, apperr.Internal("update doctor profile", err)
	}
	return d, nil
}

// Doctors lists the directory. Store failures yield an empty list.
func (s *Service) Doctors(ctx context.Context, f DirectoryFilter) []*DoctorListing {
	out, err := s.profiles.ListDoctors(ctx, f)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("list doctors")
		metrics.StoreErrors.WithLabelValues("identity").Inc()
		return []*DoctorListing{}
	}
	if out == nil {
		out = []*DoctorListing{}
	}
	return out
}

// Doctor returns a doctor profile by id.
func (s *Service) Doctor(ctx context.Context, id uuid.UUID) (*DoctorProfile, error) {
	d, err := s.profiles.GetDoctor(ctx, id)
	if err != nil {
		return nil, apperr.Internal("get doctor", err)
	}
	return d, nil
}
