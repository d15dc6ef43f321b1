package messaging

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/telehealth/internal/domain/consultation"
	"github.com/ehr/telehealth/internal/domain/identity"
	"github.com/ehr/telehealth/internal/platform/apperr"
	"github.com/ehr/telehealth/internal/platform/metrics"
)

// Authorizer is satisfied by *consultation.Service.
type Authorizer interface {
	Authorize(ctx context.Context, id uuid.UUID, caller *identity.Caller) (*consultation.Access, error)
}

type Service struct {
	repo  Repository
	authz Authorizer
}

func NewService(repo Repository, authz Authorizer) *Service {
	return &Service{repo: repo, authz: authz}
}

// List returns a consultation's messages oldest first. Anonymous callers
// and store failures get an empty list; non-participants get an error.
func (s *Service) List(ctx context.Context, caller *identity.Caller, consultationID uuid.UUID) ([]*Message, error) {
	if caller == nil {
		return []*Message{}, nil
	}
	if _, err := s.authz.Authorize(ctx, consultationID, caller); err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			return s.degraded(ctx, err), nil
		}
		return nil, err
	}

	out, err := s.repo.ListByConsultation(ctx, consultationID)
	if err != nil {
		return s.degraded(ctx, err), nil
	}
	if out == nil {
		out = []*Message{}
	}
	return out, nil
}

func (s *Service) degraded(ctx context.Context, err error) []*Message {
	zerolog.Ctx(ctx).Error().Err(err).Msg("list messages")
	metrics.StoreErrors.WithLabelValues("messaging").Inc()
	return []*Message{}
}

func (s *Service) Send(ctx context.Context, caller *identity.Caller, consultationID uuid.UUID, in SendInput) (*Message, error) {
	access, err := s.authz.Authorize(ctx, consultationID, caller)
	if err != nil {
		return nil, err
	}
	if access.Consultation.Status == consultation.StatusCancelled {
		return nil, apperr.Conflict("consultation was cancelled")
	}

	if in.Type == "" {
		in.Type = TypeText
	}
	if !in.Type.Valid() {
		return nil, apperr.Invalid("message type %q is not supported", in.Type)
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" && in.AttachmentURL == "" {
		return nil, apperr.Invalid("message content is required")
	}
	if utf8.RuneCountInString(in.Content) > maxContentLength {
		return nil, apperr.Invalid("message exceeds %d characters", maxContentLength)
	}
	if (in.Type == TypeAttachment || in.Type == TypeImage) && in.AttachmentURL == "" {
		return nil, apperr.Invalid("%s messages need an attachmentUrl", in.Type)
	}

	if in.ReplyToID != nil {
		parent, err := s.repo.GetByID(ctx, *in.ReplyToID)
		if apperr.IsNotFound(err) || (err == nil && parent.ConsultationID != consultationID) {
			return nil, apperr.Invalid("reply target is not part of this consultation")
		}
		if err != nil {
			return nil, apperr.Internal("load reply target", err)
		}
	}

	m := &Message{
		ID:             uuid.New(),
		ConsultationID: consultationID,
		SenderID:       caller.UserID,
		Content:        in.Content,
		Type:           in.Type,
		Status:         StatusSent,
		ReplyToID:      in.ReplyToID,
	}
	if in.AttachmentURL != "" {
		m.AttachmentURL = &in.AttachmentURL
	}
	if in.AttachmentName != "" {
		m.AttachmentName = &in.AttachmentName
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, apperr.Internal("send message", err)
	}
	metrics.MessagesSent.WithLabelValues(string(access.As)).Inc()
	return m, nil
}

// MarkRead marks one message read after checking that the caller takes
// part in its consultation. Marking one's own message is a no-op.
func (s *Service) MarkRead(ctx context.Context, caller *identity.Caller, messageID uuid.UUID) (*Message, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("sign in to read messages")
	}
	m, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return nil, apperr.Internal("load message", err)
	}
	if _, err := s.authz.Authorize(ctx, m.ConsultationID, caller); err != nil {
		return nil, err
	}
	if m.SenderID == caller.UserID || m.Status == StatusRead {
		return m, nil
	}

	m, err = s.repo.MarkRead(ctx, messageID)
	if err != nil {
		return nil, apperr.Internal("mark message read", err)
	}
	return m, nil
}

func (s *Service) MarkAllRead(ctx context.Context, caller *identity.Caller, consultationID uuid.UUID) (int64, error) {
	if _, err := s.authz.Authorize(ctx, consultationID, caller); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkAllRead(ctx, consultationID, caller.UserID)
	if err != nil {
		return 0, apperr.Internal("mark messages read", err)
	}
	return n, nil
}

// UnreadCount counts messages from the other participant not yet read.
// Read path: failures count as zero.
func (s *Service) UnreadCount(ctx context.Context, caller *identity.Caller, consultationID uuid.UUID) (int, error) {
	if caller == nil {
		return 0, nil
	}
	if _, err := s.authz.Authorize(ctx, consultationID, caller); err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			return 0, nil
		}
		return 0, err
	}
	n, err := s.repo.UnreadCount(ctx, consultationID, caller.UserID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("count unread messages")
		metrics.StoreErrors.WithLabelValues("messaging").Inc()
		return 0, nil
	}
	return n, nil
}
