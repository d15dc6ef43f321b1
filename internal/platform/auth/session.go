package auth

import (
	"context"
	"strings"
)

type contextKey string

const sessionKey contextKey = "auth_session"

// Session is the external identity asserted by the identity provider. It
// never carries application roles, only an optional RoleHint taken from
// provider metadata at sign-up.
type Session struct {
	Subject   string `json:"subject"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	RoleHint  string `json:"role_hint,omitempty"`
}

// WithSession stores s on ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session for the request, or nil when the
// caller is anonymous.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// splitName turns "Ada King Lovelace" into ("Ada", "King Lovelace").
func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	first, last, _ := strings.Cut(full, " ")
	return first, strings.TrimSpace(last)
}
