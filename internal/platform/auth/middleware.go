package auth

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Dev identity headers honoured by DevAuthMiddleware.
const (
	DevUserHeader  = "X-Dev-User"
	DevRoleHeader  = "X-Dev-Role"
	DevEmailHeader = "X-Dev-Email"
)

// Claims are the identity provider's session token claims.
type Claims struct {
	jwt.RegisteredClaims
	Email          string         `json:"email"`
	GivenName      string         `json:"given_name"`
	FamilyName     string         `json:"family_name"`
	Name           string         `json:"name"`
	PhoneNumber    string         `json:"phone_number"`
	Picture        string         `json:"picture"`
	Role           string         `json:"role"`
	PublicMetadata map[string]any `json:"public_metadata"`
}

// Session maps the claims onto a Session. Missing given/family names are
// derived from the display name; the role hint prefers the top-level role
// claim over public_metadata.role.
func (c *Claims) Session() *Session {
	s := &Session{
		Subject:   c.Subject,
		Email:     c.Email,
		FirstName: c.GivenName,
		LastName:  c.FamilyName,
		Phone:     c.PhoneNumber,
		AvatarURL: c.Picture,
		RoleHint:  c.Role,
	}
	if s.FirstName == "" && s.LastName == "" {
		s.FirstName, s.LastName = splitName(c.Name)
	}
	if s.RoleHint == "" {
		if r, ok := c.PublicMetadata["role"].(string); ok {
			s.RoleHint = r
		}
	}
	return s
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey enables HS256 verification for local setups and tests.
	SigningKey []byte
	Skipper    middleware.Skipper
}

// tokenParser validates bearer tokens against either a static HMAC key or
// the provider's JWKS.
type tokenParser struct {
	opts    []jwt.ParserOption
	keyFunc jwt.Keyfunc
}

func newTokenParser(cfg JWTConfig) *tokenParser {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "HS256"}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	p := &tokenParser{opts: opts}
	if len(cfg.SigningKey) > 0 {
		key := cfg.SigningKey
		p.keyFunc = func(*jwt.Token) (interface{}, error) { return key, nil }
		return p
	}

	jwksURL := cfg.JWKSURL
	if jwksURL == "" && cfg.Issuer != "" {
		if provider, err := NewOIDCProvider(cfg.Issuer); err == nil {
			jwksURL = provider.JWKSURI
		}
	}
	p.keyFunc = jwksKeyFunc(NewJWKSCache(jwksURL, defaultJWKSCacheTTL))
	return p
}

func (p *tokenParser) parse(header string) (*Claims, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, p.keyFunc, p.opts...)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	return claims, nil
}

// JWTMiddleware verifies the bearer token when one is sent and stores the
// resulting Session on the request context. Requests without an
// Authorization header pass through anonymously; handlers decide whether
// anonymity is acceptable.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	parser := newTokenParser(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return next(c)
			}

			claims, err := parser.parse(header)
			if err != nil {
				return err
			}

			ctx := WithSession(c.Request().Context(), claims.Session())
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// DevAuthMiddleware lets local clients pick an identity with X-Dev-User and
// X-Dev-Role. A bearer token, when present, is still validated and wins.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	jwtMW := JWTMiddleware(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withToken := jwtMW(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) != "" {
				return withToken(c)
			}

			subject := c.Request().Header.Get(DevUserHeader)
			if subject == "" {
				return next(c)
			}

			s := &Session{
				Subject:   subject,
				Email:     c.Request().Header.Get(DevEmailHeader),
				FirstName: "Dev",
				LastName:  subject,
				RoleHint:  c.Request().Header.Get(DevRoleHeader),
			}
			if s.Email == "" {
				s.Email = subject + "@dev.local"
			}

			ctx := WithSession(c.Request().Context(), s)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
