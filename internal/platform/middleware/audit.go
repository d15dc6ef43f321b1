package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const auditPrefix = "/api/v1/"

var nestedResources = map[string]bool{"messages": true, "records": true}

// AuditEntry records one access to patient data: who, what, and the outcome.
type AuditEntry struct {
	UserID       string
	Role         string
	ResourceType string
	ResourceID   string
	PatientID    string
	Action       string // read, create, update, delete
	Method       string
	Path         string
	RemoteIP     string
	UserAgent    string
	RequestID    string
	StatusCode   int
	Timestamp    time.Time
}

// AuditRecorder persists audit entries in addition to the log line.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

type AuditRecorderFunc func(ctx context.Context, entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

// Actor reports the resolved caller of a request. patientID is the caller's
// own patient profile, if any. Anonymous requests return empty strings.
type Actor func(ctx context.Context) (userID, role, patientID string)

// Audit logs every API access after the handler has run. It must sit after
// the middleware that resolves the caller so actor sees the identity.
func Audit(logger zerolog.Logger, actor Actor, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !strings.HasPrefix(path, auditPrefix) {
				return next(c)
			}

			err := next(c)

			resource, id := auditResource(path)
			entry := AuditEntry{
				ResourceType: resource,
				ResourceID:   id,
				PatientID:    auditPatientID(c, path),
				Action:       actionFor(req.Method),
				Method:       req.Method,
				Path:         path,
				RemoteIP:     c.RealIP(),
				UserAgent:    req.UserAgent(),
				StatusCode:   responseStatus(c, err),
				Timestamp:    time.Now().UTC(),
			}
			entry.RequestID, _ = c.Get("request_id").(string)
			if actor != nil {
				var own string
				entry.UserID, entry.Role, own = actor(req.Context())
				// Patient routes only ever serve the caller's own data.
				if entry.PatientID == "" {
					entry.PatientID = own
				}
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(req.Context(), entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			evt := logger.Info()
			if entry.StatusCode == http.StatusUnauthorized || entry.StatusCode == http.StatusForbidden {
				evt = logger.Warn()
			}
			evt.
				Str("type", "phi_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("resource_type", entry.ResourceType).
				Str("resource_id", entry.ResourceID).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.RemoteIP).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return err
		}
	}
}

// responseStatus is the status the client will see. Handler errors are
// written later by echo's error handler, so the code comes from the error.
func responseStatus(c echo.Context, err error) int {
	if c.Response().Committed || err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func actionFor(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// auditResource maps an API path to its resource type and id:
//
//	/api/v1/prescriptions/<id>             -> prescriptions, <id>
//	/api/v1/consultations/<id>/messages    -> messages, ""
//	/api/v1/doctor/patients/<id>/records   -> records, ""
//	/api/v1/me/patient-profile             -> profile, ""
func auditResource(path string) (string, string) {
	segs := strings.Split(strings.Trim(strings.TrimPrefix(path, auditPrefix), "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return "unknown", ""
	}
	if segs[0] == "me" {
		return "profile", ""
	}
	if segs[0] == "doctor" {
		segs = segs[1:]
		if len(segs) == 0 {
			return "unknown", ""
		}
	}

	resource, id := segs[0], ""
	if len(segs) > 1 && isUUID(segs[1]) {
		id = segs[1]
	}
	// A nested collection names the resource actually returned.
	if len(segs) > 2 && nestedResources[segs[2]] {
		return segs[2], ""
	}
	return resource, id
}

func auditPatientID(c echo.Context, path string) string {
	segs := strings.Split(strings.Trim(strings.TrimPrefix(path, auditPrefix), "/"), "/")
	if len(segs) >= 3 && segs[0] == "doctor" && segs[1] == "patients" && isUUID(segs[2]) {
		return segs[2]
	}
	if p := c.QueryParam("patient"); isUUID(p) {
		return p
	}
	return ""
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
