package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/telehealth/internal/config"
	"github.com/ehr/telehealth/internal/domain/consultation"
	"github.com/ehr/telehealth/internal/domain/earnings"
	"github.com/ehr/telehealth/internal/domain/identity"
	"github.com/ehr/telehealth/internal/domain/messaging"
	"github.com/ehr/telehealth/internal/domain/prescription"
	"github.com/ehr/telehealth/internal/domain/records"
	"github.com/ehr/telehealth/internal/domain/reminder"
	"github.com/ehr/telehealth/internal/platform/auth"
	"github.com/ehr/telehealth/internal/platform/db"
	"github.com/ehr/telehealth/internal/platform/metrics"
	"github.com/ehr/telehealth/internal/platform/middleware"
)

const version = "0.1.0"

type services struct {
	identity     *identity.Service
	consultation *consultation.Service
	messaging    *messaging.Service
	prescription *prescription.Service
	reminder     *reminder.Service
	records      *records.Service
	earnings     *earnings.Service
}

func newServices(pool *pgxpool.Pool) *services {
	identitySvc := identity.NewService(
		identity.NewUserRepoPG(pool),
		identity.NewProfileRepoPG(pool),
		db.NewTransactor(pool),
	)

	consultRepo := consultation.NewRepoPG(pool)
	consultSvc := consultation.NewService(consultRepo, identitySvc)

	rxRepo := prescription.NewRepoPG(pool)

	return &services{
		identity:     identitySvc,
		consultation: consultSvc,
		messaging:    messaging.NewService(messaging.NewRepoPG(pool), consultSvc),
		prescription: prescription.NewService(rxRepo, consultSvc),
		reminder:     reminder.NewService(reminder.NewRepoPG(pool), rxRepo),
		records:      records.NewService(records.NewSymptomRepoPG(pool), consultRepo, rxRepo, consultSvc),
		earnings:     earnings.NewService(earnings.NewRepoPG(pool)),
	}
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
	}
	if cfg.ResolvedAuthMode() == "development" {
		return auth.DevAuthMiddleware(jwtCfg)
	}
	return auth.JWTMiddleware(jwtCfg)
}

// auditActor exposes the resolved caller to the access log.
func auditActor(ctx context.Context) (string, string, string) {
	cu := identity.FromContext(ctx)
	if cu == nil {
		return "", "", ""
	}
	var patientID string
	if cu.PatientData != nil {
		patientID = cu.PatientData.ID.String()
	}
	return cu.ID.String(), string(cu.Role), patientID
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	if cfg.RateLimitRPS <= 0 {
		return middleware.DefaultRateLimitConfig()
	}
	return middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           middleware.DefaultIdleTTL,
	}
}

// newServer assembles the middleware chain and every route.
func newServer(cfg *config.Config, logger zerolog.Logger, pool db.Pool, svcs *services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Rate limiting and access logs key on the socket peer. Forwarding
	// headers are client-controlled unless a trusted proxy rewrites them.
	e.IPExtractor = echo.ExtractIPDirect()

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{
			echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader,
			auth.DevUserHeader, auth.DevRoleHeader, auth.DevEmailHeader,
		},
	}))
	e.Use(metrics.Middleware())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(pool, 2*time.Second))
	e.GET("/metrics", metrics.Handler())

	api := e.Group("/api/v1",
		middleware.RateLimit(rateLimitConfig(cfg)),
		middleware.RequestTimeout(cfg.RequestTimeout),
		authMiddleware(cfg),
		identity.Middleware(svcs.identity),
		middleware.Audit(logger, auditActor),
	)

	identity.NewHandler(svcs.identity).RegisterRoutes(api)
	consultation.NewHandler(svcs.consultation).RegisterRoutes(api)
	messaging.NewHandler(svcs.messaging).RegisterRoutes(api)
	prescription.NewHandler(svcs.prescription).RegisterRoutes(api)
	reminder.NewHandler(svcs.reminder).RegisterRoutes(api)
	records.NewHandler(svcs.records).RegisterRoutes(api)
	earnings.NewHandler(svcs.earnings).RegisterRoutes(api)

	return e
}
