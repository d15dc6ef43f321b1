package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type downPool struct{}

func (downPool) Ping(context.Context) error { return errors.New("dial tcp 10.0.0.5:5432: refused") }
func (downPool) Stat() *pgxpool.Stat        { return nil }

func TestHealthHandler_Unhealthy(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/db", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, HealthHandler(downPool{}, time.Second)(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.Nil(t, body.Pool)
}

func TestPoolStats_JSON(t *testing.T) {
	stats := PoolStats{TotalConns: 1, MaxConns: 10, AcquireCount: 50, AcquireDuration: "250ms"}
	raw, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"total_conns":1,"idle_conns":0,"acquired_conns":0,"max_conns":10,"acquire_count":50,"acquire_duration":"250ms"}`,
		string(raw))
}
