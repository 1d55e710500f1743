package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 HealthHandler 测试
// =============================================================================

func TestHealthHandler_HandleHealth(t *testing.T) {
	handler := NewHealthHandler("0.3.0", zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthHandler_HandleReady_AllPass(t *testing.T) {
	handler := NewHealthHandler("0.3.0", zap.NewNop())
	handler.RegisterCheck(NewCheckFunc("sessions", func(context.Context) error { return nil }))

	w := httptest.NewRecorder()
	handler.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "0.3.0", status.Version)
	require.NotNil(t, status.Timestamp)
	assert.Equal(t, "pass", status.Checks["sessions"].Status)
}

func TestHealthHandler_HandleReady_Failure(t *testing.T) {
	handler := NewHealthHandler("", zap.NewNop())
	handler.RegisterCheck(NewCheckFunc("ok", func(context.Context) error { return nil }))
	handler.RegisterCheck(NewCheckFunc("server", func(context.Context) error { return errors.New("shutting down") }))

	w := httptest.NewRecorder()
	handler.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "fail", status.Checks["server"].Status)
	assert.Equal(t, "shutting down", status.Checks["server"].Message)
	assert.Equal(t, "pass", status.Checks["ok"].Status)
}
