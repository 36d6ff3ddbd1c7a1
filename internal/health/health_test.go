package health

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/substrate-explorer/internal/logger"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Healthy(t *testing.T) {
	s := NewServer(0, "v1.2.3", logger.NewNop())
	s.RegisterCheck("node", func(context.Context) (bool, string) { return true, "connected" })
	h := s.Handler()

	rec := get(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var st Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, "ok", st.Status)
	assert.Equal(t, "v1.2.3", st.Version)
	assert.Equal(t, Check{Healthy: true, Message: "connected"}, st.Checks["node"])

	rec = get(t, h, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())
}

func TestServer_Degraded(t *testing.T) {
	s := NewServer(0, "dev", logger.NewNop())
	s.RegisterCheck("node", func(context.Context) (bool, string) { return false, "disconnected" })
	s.RegisterCheck("heads", func(context.Context) (bool, string) { return true, "" })
	h := s.Handler()

	rec := get(t, h, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var st Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, "degraded", st.Status)
	assert.False(t, st.Checks["node"].Healthy)
	assert.True(t, st.Checks["heads"].Healthy)

	rec = get(t, h, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// Liveness ignores checks.
	rec = get(t, h, "/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "alive", string(body))
}

func TestServer_StopBeforeStart(t *testing.T) {
	s := NewServer(0, "dev", logger.NewNop())
	assert.NoError(t, s.Stop(context.Background()))
}
