package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_PrometheusScrape(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{
		ServiceName: "explorer-test",
		Exporters:   []Exporter{PrometheusExporter},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	counter, err := p.mp.Meter("test").Int64Counter("explorer_test_heads")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "explorer_test_heads_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestProvider_NoPrometheus(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{ServiceName: "explorer-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProvider_UnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Exporters: []Exporter{"statsd"}})
	assert.ErrorContains(t, err, "unknown metrics exporter")
}
