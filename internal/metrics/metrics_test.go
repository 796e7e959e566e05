package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Healthz_ReturnsOK(t *testing.T) {
	reg := NewRegistry()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rw := httptest.NewRecorder()

	reg.Handler().ServeHTTP(rw, req)

	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, "ok", rw.Body.String())
}

func Test_Metrics_ExposesRegisteredCounters(t *testing.T) {
	reg := NewRegistry()
	reg.FramesIngested.WithLabelValues("indi").Add(3)
	reg.FramesDropped.WithLabelValues("redis").Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rw := httptest.NewRecorder()

	reg.Handler().ServeHTTP(rw, req)

	require.Equal(t, http.StatusOK, rw.Code)
	body := rw.Body.String()
	assert.Contains(t, body, "indigateway_frames_ingested_total")
	assert.Contains(t, body, `side="indi"`)
	assert.Contains(t, body, "indigateway_frames_dropped_total")
}
