package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsMatchedPattern(t *testing.T) {
	m := New("")

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/calculate", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})
	handler := m.Middleware(mux)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/calculate", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues(http.MethodPost, "POST /api/calculate", "422")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpRequestsInFlight))
}

func TestObserveCalculation(t *testing.T) {
	m := New("test")

	m.ObserveCalculation(OutcomeSuccess, 2*time.Millisecond, 249)
	m.ObserveCalculation(OutcomeSuccess, time.Millisecond, 0)
	m.ObserveCalculation(OutcomeRejected, time.Microsecond, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.calculationsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calculationsTotal.WithLabelValues(OutcomeRejected)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.calculationWaste))
}

func TestSetPackSizeCount(t *testing.T) {
	m := New("")
	m.SetPackSizeCount(5)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.packSizes))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New("")
	m.SetPackSizeCount(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "packcalc_pack_sizes 3"), "expected pack size gauge in output")
	assert.NotNil(t, m.Registry())
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.ObserveCalculation(OutcomeError, time.Second, 0)
	m.SetPackSizeCount(1)
	assert.Nil(t, m.Registry())

	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
