package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSimulation(t *testing.T) {
	ok := testutil.ToFloat64(simulationsTotal.WithLabelValues("ok"))
	failed := testutil.ToFloat64(simulationsTotal.WithLabelValues("error"))

	ObserveSimulation(20*time.Millisecond, nil)
	ObserveSimulation(0, errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(simulationsTotal.WithLabelValues("ok")))
	assert.Equal(t, failed+1, testutil.ToFloat64(simulationsTotal.WithLabelValues("error")))
}

func TestObserveProviderRequest(t *testing.T) {
	before := testutil.ToFloat64(providerRequestsTotal.WithLabelValues("vci", "error"))
	ObserveProviderRequest("vci", errors.New("status 503"))
	ObserveProviderRequest("vci", nil)

	assert.Equal(t, before+1, testutil.ToFloat64(providerRequestsTotal.WithLabelValues("vci", "error")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(providerRequestsTotal.WithLabelValues("vci", "ok")), 1.0)
}

func TestHandler(t *testing.T) {
	ObserveSimulation(time.Millisecond, nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "findash_simulations_total")
	assert.Contains(t, rec.Body.String(), "findash_simulation_duration_seconds_bucket")
}
