package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var simulationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "findash_simulations_total",
		Help: "Monte Carlo simulation runs by outcome",
	}, []string{"status"})

var simulationDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "findash_simulation_duration_seconds",
		Help:    "Wall time of a Monte Carlo simulation run",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})

var providerRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "findash_provider_requests_total",
		Help: "Market data provider requests by provider and outcome",
	}, []string{"provider", "status"})

func init() {
	prometheus.MustRegister(
		simulationsTotal,
		simulationDuration,
		providerRequestsTotal,
	)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveSimulation records one simulation run
func ObserveSimulation(elapsed time.Duration, err error) {
	simulationsTotal.WithLabelValues(status(err)).Inc()
	if err == nil {
		simulationDuration.Observe(elapsed.Seconds())
	}
}

// ObserveProviderRequest records one upstream data request
func ObserveProviderRequest(provider string, err error) {
	providerRequestsTotal.WithLabelValues(provider, status(err)).Inc()
}

// Handler serves the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}
