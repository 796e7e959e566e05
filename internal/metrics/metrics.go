// Package metrics is the gateway's ambient ops surface: Prometheus
// counters/gauges for bridge throughput and BLOB policy decisions, plus
// /metrics and /healthz handlers.
//
// Grounded on ClusterCockpit-cc-backend's cmd/cc-backend/main.go HTTP
// server setup (gorilla/mux router, gorilla/handlers middleware chain,
// net.Listen + http.Server) and its go.mod's prometheus/client_golang
// dependency, which that repo carries but never wires into its own
// metrics endpoint - here it serves the purpose it names.
package metrics

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric this gateway exposes. Components accept a
// *Registry rather than touching the global prometheus registerer
// directly, so tests can construct an isolated one.
type Registry struct {
	registry *prometheus.Registry

	FramesIngested      *prometheus.CounterVec
	FramesForwarded     *prometheus.CounterVec
	FramesDropped       *prometheus.CounterVec
	BLOBPolicyDecisions *prometheus.CounterVec
	DequeDepth          *prometheus.GaugeVec
}

// NewRegistry builds a Registry with every metric registered against a
// fresh prometheus.Registry (not the global default, so multiple gateway
// instances in one process - as in tests - don't collide).
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,
		FramesIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indigateway",
			Name:      "frames_ingested_total",
			Help:      "Frames received from a bridge side, by side name.",
		}, []string{"side"}),
		FramesForwarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indigateway",
			Name:      "frames_forwarded_total",
			Help:      "Frames forwarded to a bridge side, by side name.",
		}, []string{"side"}),
		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indigateway",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped from a bridge side's deque because it was full, by side name.",
		}, []string{"side"}),
		BLOBPolicyDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indigateway",
			Name:      "blob_policy_decisions_total",
			Help:      "BLOB forward/suppress decisions, by source and outcome.",
		}, []string{"device", "outcome"}),
		DequeDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "indigateway",
			Name:      "deque_depth",
			Help:      "Current number of frames queued in a bridge side's deque.",
		}, []string{"side"}),
	}
}

// Handler returns the mux.Router serving /metrics (Prometheus exposition
// format) and /healthz (plain 200 OK liveness probe), wrapped in the
// gorilla/handlers middleware chain taken from cc-backend.
func (r *Registry) Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	router.Use(handlers.CompressHandler)
	router.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))

	return router
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Serve starts an http.Server bound to addr using Handler, blocking until
// the listener fails or is closed. Grounded on cc-backend's
// net.Listen + http.Server{ReadTimeout, WriteTimeout} pattern in
// cmd/cc-backend/main.go.
func (r *Registry) Serve(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      r.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}
