// Package metrics exposes Prometheus instrumentation for the trading core
// and the rolling REST latency window used for HFT compliance tracking.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	// REST pipeline metrics
	RESTRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_rest_requests_total",
			Help: "Total REST requests by outcome (success, failure, rate_limited)",
		},
		[]string{"venue", "endpoint", "outcome"},
	)

	RESTLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arb_rest_latency_seconds",
			Help:    "End-to-end REST request latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"venue", "endpoint"},
	)

	RESTRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_rest_retries_total",
			Help: "Total REST retry attempts by error kind",
		},
		[]string{"venue", "kind"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arb_breaker_open",
			Help: "Circuit breaker state per venue (1=open)",
		},
		[]string{"venue"},
	)

	// WebSocket metrics
	WSConnectionStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arb_ws_connection_status",
			Help: "WebSocket connection status (1=connected, 0=disconnected)",
		},
		[]string{"venue"},
	)

	WSReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_ws_reconnects_total",
			Help: "Total WebSocket reconnection attempts",
		},
		[]string{"venue"},
	)

	WSDroppedUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_ws_dropped_updates_total",
			Help: "Updates dropped because the inbound queue overflowed",
		},
		[]string{"venue"},
	)

	WSDecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_ws_decode_errors_total",
			Help: "Inbound WebSocket messages that failed to decode",
		},
		[]string{"venue"},
	)

	// Orchestrator metrics
	OrchestratorState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arb_orchestrator_state",
			Help: "Current orchestrator state (1 on the active state label)",
		},
		[]string{"state"},
	)

	Entries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_entries_total",
			Help: "Spot/futures entries executed",
		},
		[]string{"spot_venue"},
	)

	Switches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_spot_switches_total",
			Help: "Spot leg migrations executed",
		},
		[]string{"from", "to"},
	)

	Rebalances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_rebalances_total",
			Help: "Emergency rebalances by outcome",
		},
		[]string{"outcome"},
	)

	PositionDelta = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arb_position_delta",
			Help: "Current spot-minus-futures delta in base units",
		},
	)

	VolumeUSDT = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arb_volume_usdt_total",
			Help: "Cumulative traded volume in USDT",
		},
	)

	// Journal metrics
	JournalErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_journal_errors_total",
			Help: "Redis journal publish failures",
		},
		[]string{"stream"},
	)
)

// RecordRequest records a completed REST attempt.
func RecordRequest(venue, endpoint, outcome string, latency time.Duration) {
	RESTRequests.WithLabelValues(venue, endpoint, outcome).Inc()
	RESTLatency.WithLabelValues(venue, endpoint).Observe(latency.Seconds())
}

// RecordConnectionStatus records WS connection state.
func RecordConnectionStatus(venue string, connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	WSConnectionStatus.WithLabelValues(venue).Set(v)
}

// SetOrchestratorState flips the state gauge so exactly one label reads 1.
func SetOrchestratorState(active string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == active {
			v = 1.0
		}
		OrchestratorState.WithLabelValues(s).Set(v)
	}
}

// Server serves /metrics and /health.
type Server struct {
	addr   string
	server *http.Server
}

// NewServer creates the metrics HTTP server.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start starts the metrics server.
func (s *Server) Start() error {
	log.Info().Str("addr", s.addr).Msg("Starting metrics server")
	return s.server.ListenAndServe()
}

// Stop stops the metrics server.
func (s *Server) Stop() error {
	return s.server.Close()
}
