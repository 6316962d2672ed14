package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Session lifecycle metrics
	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "permashift_sessions_started_total",
			Help: "Total background timeshift sessions started",
		},
	)

	SessionsStopped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permashift_sessions_stopped_total",
			Help: "Total sessions torn down, by reason",
		},
		[]string{"reason"},
	)

	TimersAdopted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "permashift_timers_adopted_total",
			Help: "Timers adopted from the scheduler during session start",
		},
	)

	SessionsPromoted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "permashift_sessions_promoted_total",
			Help: "Sessions relinquished because the viewer kept the recording",
		},
	)

	SessionActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "permashift_session_active",
			Help: "Whether a background session currently holds a timer (0 or 1)",
		},
	)

	// Anomaly metrics
	StaleTimerAnomalies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "permashift_stale_timer_anomalies_total",
			Help: "Session timer references found dangling at teardown or recovery",
		},
	)

	TeardownAnomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permashift_teardown_anomalies_total",
			Help: "Non-fatal problems during recording teardown",
		},
		[]string{"kind"},
	)

	// Inactivity monitor metrics
	InactivityPrompts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "permashift_inactivity_prompts_total",
			Help: "Confirmation prompts shown to an inactive viewer",
		},
	)

	// SVDRP metrics
	SVDRPCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permashift_svdrp_commands_total",
			Help: "SVDRP commands issued, by command and outcome",
		},
		[]string{"command", "status"},
	)

	// Event listener metrics
	EventsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permashift_events_received_total",
			Help: "Status events received from the VDR forwarder",
		},
		[]string{"type"},
	)

	// Journal metrics
	JournalEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permashift_journal_events_total",
			Help: "Session journal entries written, by kind",
		},
		[]string{"kind"},
	)

	JournalErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "permashift_journal_errors_total",
			Help: "Journal writes that failed and were dropped",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsStarted,
		SessionsStopped,
		TimersAdopted,
		SessionsPromoted,
		SessionActive,
		StaleTimerAnomalies,
		TeardownAnomalies,
		InactivityPrompts,
		SVDRPCommands,
		EventsReceived,
		JournalEvents,
		JournalErrors,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
