// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for CommandsTotal.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomePanic    = "panic"
)

var (
	once sync.Once

	// Counters
	MessagesReceived prometheus.Counter
	CommandsTotal    *prometheus.CounterVec // labels: command, outcome
	MembersSelected  *prometheus.CounterVec // labels: mode
	TokenRefreshes   *prometheus.CounterVec // labels: provider, result

	// Histograms (seconds)
	CommandDuration *prometheus.HistogramVec // labels: command
	StoreDuration   *prometheus.HistogramVec // labels: op

	// Gauges
	ChannelsJoined prometheus.Gauge
	DBOpenConns    prometheus.Gauge
	DBInUseConns   prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
			Name: "queuebot_chat_messages_total",
			Help: "Chat messages received from joined channels",
		})
		CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "queuebot_commands_total",
			Help: "Commands handled by keyword and outcome",
		}, []string{"command", "outcome"})
		MembersSelected = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "queuebot_members_selected_total",
			Help: "Queue members removed by !pick and !rand",
		}, []string{"mode"})
		TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "queuebot_token_refreshes_total",
			Help: "OAuth token refresh attempts by provider and result",
		}, []string{"provider", "result"})
		CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "queuebot_command_duration_seconds",
			Help:    "Time from command dispatch to reply",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"command"})
		StoreDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "queuebot_store_duration_seconds",
			Help:    "Queue store call latency by operation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"op"})
		ChannelsJoined = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "queuebot_channels_joined",
			Help: "Channels the bot currently sits in",
		})
		DBOpenConns = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "queuebot_db_open_connections",
			Help: "Open database connections",
		})
		DBInUseConns = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "queuebot_db_in_use_connections",
			Help: "Database connections currently in use",
		})
	})
}

// ObserveCommand records one dispatched command.
func ObserveCommand(command, outcome string, d time.Duration) {
	if CommandsTotal != nil {
		CommandsTotal.WithLabelValues(command, outcome).Inc()
	}
	if CommandDuration != nil {
		CommandDuration.WithLabelValues(command).Observe(d.Seconds())
	}
}

// ObserveTokenRefresh counts one refresh attempt; result is "ok" or "error".
func ObserveTokenRefresh(provider, result string) {
	if TokenRefreshes != nil {
		TokenRefreshes.WithLabelValues(provider, result).Inc()
	}
}

// SetChannelsJoined records how many channels the bot is in.
func SetChannelsJoined(n int) {
	if ChannelsJoined != nil {
		ChannelsJoined.Set(float64(n))
	}
}

// UpdateDatabasePoolMetrics records sql.DBStats connection counts.
func UpdateDatabasePoolMetrics(open, inUse int) {
	if DBOpenConns != nil {
		DBOpenConns.Set(float64(open))
	}
	if DBInUseConns != nil {
		DBInUseConns.Set(float64(inUse))
	}
}

// StoreObserver returns the latency observer for store operation op, or nil
// before Init.
func StoreObserver(op string) prometheus.Observer {
	if StoreDuration == nil {
		return nil
	}
	return StoreDuration.WithLabelValues(op)
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context carrying the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
