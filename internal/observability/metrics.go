package observability

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ftrdraft"

type moduleMetrics struct {
	sessionOpenTotal       *prometheus.CounterVec
	sessionReleaseTotal    prometheus.Counter
	sessionStartupDuration prometheus.Histogram
	activeSessions         prometheus.Gauge
	toolsDiscovered        prometheus.Gauge

	toolCallTotal    *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	agentTurnTotal    *prometheus.CounterVec
	agentTurnDuration *prometheus.HistogramVec
	tokensTotal       *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			sessionOpenTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "session_open_total",
					Help:      "Tool-provider session open attempts by outcome.",
				},
				[]string{"status"},
			),
			sessionReleaseTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "session_release_total",
					Help:      "Tool-provider sessions released.",
				},
			),
			sessionStartupDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "session_startup_duration_seconds",
					Help:      "Time from subprocess launch to completed handshake.",
					Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
				},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "active_sessions",
					Help:      "Currently open tool-provider sessions.",
				},
			),
			toolsDiscovered: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "tools_discovered",
					Help:      "Tools advertised by the provider at the last discovery.",
				},
			),
			toolCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "tool_call_total",
					Help:      "Tool invocations by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "tool_call_duration_seconds",
					Help:      "Tool invocation duration in seconds by tool.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			agentTurnTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "agent_turn_total",
					Help:      "Conversational turns by provider and status.",
				},
				[]string{"provider", "status"},
			),
			agentTurnDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "agent_turn_duration_seconds",
					Help:      "Conversational turn duration in seconds by provider.",
					Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
				},
				[]string{"provider"},
			),
			tokensTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "tokens_total",
					Help:      "Model tokens consumed by provider and direction.",
				},
				[]string{"provider", "direction"},
			),
		}

		prometheus.MustRegister(
			m.sessionOpenTotal,
			m.sessionReleaseTotal,
			m.sessionStartupDuration,
			m.activeSessions,
			m.toolsDiscovered,
			m.toolCallTotal,
			m.toolCallDuration,
			m.agentTurnTotal,
			m.agentTurnDuration,
			m.tokensTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler serves the default prometheus registry.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func RecordSessionOpen(duration time.Duration, success bool) {
	m := getMetrics()
	m.sessionOpenTotal.WithLabelValues(status(success)).Inc()
	if success {
		m.sessionStartupDuration.Observe(duration.Seconds())
		m.activeSessions.Inc()
	}
}

func RecordSessionRelease() {
	m := getMetrics()
	m.sessionReleaseTotal.Inc()
	m.activeSessions.Dec()
}

func SetToolsDiscovered(count int) {
	m := getMetrics()
	m.toolsDiscovered.Set(float64(count))
}

func RecordToolCall(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolCallTotal.WithLabelValues(tool, status(success)).Inc()
	m.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordAgentTurn(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.agentTurnTotal.WithLabelValues(provider, status(success)).Inc()
	m.agentTurnDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordTokens(provider string, input, output int) {
	m := getMetrics()
	m.tokensTotal.WithLabelValues(provider, "input").Add(float64(input))
	m.tokensTotal.WithLabelValues(provider, "output").Add(float64(output))
}
