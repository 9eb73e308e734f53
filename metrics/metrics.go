// Package metrics exposes session activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	auth "github.com/goliatone/go-console-auth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the console auth metrics.
type Metrics struct {
	// Activity events by type
	Events *prometheus.CounterVec

	// Session state transitions and the current state
	Transitions   *prometheus.CounterVec
	SessionState  *prometheus.GaugeVec
	Authenticated prometheus.Gauge

	// Login outcomes by error code
	LoginFailures *prometheus.CounterVec

	// Dual write failures that left identity and profile out of sync
	ConsistencyFailures prometheus.Counter

	gatherer prometheus.Gatherer
}

var _ auth.ActivitySink = (*Metrics)(nil)

// NewMetrics registers the metrics with registry. A nil registry gets a
// fresh one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	m := &Metrics{
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_auth_events_total",
				Help: "Total number of session activity events",
			},
			[]string{"event"},
		),
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_auth_transitions_total",
				Help: "Total number of session state transitions",
			},
			[]string{"from", "to", "reason"},
		),
		SessionState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "console_auth_session_state",
				Help: "Current session state, 1 for the active state",
			},
			[]string{"state"},
		),
		Authenticated: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "console_auth_authenticated",
				Help: "Whether a session is authenticated",
			},
		),
		LoginFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_auth_login_failures_total",
				Help: "Total number of failed sign in attempts",
			},
			[]string{"code"},
		),
		ConsistencyFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "console_auth_consistency_failures_total",
				Help: "Total number of identity and profile writes left out of sync",
			},
		),
		gatherer: registry,
	}

	m.setState(auth.StateInitializing)
	return m
}

// Record implements auth.ActivitySink.
func (m *Metrics) Record(_ context.Context, event auth.ActivityEvent) error {
	m.Events.WithLabelValues(string(event.EventType)).Inc()

	switch event.EventType {
	case auth.ActivityEventSessionStateChanged:
		reason, _ := event.Metadata["reason"].(string)
		m.Transitions.WithLabelValues(event.FromState.String(), event.ToState.String(), reason).Inc()
		m.setState(event.ToState)
	case auth.ActivityEventLoginFailure:
		code, _ := event.Metadata["code"].(string)
		if code == "" {
			code = "unknown"
		}
		m.LoginFailures.WithLabelValues(code).Inc()
	case auth.ActivityEventConsistencyFailure:
		m.ConsistencyFailures.Inc()
	}
	return nil
}

func (m *Metrics) setState(current auth.AuthState) {
	for _, state := range []auth.AuthState{
		auth.StateInitializing,
		auth.StateUnauthenticated,
		auth.StateResolving,
		auth.StateAuthenticated,
	} {
		v := 0.0
		if state == current {
			v = 1
		}
		m.SessionState.WithLabelValues(state.String()).Set(v)
	}
	if current == auth.StateAuthenticated {
		m.Authenticated.Set(1)
	} else {
		m.Authenticated.Set(0)
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
