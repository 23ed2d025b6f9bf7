package observability

import (
	"context"

	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ticketflow"

// Metrics holds the engine collectors.
type Metrics struct {
	NodeVisits     *prometheus.CounterVec
	NodeDuration   *prometheus.HistogramVec
	Actions        *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	Checkpoints    prometheus.Counter
	Terminations   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of node executions.",
		}, []string{"node"}),
		NodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of node executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Actions executed, by flow, action and status.",
		}, []string{"flow", "action", "status"}),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Duration of Action Runner calls.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"action"}),
		Checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Snapshots persisted after a node execution.",
		}),
		Terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminations_total",
			Help:      "Instances that reached END, by flow and outcome.",
		}, []string{"flow", "outcome"}),
	}
	reg.MustRegister(m.NodeVisits, m.NodeDuration, m.Actions, m.ActionDuration, m.Checkpoints, m.Terminations)
	return m
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.Node).Inc()
			m.NodeDuration.WithLabelValues(e.Node).Observe(e.Duration.Seconds())
		},
		OnAction: func(ctx context.Context, e *domain.ActionEvent) {
			m.Actions.WithLabelValues(e.Flow, e.Action, string(e.Result.Status)).Inc()
			m.ActionDuration.WithLabelValues(e.Action).Observe(e.Duration.Seconds())
		},
		OnCheckpoint: func(ctx context.Context, e *domain.CheckpointEvent) {
			m.Checkpoints.Inc()
		},
		OnTerminal: func(ctx context.Context, e *domain.TerminalEvent) {
			outcome := "resolved"
			if e.Escalated {
				outcome = "escalated"
			}
			flow := e.Flow
			if flow == "" {
				flow = "none"
			}
			m.Terminations.WithLabelValues(flow, outcome).Inc()
		},
	}
}
