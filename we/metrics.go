package we

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	commands *prometheus.CounterVec
	retries  *prometheus.CounterVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "we",
				Name:      "commands_total",
				Help:      "Commands executed, by command name and outcome.",
			},
			[]string{"command", "outcome"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "we",
				Name:      "command_retries_total",
				Help:      "Commands re-run after a revision conflict.",
			},
			[]string{"command"},
		),
	}

	registerer.MustRegister(metrics.commands, metrics.retries)

	return metrics
}

func outcomeOf(err error) string {
	var rejected *ModuleError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &rejected):
		return "rejected"
	case errors.Is(err, BadOrigin):
		return "unauthorized"
	case errors.Is(err, RevisionConflict):
		return "conflict"
	default:
		return "error"
	}
}

func (m *Metrics) observe(command CommandName, err error) {
	if m == nil {
		return
	}

	m.commands.WithLabelValues(string(command), outcomeOf(err)).Inc()
}

func (m *Metrics) retried(command CommandName) {
	if m == nil {
		return
	}

	m.retries.WithLabelValues(string(command)).Inc()
}
