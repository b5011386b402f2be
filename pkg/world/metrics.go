package world

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the automation engine.
// A nil *Metrics is valid and records nothing, so the engine can run
// without the metrics endpoint.
type Metrics struct {
	linesReceived     prometheus.Counter
	triggersEvaluated prometheus.Counter
	triggersMatched   prometheus.Counter
	aliasesMatched    prometheus.Counter
	timersFired       prometheus.Counter
	callbackErrors    prometheus.Counter
	pluginsLoaded     prometheus.Gauge
	connectedGauge    prometheus.Gauge
}

// NewMetrics creates and registers the engine metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		linesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gotinyclient_lines_received_total",
			Help: "Lines received from the MUD and evaluated against triggers.",
		}),
		triggersEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gotinyclient_triggers_evaluated_total",
			Help: "Trigger match attempts.",
		}),
		triggersMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gotinyclient_triggers_matched_total",
			Help: "Triggers that matched and fired.",
		}),
		aliasesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gotinyclient_aliases_matched_total",
			Help: "Aliases that matched typed commands.",
		}),
		timersFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gotinyclient_timers_fired_total",
			Help: "Timer firings.",
		}),
		callbackErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gotinyclient_script_errors_total",
			Help: "Script callback and send-to-script failures.",
		}),
		pluginsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gotinyclient_plugins_loaded",
			Help: "Currently loaded plugins.",
		}),
		connectedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gotinyclient_connected",
			Help: "1 while the session is connected.",
		}),
	}
	reg.MustRegister(
		m.linesReceived, m.triggersEvaluated, m.triggersMatched,
		m.aliasesMatched, m.timersFired, m.callbackErrors,
		m.pluginsLoaded, m.connectedGauge,
	)
	return m
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) lineReceived() {
	if m != nil {
		m.linesReceived.Inc()
	}
}

func (m *Metrics) triggerEvaluated() {
	if m != nil {
		m.triggersEvaluated.Inc()
	}
}

func (m *Metrics) triggerMatched() {
	if m != nil {
		m.triggersMatched.Inc()
	}
}

func (m *Metrics) aliasMatched() {
	if m != nil {
		m.aliasesMatched.Inc()
	}
}

func (m *Metrics) timerFired() {
	if m != nil {
		m.timersFired.Inc()
	}
}

func (m *Metrics) callbackError() {
	if m != nil {
		m.callbackErrors.Inc()
	}
}

func (m *Metrics) pluginLoaded(n int) {
	if m != nil {
		m.pluginsLoaded.Set(float64(n))
	}
}

func (m *Metrics) connected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connectedGauge.Set(1)
	} else {
		m.connectedGauge.Set(0)
	}
}
