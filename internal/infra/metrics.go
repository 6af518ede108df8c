package infra

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "chat_trader"

// Metrics holds the bot counters on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	commands      *prometheus.CounterVec
	parseFailures *prometheus.CounterVec
	orders        *prometheus.CounterVec
	breakers      *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_total",
			Help:      "Chat commands handled, by outcome.",
		}, []string{"outcome"}),
		parseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "parse_failures_total",
			Help:      "Trade commands rejected by the interpreter, by kind.",
		}, []string{"kind"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "orders_total",
			Help:      "Orders reported by the execution venue, by status.",
		}, []string{"status"}),
		breakers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "breaker_state",
			Help:      "Execution circuit breaker state (0 closed, 1 open, 2 half-open).",
		}, []string{"name"}),
	}
	m.registry.MustRegister(
		m.commands,
		m.parseFailures,
		m.orders,
		m.breakers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) CommandHandled(outcome string) {
	m.commands.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ParseFailed(kind string) {
	m.parseFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) OrderStatus(status string) {
	m.orders.WithLabelValues(status).Inc()
}

// BreakerChanged has the CircuitBreakerConfig.OnStateChange signature.
func (m *Metrics) BreakerChanged(name string, to State) {
	m.breakers.WithLabelValues(name).Set(float64(to))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Snapshot returns the application counters and gauges keyed as name{label="value"}.
// Runtime collectors are left out.
func (m *Metrics) Snapshot() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64)
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), metricsNamespace+"_") {
			continue
		}
		short := strings.TrimPrefix(mf.GetName(), metricsNamespace+"_")
		for _, metric := range mf.GetMetric() {
			var labels []string
			for _, lp := range metric.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			key := short
			if len(labels) > 0 {
				key += "{" + strings.Join(labels, ",") + "}"
			}
			if g := metric.GetGauge(); g != nil {
				out[key] = g.GetValue()
			} else {
				out[key] = metric.GetCounter().GetValue()
			}
		}
	}
	return out, nil
}

// Summary renders Snapshot as sorted lines for chat replies.
func (m *Metrics) Summary() string {
	snap, err := m.Snapshot()
	if err != nil {
		return "metrics unavailable: " + err.Error()
	}
	if len(snap) == 0 {
		return "no activity yet"
	}

	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %g", k, snap[k])
	}
	return b.String()
}
