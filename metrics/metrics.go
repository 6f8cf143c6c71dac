// Package metrics exposes engine activity to Prometheus. A nil *Metrics is
// valid and records nothing, so callers never need to guard their calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scalper"

type Metrics struct {
	reg *prometheus.Registry

	CyclesTotal     *prometheus.CounterVec // labels: result=ok|skipped|busy|error
	CycleDuration   prometheus.Histogram
	OrdersTotal     *prometheus.CounterVec // labels: side, result=filled|failed
	ClosesTotal     *prometheus.CounterVec // labels: reason
	InstrumentErrs  *prometheus.CounterVec // labels: instrument
	OpenPositions   *prometheus.GaugeVec   // labels: instrument
	RealizedProfit  prometheus.Gauge
	QuoteBalance    prometheus.Gauge
	PersistFailures prometheus.Counter
	Liquidations    prometheus.Counter
}

// New builds the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Polling cycles by outcome",
		}, []string{"result"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a full polling cycle",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Market orders submitted by side and result",
		}, []string{"side", "result"}),
		ClosesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_closes_total",
			Help:      "Closed positions by exit reason",
		}, []string{"reason"}),
		InstrumentErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instrument_errors_total",
			Help:      "Instrument cycles aborted by an error",
		}, []string{"instrument"}),
		OpenPositions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Open positions per instrument",
		}, []string{"instrument"}),
		RealizedProfit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realized_profit",
			Help:      "Global realized profit in quote currency",
		}),
		QuoteBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quote_balance_free",
			Help:      "Last observed free quote balance",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Ledger saves that failed",
		}),
		Liquidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liquidations_total",
			Help:      "Emergency liquidations run",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CyclesTotal,
		m.CycleDuration,
		m.OrdersTotal,
		m.ClosesTotal,
		m.InstrumentErrs,
		m.OpenPositions,
		m.RealizedProfit,
		m.QuoteBalance,
		m.PersistFailures,
		m.Liquidations,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Cycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(d.Seconds())
}

func (m *Metrics) Order(side string, err error) {
	if m == nil {
		return
	}
	result := "filled"
	if err != nil {
		result = "failed"
	}
	m.OrdersTotal.WithLabelValues(side, result).Inc()
}

func (m *Metrics) Closed(reason string) {
	if m == nil {
		return
	}
	m.ClosesTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) InstrumentError(instrument string) {
	if m == nil {
		return
	}
	m.InstrumentErrs.WithLabelValues(instrument).Inc()
}

func (m *Metrics) Positions(instrument string, open int, realized float64) {
	if m == nil {
		return
	}
	m.OpenPositions.WithLabelValues(instrument).Set(float64(open))
	m.RealizedProfit.Set(realized)
}

func (m *Metrics) Balance(free float64) {
	if m == nil {
		return
	}
	m.QuoteBalance.Set(free)
}

func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

func (m *Metrics) Liquidated() {
	if m == nil {
		return
	}
	m.Liquidations.Inc()
}
