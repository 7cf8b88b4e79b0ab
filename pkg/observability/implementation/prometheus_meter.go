package implementation

import (
	"sync"
	"time"

	"github.com/jt828/token-ledger/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
)

type prometheusMeter struct {
	registry *prometheus.Registry

	mu         sync.Mutex
	collectors map[string]prometheus.Collector
}

func NewPrometheusMeter() observability.Meter {
	return &prometheusMeter{
		registry:   prometheus.NewRegistry(),
		collectors: make(map[string]prometheus.Collector),
	}
}

func (m *prometheusMeter) Registry() *prometheus.Registry {
	return m.registry
}

func PromRegistry(m observability.Meter) *prometheus.Registry {
	if pm, ok := m.(*prometheusMeter); ok {
		return pm.Registry()
	}
	return nil
}

// register returns the collector already registered under name, so services
// sharing a meter can ask for the same metric.
func (m *prometheusMeter) register(name string, build func() prometheus.Collector) prometheus.Collector {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.collectors[name]; ok {
		return c
	}
	c := build()
	m.registry.MustRegister(c)
	m.collectors[name] = c
	return c
}

// -------------------- Counter --------------------

type promCounter struct {
	vec *prometheus.CounterVec
}

func (m *prometheusMeter) Counter(name string, opts ...observability.MetricOpt) observability.Counter {
	opt := firstOpt(opts)

	c := m.register(name, func() prometheus.Collector {
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        name,
				Help:        opt.Help,
				ConstLabels: toPromLabelsMap(opt.ConstLabels),
			},
			opt.LabelKeys,
		)
	})
	return &promCounter{vec: c.(*prometheus.CounterVec)}
}

func (c *promCounter) Inc(v float64, labels ...observability.Label) {
	if len(labels) == 0 {
		c.vec.WithLabelValues().Add(v)
		return
	}
	c.vec.With(toPromLabelsMap(labels)).Add(v)
}

// -------------------- Histogram --------------------

type promHistogram struct {
	vec *prometheus.HistogramVec
}

func (m *prometheusMeter) Histogram(name string, opts ...observability.MetricOpt) observability.Histogram {
	return &promHistogram{vec: m.histogramVec(name, firstOpt(opts))}
}

func (m *prometheusMeter) histogramVec(name string, opt observability.MetricOpt) *prometheus.HistogramVec {
	c := m.register(name, func() prometheus.Collector {
		return prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        name,
				Help:        opt.Help,
				Buckets:     opt.Buckets,
				ConstLabels: toPromLabelsMap(opt.ConstLabels),
			},
			opt.LabelKeys,
		)
	})
	return c.(*prometheus.HistogramVec)
}

func (h *promHistogram) Observe(v float64, labels ...observability.Label) {
	if len(labels) == 0 {
		h.vec.WithLabelValues().Observe(v)
		return
	}
	h.vec.With(toPromLabelsMap(labels)).Observe(v)
}

// -------------------- Gauge --------------------

type promGauge struct {
	vec *prometheus.GaugeVec
}

func (m *prometheusMeter) Gauge(name string, opts ...observability.MetricOpt) observability.Gauge {
	opt := firstOpt(opts)

	c := m.register(name, func() prometheus.Collector {
		return prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        name,
				Help:        opt.Help,
				ConstLabels: toPromLabelsMap(opt.ConstLabels),
			},
			opt.LabelKeys,
		)
	})
	return &promGauge{vec: c.(*prometheus.GaugeVec)}
}

func (g *promGauge) Set(v float64, labels ...observability.Label) {
	if len(labels) == 0 {
		g.vec.WithLabelValues().Set(v)
		return
	}
	g.vec.With(toPromLabelsMap(labels)).Set(v)
}

func (g *promGauge) Add(v float64, labels ...observability.Label) {
	if len(labels) == 0 {
		g.vec.WithLabelValues().Add(v)
		return
	}
	g.vec.With(toPromLabelsMap(labels)).Add(v)
}

// -------------------- Timer --------------------

type promTimer struct {
	histogram *prometheus.HistogramVec
}

func (m *prometheusMeter) Timer(name string, opts ...observability.MetricOpt) observability.Timer {
	return &promTimer{histogram: m.histogramVec(name, firstOpt(opts))}
}

func (t *promTimer) Start(labels ...observability.Label) func() {
	start := time.Now()
	return func() {
		t.histogram.With(toPromLabelsMap(labels)).Observe(time.Since(start).Seconds())
	}
}

// -------------------- Helpers --------------------

func firstOpt(opts []observability.MetricOpt) observability.MetricOpt {
	if len(opts) == 0 {
		return observability.MetricOpt{}
	}
	return opts[0]
}

func toPromLabelsMap(labels []observability.Label) prometheus.Labels {
	m := make(prometheus.Labels, len(labels))
	for _, l := range labels {
		m[l.Key] = l.Value
	}
	return m
}
