package observability

// Meter hands out named instruments. Asking twice for the same name returns
// the instrument registered first.
type Meter interface {
	Counter(name string, opts ...MetricOpt) Counter
	Histogram(name string, opts ...MetricOpt) Histogram
	Gauge(name string, opts ...MetricOpt) Gauge
	Timer(name string, opts ...MetricOpt) Timer
}

type Counter interface {
	Inc(v float64, labels ...Label)
}

type Histogram interface {
	Observe(v float64, labels ...Label)
}

type Gauge interface {
	Set(v float64, labels ...Label)
	Add(v float64, labels ...Label)
}

// Timer records elapsed seconds into a histogram. Start returns the func that
// stops the clock.
type Timer interface {
	Start(labels ...Label) func()
}

type Label struct {
	Key   string
	Value string
}

// MetricOpt describes an instrument. LabelKeys must list every label passed
// at record time.
type MetricOpt struct {
	Help        string
	Buckets     []float64
	ConstLabels []Label
	LabelKeys   []string
}
