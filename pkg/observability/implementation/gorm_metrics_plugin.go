package implementation

import (
	"context"
	"time"

	"github.com/jt828/token-ledger/pkg/observability"
	"gorm.io/gorm"
)

type metricsContextKey struct{}

type GormMetricsPlugin struct {
	queryLatency observability.Histogram
	queryTotal   observability.Counter
	queryErrors  observability.Counter
}

func NewGormMetricsPlugin(meter observability.Meter) *GormMetricsPlugin {
	return &GormMetricsPlugin{
		queryLatency: meter.Histogram("ledger_db_query_duration_seconds", observability.MetricOpt{
			Help:      "Duration of ledger store queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			LabelKeys: []string{"operation", "table"},
		}),
		queryTotal: meter.Counter("ledger_db_query_total", observability.MetricOpt{
			Help:      "Total number of ledger store queries",
			LabelKeys: []string{"operation", "table"},
		}),
		queryErrors: meter.Counter("ledger_db_query_errors_total", observability.MetricOpt{
			Help:      "Total number of failed ledger store queries",
			LabelKeys: []string{"operation", "table"},
		}),
	}
}

func (p *GormMetricsPlugin) Name() string {
	return "ledger:metrics"
}

func (p *GormMetricsPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		op     string
		before func(name string, fn func(*gorm.DB)) error
		after  func(name string, fn func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		if err := h.before("ledger:before_"+h.op, p.before); err != nil {
			return err
		}
		if err := h.after("ledger:after_"+h.op, p.after(h.op)); err != nil {
			return err
		}
	}
	return nil
}

func (p *GormMetricsPlugin) before(db *gorm.DB) {
	db.Statement.Context = context.WithValue(db.Statement.Context, metricsContextKey{}, time.Now())
}

func (p *GormMetricsPlugin) after(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		table := db.Statement.Table
		if table == "" {
			table = "raw"
		}
		labels := []observability.Label{
			{Key: "operation", Value: operation},
			{Key: "table", Value: table},
		}

		p.queryTotal.Inc(1, labels...)

		if db.Error != nil {
			p.queryErrors.Inc(1, labels...)
		}

		startTime, ok := db.Statement.Context.Value(metricsContextKey{}).(time.Time)
		if ok {
			p.queryLatency.Observe(time.Since(startTime).Seconds(), labels...)
		}
	}
}
