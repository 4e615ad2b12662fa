package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cognicore/wikistat/pkg/wikistat/internalerr"
)

const (
	// MetricsNamespace is the namespace for all wikistat metrics.
	MetricsNamespace = "wikistat"

	// MetricsSubsystem is the subsystem for pipeline metrics.
	MetricsSubsystem = "pipeline"
)

// Metrics holds the Prometheus metrics for one coordinator. A nil *Metrics
// records nothing.
type Metrics struct {
	PagesRead        prometheus.Counter
	PagesWritten     prometheus.Counter
	PageBytes        prometheus.Counter
	Issues           *prometheus.CounterVec
	QueueDepth       prometheus.Gauge
	AssembleDuration prometheus.Histogram
}

// NewMetrics creates and registers the pipeline metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		PagesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "pages_read_total",
			Help:      "Complete page records extracted from the dump.",
		}),
		PagesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "pages_written_total",
			Help:      "Page records accepted by the sink.",
		}),
		PageBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "page_bytes_total",
			Help:      "Bytes of raw page records extracted.",
		}),
		Issues: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "issues_total",
			Help:      "Page-level issues by kind.",
		}, []string{"kind"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "work_queue_depth",
			Help:      "Raw pages waiting for a parser worker.",
		}),
		AssembleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "assemble_duration_seconds",
			Help:      "Time to turn one raw page into a record.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
}

func (m *Metrics) pageRead(size int) {
	if m == nil {
		return
	}
	m.PagesRead.Inc()
	m.PageBytes.Add(float64(size))
}

func (m *Metrics) pageWritten() {
	if m == nil {
		return
	}
	m.PagesWritten.Inc()
}

func (m *Metrics) issue(kind internalerr.Kind) {
	if m == nil {
		return
	}
	m.Issues.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) queueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) assembled(seconds float64) {
	if m == nil {
		return
	}
	m.AssembleDuration.Observe(seconds)
}
