package dicom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReaderMetrics counts what Readers parse. One instance can be shared by any
// number of Readers.
type ReaderMetrics struct {
	ReadsTotal    *prometheus.CounterVec
	ReadDuration  prometheus.Histogram
	Elements      prometheus.Counter
	Sequences     prometheus.Counter
	Items         prometheus.Counter
	Fragments     prometheus.Counter
	Suspensions   prometheus.Counter
	BytesConsumed prometheus.Counter
}

// NewReaderMetrics creates the collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewReaderMetrics(reg prometheus.Registerer) (*ReaderMetrics, error) {
	m := &ReaderMetrics{
		ReadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dcmstream",
				Subsystem: "reader",
				Name:      "reads_total",
				Help:      "Total number of finished reads by final status",
			},
			[]string{"status"},
		),

		ReadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "dcmstream",
				Subsystem: "reader",
				Name:      "read_duration_seconds",
				Help:      "Wall time from BeginRead to completion, suspensions included",
				Buckets:   prometheus.DefBuckets,
			},
		),

		Elements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dcmstream",
			Subsystem: "reader",
			Name:      "elements_total",
			Help:      "Total number of elements delivered to observers",
		}),

		Sequences: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dcmstream",
			Subsystem: "reader",
			Name:      "sequences_total",
			Help:      "Total number of sequences opened",
		}),

		Items: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dcmstream",
			Subsystem: "reader",
			Name:      "sequence_items_total",
			Help:      "Total number of sequence items opened",
		}),

		Fragments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dcmstream",
			Subsystem: "reader",
			Name:      "fragments_total",
			Help:      "Total number of encapsulated fragments delivered",
		}),

		Suspensions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dcmstream",
			Subsystem: "reader",
			Name:      "suspensions_total",
			Help:      "Total number of times a read suspended waiting for data",
		}),

		BytesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dcmstream",
			Subsystem: "reader",
			Name:      "bytes_consumed_total",
			Help:      "Total number of source bytes consumed by finished reads",
		}),
	}

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *ReaderMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ReadsTotal, m.ReadDuration, m.Elements, m.Sequences,
		m.Items, m.Fragments, m.Suspensions, m.BytesConsumed,
	}
}

// 以下方法都允许 m == nil

func (m *ReaderMetrics) element() {
	if m != nil {
		m.Elements.Inc()
	}
}

func (m *ReaderMetrics) sequence() {
	if m != nil {
		m.Sequences.Inc()
	}
}

func (m *ReaderMetrics) item() {
	if m != nil {
		m.Items.Inc()
	}
}

func (m *ReaderMetrics) fragment() {
	if m != nil {
		m.Fragments.Inc()
	}
}

func (m *ReaderMetrics) suspended() {
	if m != nil {
		m.Suspensions.Inc()
	}
}

func (m *ReaderMetrics) finished(status Status, started time.Time, consumed int64) {
	if m == nil {
		return
	}
	m.ReadsTotal.WithLabelValues(status.String()).Inc()
	m.ReadDuration.Observe(time.Since(started).Seconds())
	if consumed > 0 {
		m.BytesConsumed.Add(float64(consumed))
	}
}
