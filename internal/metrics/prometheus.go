package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kubev2v/workmanager/pkg/scheduler"
)

const namespace = "workd"

// Prometheus implements scheduler.Metrics.
type Prometheus struct {
	scheduled *prometheus.CounterVec
	running   *prometheus.GaugeVec
	completed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		scheduled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "work_scheduled_total",
			Help:      "Work items accepted by a queue.",
		}, []string{"queue"}),
		running: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "work_running",
			Help:      "Work items currently executing.",
		}, []string{"queue"}),
		completed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "work_completed_total",
			Help:      "Work items that reached a terminal state.",
		}, []string{"queue", "state"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "work_duration_seconds",
			Help:      "Time from scheduling to completion.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"queue", "state"}),
	}
}

func (p *Prometheus) WorkScheduled(queueID string) {
	p.scheduled.WithLabelValues(queueID).Inc()
}

func (p *Prometheus) WorkRunning(queueID string, delta int) {
	p.running.WithLabelValues(queueID).Add(float64(delta))
}

func (p *Prometheus) WorkCompleted(queueID string, state scheduler.State, elapsed time.Duration) {
	p.completed.WithLabelValues(queueID, string(state)).Inc()
	p.duration.WithLabelValues(queueID, string(state)).Observe(elapsed.Seconds())
}

// QueueSource is the part of the engine the queue collector reads.
type QueueSource interface {
	QueueIDs() []string
	Metrics(queueID string) (scheduler.QueueMetrics, error)
}

// QueueCollector exports the engine's per-queue item counts at scrape time.
type QueueCollector struct {
	source QueueSource
	items  *prometheus.Desc
}

func NewQueueCollector(source QueueSource) *QueueCollector {
	return &QueueCollector{
		source: source,
		items: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "items"),
			"Work items held by a queue, by state.",
			[]string{"queue", "state"}, nil,
		),
	}
}

func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.items
}

func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	for _, id := range c.source.QueueIDs() {
		m, err := c.source.Metrics(id)
		if err != nil {
			// unknown queue
			continue
		}
		for state, n := range map[scheduler.State]int{
			scheduler.StateScheduled: m.Scheduled,
			scheduler.StateRunning:   m.Running,
			scheduler.StateCompleted: m.Completed,
			scheduler.StateFailed:    m.Failed,
			scheduler.StateCanceled:  m.Canceled,
		} {
			ch <- prometheus.MustNewConstMetric(c.items, prometheus.GaugeValue, float64(n), id, string(state))
		}
	}
}
