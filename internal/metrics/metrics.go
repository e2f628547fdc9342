package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Fullex26/camnotify/pkg/models"
)

const namespace = "camnotify"

// DispatchMetrics holds the Prometheus collectors for the dispatch pipeline.
type DispatchMetrics struct {
	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	DetectionsTotal  *prometheus.CounterVec
}

// New registers the dispatch collectors on reg.
func New(reg prometheus.Registerer) *DispatchMetrics {
	f := promauto.With(reg)
	return &DispatchMetrics{
		DispatchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total number of notification dispatches by notifier and outcome.",
		}, []string{"notifier", "outcome"}), // outcome: success, rejected, aborted, failed
		DispatchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent waiting on the notification endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"notifier"}),
		DetectionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Total number of detections received, by whether they were dispatched or suppressed.",
		}, []string{"result"}), // result: dispatched, suppressed
	}
}

// ObserveDispatch records one finished dispatch
func (m *DispatchMetrics) ObserveDispatch(d models.Dispatch) {
	m.DispatchTotal.WithLabelValues(d.Notifier, string(d.Outcome)).Inc()
	if d.Outcome != models.OutcomeAborted {
		m.DispatchDuration.WithLabelValues(d.Notifier).Observe(d.Duration.Seconds())
	}
}

// ObserveDetection records whether a detection made it past dedup
func (m *DispatchMetrics) ObserveDetection(dispatched bool) {
	result := "suppressed"
	if dispatched {
		result = "dispatched"
	}
	m.DetectionsTotal.WithLabelValues(result).Inc()
}
