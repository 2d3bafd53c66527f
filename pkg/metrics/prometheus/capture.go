// Package prometheus implements the metrics interfaces on the shared
// Prometheus registry.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/PantaKoda/shiftsnap/pkg/metrics"
)

// captureMetrics is the Prometheus implementation of metrics.CaptureMetrics.
type captureMetrics struct {
	sessionsOpened   prometheus.Counter
	sessionsClosed   prometheus.Counter
	sessionsClaimed  prometheus.Counter
	imagesAppended   prometheus.Counter
	notifications    *prometheus.CounterVec
	dispatchCycles   *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
}

// NewCaptureMetrics creates a Prometheus-backed CaptureMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewCaptureMetrics() metrics.CaptureMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &captureMetrics{
		sessionsOpened: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shiftsnap_sessions_opened_total",
			Help: "Total number of capture sessions opened",
		}),
		sessionsClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shiftsnap_sessions_closed_total",
			Help: "Total number of capture sessions closed",
		}),
		sessionsClaimed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shiftsnap_sessions_claimed_total",
			Help: "Total number of closed sessions claimed for processing",
		}),
		imagesAppended: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shiftsnap_images_appended_total",
			Help: "Total number of screenshots appended to capture sessions",
		}),
		notifications: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiftsnap_notifications_total",
				Help: "Total notification rows moved out of pending, by outcome",
			},
			[]string{"outcome"},
		),
		dispatchCycles: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiftsnap_dispatch_cycles_total",
				Help: "Total dispatcher cycles by dispatcher and result",
			},
			[]string{"dispatcher", "result"},
		),
		dispatchDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "shiftsnap_dispatch_cycle_duration_milliseconds",
				Help: "Duration of dispatcher cycles in milliseconds",
				Buckets: []float64{
					1,     // no work
					10,    // single claim
					50,    //
					100,   //
					500,   // small batch with sends
					1000,  // 1s
					5000,  // 5s - slow chat API
					30000, // 30s - statement timeout territory
				},
			},
			[]string{"dispatcher"},
		),
	}
}

func (m *captureMetrics) RecordSessionOpened()  { m.sessionsOpened.Inc() }
func (m *captureMetrics) RecordSessionClosed()  { m.sessionsClosed.Inc() }
func (m *captureMetrics) RecordSessionClaimed() { m.sessionsClaimed.Inc() }
func (m *captureMetrics) RecordImageAppended()  { m.imagesAppended.Inc() }

func (m *captureMetrics) RecordNotificationDispatch(claimed, sent, failed int) {
	m.notifications.WithLabelValues("sent").Add(float64(sent))
	m.notifications.WithLabelValues("failed").Add(float64(failed))
}

func (m *captureMetrics) RecordDispatchCycle(dispatcher string, duration time.Duration, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	m.dispatchCycles.WithLabelValues(dispatcher, result).Inc()
	m.dispatchDuration.WithLabelValues(dispatcher).Observe(float64(duration.Microseconds()) / 1000.0)
}
