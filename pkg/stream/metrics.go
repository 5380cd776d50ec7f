package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pagecast",
		Name:      "clients_connected",
		Help:      "Number of currently connected viewers.",
	})
	metricFramesBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pagecast",
		Name:      "frames_broadcast_total",
		Help:      "Frames serialized and fanned out to viewers.",
	})
	metricSendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pagecast",
		Name:      "client_send_failures_total",
		Help:      "Viewer send attempts that failed and caused removal.",
	})
	metricCaptures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pagecast",
		Name:      "captures_total",
		Help:      "Successful frame captures.",
	})
	metricCaptureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pagecast",
		Name:      "capture_failures_total",
		Help:      "Frame captures that failed.",
	})
	metricEventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagecast",
		Name:      "events_applied_total",
		Help:      "Control events applied to the primary page.",
	}, []string{"name"})
	metricEventFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagecast",
		Name:      "events_failed_total",
		Help:      "Control events that failed during application.",
	}, []string{"name"})
	metricGateWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pagecast",
		Name:      "event_gate_wait_seconds",
		Help:      "Time spent waiting for the page mutation gate.",
		Buckets:   prometheus.DefBuckets,
	})
	metricApplyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pagecast",
		Name:      "event_apply_seconds",
		Help:      "Time spent applying a control event under the gate.",
		Buckets:   prometheus.DefBuckets,
	})
)
