// Package metrics exposes the prometheus instruments of the cork pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smartcontractkit/corks/types"
)

const namespace = "corks"

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "transitions_total",
		Help:      "Count of cork state transitions.",
	}, []string{"from", "to"})
	endorsementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quorum",
		Name:      "endorsements_total",
		Help:      "Count of endorsement attempts.",
	}, []string{"status"})
	finalHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "final_height",
		Help:      "Highest final consensus height observed.",
	})
	provisionalHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "provisional_height",
		Help:      "Highest consensus height observed, final or not.",
	})
	validators = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "validators",
		Help:      "Number of validators in the latest validator set snapshot.",
	})
	heightEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "height_events_total",
		Help:      "Count of processed chain-state events.",
	}, []string{"kind", "status"})
	queueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "queue_length",
		Help:      "Number of executable corks waiting for dispatch.",
	})
	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "operations_total",
		Help:      "Count of dispatcher operations.",
	}, []string{"operation", "status"})
	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "operation_duration_seconds",
		Help:      "Duration of dispatcher operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "status"})
	alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "alerts_total",
		Help:      "Count of operator alerts raised.",
	}, []string{"kind"})
)

func status(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}

// ObserveTransition counts a state change.
func ObserveTransition(change types.StateChange) {
	from := string(change.From)
	if from == "" {
		from = "none"
	}
	transitionsTotal.WithLabelValues(from, string(change.To)).Inc()
}

// ObserveEndorsement counts an endorsement attempt.
func ObserveEndorsement(err error) {
	endorsementsTotal.WithLabelValues(status(err)).Inc()
}

// ObserveHeightEvent counts a chain-state event and tracks the final height.
func ObserveHeightEvent(ev types.HeightEvent, final uint64, err error) {
	kind := "provisional"
	switch {
	case ev.IsReorg():
		kind = "reorg"
	case ev.Final:
		kind = "final"
	}
	heightEventsTotal.WithLabelValues(kind, status(err)).Inc()
	finalHeight.Set(float64(final))
}

// SetProvisionalHeight tracks the highest observed height.
func SetProvisionalHeight(height uint64) {
	provisionalHeight.Set(float64(height))
}

// SetValidators tracks the size of the latest validator set.
func SetValidators(n int) {
	validators.Set(float64(n))
}

// SetQueueLength tracks the executable queue.
func SetQueueLength(n int) {
	queueLength.Set(float64(n))
}

// ObserveDispatch records a dispatcher operation, e.g. "prepare", "send" or "recover".
func ObserveDispatch(operation string, err error, started time.Time) {
	dispatchTotal.WithLabelValues(operation, status(err)).Inc()
	dispatchDuration.WithLabelValues(operation, status(err)).Observe(time.Since(started).Seconds())
}

// ObserveAlert counts an operator alert.
func ObserveAlert(kind types.AlertKind) {
	alertsTotal.WithLabelValues(string(kind)).Inc()
}
