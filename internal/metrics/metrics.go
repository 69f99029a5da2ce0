package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NarrationStatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slidecast_narration_status_transitions_total",
		Help: "Narration status transitions",
	}, []string{"from", "to"})

	NarrationSessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slidecast_narration_sessions_started_total",
		Help: "Voice calls successfully started for a slide",
	})

	NarrationSessionStartFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slidecast_narration_session_start_failures_total",
		Help: "Voice calls the vendor refused to start",
	})

	NarrationSessionStartLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "slidecast_narration_session_start_ms",
		Help:    "Latency of the vendor call start request (ms)",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 10),
	})

	// Vendor errors swallowed during auto-advance teardown
	NarrationBenignErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slidecast_narration_benign_errors_total",
		Help: "Vendor termination errors swallowed during auto-advance",
	})

	NarrationGenuineErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slidecast_narration_genuine_errors_total",
		Help: "Vendor errors surfaced to the user",
	})

	NarrationSlidesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slidecast_narration_slides_completed_total",
		Help: "Slides whose narration settled to completion",
	})

	NarrationPresentationsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slidecast_narration_presentations_completed_total",
		Help: "Auto-advance presentations narrated through the last slide",
	})

	DeckMerges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slidecast_deck_merges_total",
		Help: "Deck conflict resolutions by action",
	}, []string{"action"})
)
