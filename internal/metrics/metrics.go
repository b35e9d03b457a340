// Package metrics exposes Prometheus collectors for the scan intake.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts shipment submissions by interpreted outcome.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pistola_scans_total",
		Help: "Total shipment scan submissions by outcome",
	}, []string{"outcome"})

	// SubmitDuration tracks the remote submission round trip.
	SubmitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pistola_submit_duration_seconds",
		Help:    "Remote scan submission round-trip time",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	// VoidsTotal counts void attempts by result.
	VoidsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pistola_voids_total",
		Help: "Total void (undo) attempts by result",
	}, []string{"result"})

	// EventsTotal counts session log events by kind.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pistola_session_events_total",
		Help: "Session log events appended, by kind",
	}, []string{"kind"})

	// GuardDropsTotal counts scans dropped by the processing guard.
	GuardDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pistola_guard_drops_total",
		Help: "Shipment scans dropped while a submission was outstanding",
	})

	// StatsRefreshFailures counts failed progress polls.
	StatsRefreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pistola_stats_refresh_failures_total",
		Help: "Failed aggregate progress refreshes",
	})

	// AudioFailures counts cue lookups or playbacks that failed.
	AudioFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pistola_audio_failures_total",
		Help: "Audio cues that failed to resolve or play",
	})
)

// ObserveSubmit records one remote submission round trip.
func ObserveSubmit(d time.Duration) {
	SubmitDuration.Observe(d.Seconds())
}

// IncScan records one submission outcome.
func IncScan(outcome string) {
	ScansTotal.WithLabelValues(outcome).Inc()
}

// IncEvent records one appended session event.
func IncEvent(kind string) {
	EventsTotal.WithLabelValues(kind).Inc()
}
