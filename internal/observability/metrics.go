// Package observability exposes the Prometheus collectors shared by the API and the device client.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	fixesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lakbay",
		Subsystem: "sampler",
		Name:      "fixes_dropped_total",
		Help:      "Location fixes discarded before reaching the run session, labeled by reason.",
	}, []string{"reason"})

	milestonesReached = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lakbay",
		Subsystem: "run",
		Name:      "milestones_reached_total",
		Help:      "Integer-kilometre milestones crossed during runs.",
	})

	runsPersisted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lakbay",
		Subsystem: "runs",
		Name:      "persisted_total",
		Help:      "Run records written, labeled by operation.",
	}, []string{"op"})

	achievementsGranted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lakbay",
		Subsystem: "achievements",
		Name:      "granted_total",
		Help:      "Achievements granted, labeled by achievement id.",
	}, []string{"achievement"})

	artifactsCollected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lakbay",
		Subsystem: "artifacts",
		Name:      "collected_total",
		Help:      "First-time artifact collections recorded.",
	})

	syncAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lakbay",
		Subsystem: "sync",
		Name:      "attempts_total",
		Help:      "HTTP attempts made by the sync client, labeled by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(fixesDropped, milestonesReached, runsPersisted, achievementsGranted, artifactsCollected, syncAttempts)
}

// RecordFixDropped counts a fix the sampler refused to forward.
func RecordFixDropped(reason string) {
	fixesDropped.WithLabelValues(reason).Inc()
}

// RecordMilestone counts a crossed kilometre boundary.
func RecordMilestone() {
	milestonesReached.Inc()
}

// RecordRunPersisted counts a run write ("create", "update", "delete").
func RecordRunPersisted(op string) {
	runsPersisted.WithLabelValues(op).Inc()
}

// RecordAchievementGranted counts one granted achievement.
func RecordAchievementGranted(id string) {
	achievementsGranted.WithLabelValues(id).Inc()
}

// RecordArtifactCollected counts a new artifact collection.
func RecordArtifactCollected() {
	artifactsCollected.Inc()
}

// RecordSyncAttempt counts a sync client HTTP attempt ("ok", "retry", "failed", "auth").
func RecordSyncAttempt(outcome string) {
	syncAttempts.WithLabelValues(outcome).Inc()
}
