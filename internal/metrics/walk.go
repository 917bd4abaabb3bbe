package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Traversal metrics
var (
	// WalkRecordsTotal tracks regular files emitted by walks
	WalkRecordsTotal prometheus.Counter

	// WalkSkippedTotal tracks entries skipped during walks by reason
	// (unreadable_dir, stat_race, truncated)
	WalkSkippedTotal *prometheus.CounterVec

	// WalkDuration tracks how long a full collection walk takes
	WalkDuration prometheus.Histogram

	// FreeSpacePercent tracks free space of the filesystem holding a reported root
	FreeSpacePercent *prometheus.GaugeVec
)

func initWalkMetrics() {
	WalkRecordsTotal = NewCounter(
		"dirmanage_walk_records_total",
		"Total number of regular files emitted by directory walks.",
	)

	WalkSkippedTotal = NewCounterVec(
		"dirmanage_walk_skipped_total",
		"Total number of entries skipped during directory walks, by reason.",
		[]string{"reason"},
	)

	WalkDuration = NewDurationHistogram(
		"dirmanage_walk_duration_seconds",
		"Duration of full directory walks in seconds.",
	)

	FreeSpacePercent = NewGaugeVec(
		"dirmanage_free_space_percent",
		"Free space percentage of the filesystem containing a reported root.",
		[]string{"path"},
	)
}

func registerWalkMetrics() {
	prometheus.MustRegister(WalkRecordsTotal)
	prometheus.MustRegister(WalkSkippedTotal)
	prometheus.MustRegister(WalkDuration)
	prometheus.MustRegister(FreeSpacePercent)
}

// RecordWalk records a completed collection walk
func RecordWalk(records int, elapsed time.Duration) {
	if !Enabled() {
		return
	}
	WalkRecordsTotal.Add(float64(records))
	WalkDuration.Observe(elapsed.Seconds())
}

// RecordWalkSkip counts one skipped entry
func RecordWalkSkip(reason string) {
	if !Enabled() {
		return
	}
	WalkSkippedTotal.WithLabelValues(reason).Inc()
}

// UpdateFreeSpacePercent updates the free space percentage for a path
func UpdateFreeSpacePercent(path string, percent float64) {
	if !Enabled() {
		return
	}
	FreeSpacePercent.WithLabelValues(path).Set(percent)
}
