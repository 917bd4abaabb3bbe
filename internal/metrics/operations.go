package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// File operation metrics
var (
	// OperationsTotal counts engine operations by op (copy, move, rename,
	// delete, mkdir, rmtree) and status (ok, error)
	OperationsTotal *prometheus.CounterVec

	// OperationDuration tracks how long single operations take
	OperationDuration *prometheus.HistogramVec

	// FilesDeletedTotal tracks total files deleted
	FilesDeletedTotal prometheus.Counter

	// BytesFreedTotal tracks total bytes of deleted files
	BytesFreedTotal prometheus.Counter

	// BatchItemsTotal counts SRU batch items by result (deleted, failed, skipped, dry_run)
	BatchItemsTotal *prometheus.CounterVec

	// BatchDuration tracks duration of SRU filter-then-delete batches
	BatchDuration prometheus.Histogram

	// LastBatchTimestamp records Unix timestamp of the last SRU batch
	LastBatchTimestamp prometheus.Gauge
)

func initOperationMetrics() {
	OperationsTotal = NewCounterVec(
		"dirmanage_operations_total",
		"Total file operations performed, by operation and status.",
		[]string{"op", "status"},
	)

	OperationDuration = NewDurationHistogramVec(
		"dirmanage_operation_duration_seconds",
		"Duration of single file operations in seconds.",
		OperationBuckets,
		[]string{"op"},
	)

	FilesDeletedTotal = NewCounter(
		"dirmanage_files_deleted_total",
		"Total number of files deleted.",
	)

	BytesFreedTotal = NewBytesCounter(
		"dirmanage_bytes_freed_total",
		"Total bytes of deleted files.",
	)

	BatchItemsTotal = NewCounterVec(
		"dirmanage_batch_items_total",
		"Total SRU batch items processed, by result.",
		[]string{"result"},
	)

	BatchDuration = NewDurationHistogram(
		"dirmanage_batch_duration_seconds",
		"Duration of SRU filter-then-delete batches in seconds.",
	)

	LastBatchTimestamp = NewGauge(
		"dirmanage_batch_last_run_timestamp",
		"Timestamp of the last SRU batch (Unix epoch seconds).",
	)
}

func registerOperationMetrics() {
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(FilesDeletedTotal)
	prometheus.MustRegister(BytesFreedTotal)
	prometheus.MustRegister(BatchItemsTotal)
	prometheus.MustRegister(BatchDuration)
	prometheus.MustRegister(LastBatchTimestamp)
}

// RecordOperation counts one engine operation and observes its duration
func RecordOperation(op string, err error, elapsed time.Duration) {
	if !Enabled() {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	OperationsTotal.WithLabelValues(op, status).Inc()
	OperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// RecordDeletions adds deleted files and their bytes
func RecordDeletions(files int, bytes int64) {
	if !Enabled() || files <= 0 {
		return
	}
	FilesDeletedTotal.Add(float64(files))
	BytesFreedTotal.Add(float64(bytes))
}

// RecordBatch records the per-result counts and duration of one SRU batch
func RecordBatch(deleted, failed, skipped, dryRun int, elapsed time.Duration) {
	if !Enabled() {
		return
	}
	BatchItemsTotal.WithLabelValues("deleted").Add(float64(deleted))
	BatchItemsTotal.WithLabelValues("failed").Add(float64(failed))
	BatchItemsTotal.WithLabelValues("skipped").Add(float64(skipped))
	BatchItemsTotal.WithLabelValues("dry_run").Add(float64(dryRun))
	BatchDuration.Observe(elapsed.Seconds())
	LastBatchTimestamp.Set(float64(time.Now().Unix()))
}
