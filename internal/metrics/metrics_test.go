package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetricsInit verifies that Init() is idempotent and registers metrics
func TestMetricsInit(t *testing.T) {
	// Call Init multiple times - should be idempotent via sync.Once
	Init()
	Init()
	Init()

	if !Enabled() {
		t.Fatal("Enabled should report true after Init")
	}

	// Verify metrics are non-nil (successfully created)
	if OperationsTotal == nil {
		t.Error("OperationsTotal should be initialized")
	}
	if OperationDuration == nil {
		t.Error("OperationDuration should be initialized")
	}
	if BytesFreedTotal == nil {
		t.Error("BytesFreedTotal should be initialized")
	}
	if FilesDeletedTotal == nil {
		t.Error("FilesDeletedTotal should be initialized")
	}
	if WalkSkippedTotal == nil {
		t.Error("WalkSkippedTotal should be initialized")
	}
	if FreeSpacePercent == nil {
		t.Error("FreeSpacePercent should be initialized")
	}

	// Labeled vectors only show up once a child exists
	RecordOperation("delete", nil, time.Millisecond)
	RecordWalkSkip("unreadable_dir")
	RecordBatch(0, 0, 0, 0, time.Millisecond)
	UpdateFreeSpacePercent("/", 50)

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	expectedMetrics := []string{
		"dirmanage_operations_total",
		"dirmanage_operation_duration_seconds",
		"dirmanage_files_deleted_total",
		"dirmanage_bytes_freed_total",
		"dirmanage_batch_items_total",
		"dirmanage_batch_duration_seconds",
		"dirmanage_batch_last_run_timestamp",
		"dirmanage_walk_records_total",
		"dirmanage_walk_skipped_total",
		"dirmanage_walk_duration_seconds",
		"dirmanage_free_space_percent",
	}

	foundMetrics := make(map[string]bool)
	for _, mf := range mfs {
		foundMetrics[mf.GetName()] = true
	}

	for _, expected := range expectedMetrics {
		if !foundMetrics[expected] {
			t.Errorf("Expected metric %s not found in registry", expected)
		}
	}
}

// TestHelperFunctions verifies that helper functions create valid metrics
func TestHelperFunctions(t *testing.T) {
	t.Run("NewDurationHistogram", func(t *testing.T) {
		if NewDurationHistogram("test_duration", "Test duration metric") == nil {
			t.Error("NewDurationHistogram returned nil")
		}
	})

	t.Run("NewDurationHistogramVec", func(t *testing.T) {
		if NewDurationHistogramVec("test_duration_vec", "Test", OperationBuckets, []string{"op"}) == nil {
			t.Error("NewDurationHistogramVec returned nil")
		}
	})

	t.Run("NewBytesCounter", func(t *testing.T) {
		if NewBytesCounter("test_bytes", "Test bytes metric") == nil {
			t.Error("NewBytesCounter returned nil")
		}
	})

	t.Run("NewCounter", func(t *testing.T) {
		if NewCounter("test_counter", "Test counter metric") == nil {
			t.Error("NewCounter returned nil")
		}
	})

	t.Run("NewCounterVec", func(t *testing.T) {
		if NewCounterVec("test_counter_vec", "Test counter vec metric", []string{"label"}) == nil {
			t.Error("NewCounterVec returned nil")
		}
	})

	t.Run("NewGaugeVec", func(t *testing.T) {
		if NewGaugeVec("test_gauge_vec", "Test gauge vec metric", []string{"label"}) == nil {
			t.Error("NewGaugeVec returned nil")
		}
	})

	t.Run("NewGauge", func(t *testing.T) {
		if NewGauge("test_gauge", "Test gauge metric") == nil {
			t.Error("NewGauge returned nil")
		}
	})
}

// TestStandardBuckets verifies that standard bucket definitions are correct
func TestStandardBuckets(t *testing.T) {
	tests := []struct {
		name     string
		got      []float64
		expected []float64
	}{
		{"DurationBuckets", DurationBuckets, []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300}},
		{"OperationBuckets", OperationBuckets, []float64{0.0001, 0.001, 0.01, 0.1, 1, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.got) != len(tt.expected) {
				t.Fatalf("Expected %d buckets, got %d", len(tt.expected), len(tt.got))
			}
			for i, v := range tt.expected {
				if tt.got[i] != v {
					t.Errorf("bucket[%d]: expected %v, got %v", i, v, tt.got[i])
				}
			}
		})
	}
}

// TestRecordOperation verifies status labelling
func TestRecordOperation(t *testing.T) {
	Init()

	okBefore := testutil.ToFloat64(OperationsTotal.WithLabelValues("rename", "ok"))
	errBefore := testutil.ToFloat64(OperationsTotal.WithLabelValues("rename", "error"))

	RecordOperation("rename", nil, time.Millisecond)
	RecordOperation("rename", nil, time.Millisecond)
	RecordOperation("rename", errors.New("boom"), time.Millisecond)

	if got := testutil.ToFloat64(OperationsTotal.WithLabelValues("rename", "ok")) - okBefore; got != 2 {
		t.Errorf("ok count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(OperationsTotal.WithLabelValues("rename", "error")) - errBefore; got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

// TestRecordDeletions verifies file and byte counters
func TestRecordDeletions(t *testing.T) {
	Init()

	files := testutil.ToFloat64(FilesDeletedTotal)
	bytes := testutil.ToFloat64(BytesFreedTotal)

	RecordDeletions(3, 4096)
	RecordDeletions(0, 999) // ignored

	if got := testutil.ToFloat64(FilesDeletedTotal) - files; got != 3 {
		t.Errorf("files delta = %v, want 3", got)
	}
	if got := testutil.ToFloat64(BytesFreedTotal) - bytes; got != 4096 {
		t.Errorf("bytes delta = %v, want 4096", got)
	}
}

// TestRecordBatch verifies per-result batch counters
func TestRecordBatch(t *testing.T) {
	Init()

	before := testutil.ToFloat64(BatchItemsTotal.WithLabelValues("failed"))
	RecordBatch(5, 2, 1, 0, 2*time.Second)

	if got := testutil.ToFloat64(BatchItemsTotal.WithLabelValues("failed")) - before; got != 2 {
		t.Errorf("failed delta = %v, want 2", got)
	}
	if testutil.ToFloat64(LastBatchTimestamp) == 0 {
		t.Error("LastBatchTimestamp should be set after a batch")
	}
}

// TestWalkMetricHelpers tests traversal helper functions
func TestWalkMetricHelpers(t *testing.T) {
	Init()

	before := testutil.ToFloat64(WalkSkippedTotal.WithLabelValues("stat_race"))
	RecordWalkSkip("stat_race")
	if got := testutil.ToFloat64(WalkSkippedTotal.WithLabelValues("stat_race")) - before; got != 1 {
		t.Errorf("stat_race delta = %v, want 1", got)
	}

	RecordWalk(10, 50*time.Millisecond)
	UpdateFreeSpacePercent("/test/path", 85.5)
	if got := testutil.ToFloat64(FreeSpacePercent.WithLabelValues("/test/path")); got != 85.5 {
		t.Errorf("free space = %v, want 85.5", got)
	}
}
