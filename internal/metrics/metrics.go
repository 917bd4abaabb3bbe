package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	initOnce    sync.Once
	ready       atomic.Bool
	serverMutex sync.Mutex
	currentSrv  *http.Server
)

// Init initializes all metrics subsystems and registers them with Prometheus
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initOperationMetrics()
		initWalkMetrics()

		registerOperationMetrics()
		registerWalkMetrics()

		// Present in /metrics before the first batch runs
		LastBatchTimestamp.Set(0)

		ready.Store(true)
	})
}

// Enabled reports whether Init has run. Record helpers are no-ops until then,
// so library code can record unconditionally.
func Enabled() bool {
	return ready.Load()
}

// StartServer starts the metrics HTTP server on the specified address
// Exposes /metrics (Prometheus) and /health
func StartServer(addr string, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv != nil {
		logger.Info("metrics server already running", zap.String("addr", currentSrv.Addr))
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","healthy":true}`))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	currentSrv = srv

	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
}

// Shutdown gracefully shuts down the metrics server
func Shutdown(ctx context.Context, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv == nil {
		return
	}
	if err := currentSrv.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}
	currentSrv = nil
}
