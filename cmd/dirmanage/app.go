package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"dirmanage/internal/activity"
	"dirmanage/internal/config"
	"dirmanage/internal/exitcodes"
	"dirmanage/internal/fsops"
	"dirmanage/internal/logging"
	"dirmanage/internal/metrics"
	"dirmanage/internal/safety"
	"dirmanage/internal/scan"
)

// app holds what every command shares. One Guard serializes all mutations
// made by the engine, the activity text log and report writes.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	guard     *fsops.Guard
	engine    *fsops.Engine
	validator *safety.Validator
	recorder  activity.Recorder
	db        *activity.DB
	metricsOn bool
}

func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(v.GetString("config"))
	if err != nil {
		return nil, usageError(err)
	}
	if root := v.GetString("root"); root != "" {
		cfg.Root = root
	}
	if v.GetBool("dry-run") {
		cfg.Cleanup.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, usageError(err)
	}
	return cfg, nil
}

func newApp(v *viper.Viper) (*app, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging, v.GetBool("verbose"))
	if err != nil {
		return nil, usageError(err)
	}

	guard := fsops.NewGuard()
	a := &app{
		cfg:       cfg,
		logger:    logger,
		guard:     guard,
		engine:    fsops.NewEngine(guard, fsops.WithLogger(logger)),
		validator: safety.NewValidator(nil, cfg.Cleanup.ProtectedPaths),
	}

	metrics.Init()
	if cfg.MetricsEnabled() {
		logger.Info("starting metrics listener", zap.String("addr", cfg.MetricsAddress()))
		metrics.StartServer(cfg.MetricsAddress(), logger)
		a.metricsOn = true
	}

	var recorders activity.Multi
	if cfg.Activity.TextLog != "" {
		recorders = append(recorders, activity.NewTextLog(cfg.Activity.TextLog, guard))
	}
	if cfg.Activity.DatabasePath != "" {
		db, err := activity.OpenDB(cfg.Activity.DatabasePath)
		if err != nil {
			a.close()
			return nil, &exitError{code: exitcodes.RuntimeError, err: fmt.Errorf("open activity database: %w", err)}
		}
		a.db = db
		recorders = append(recorders, db)
	}
	a.recorder = recorders

	if cfg.Cleanup.DryRun {
		logger.Info("dry run: no files will be modified")
	}
	return a, nil
}

func (a *app) close() {
	if a.metricsOn {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		metrics.Shutdown(ctx, a.logger)
		cancel()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close activity database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *app) walker(opts scan.Options) *scan.Walker {
	return scan.NewWalker(a.engine.FileSystem(), a.logger, opts)
}

// dir returns args[i] as an absolute path, or the configured root.
func (a *app) dir(args []string, i int) (string, error) {
	if len(args) <= i {
		return a.cfg.Root, nil
	}
	return absPath(args[i])
}

func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", usageError(fmt.Errorf("resolve %s: %w", p, err))
	}
	return abs, nil
}

func (a *app) record(e activity.Entry) {
	if err := a.recorder.Record(e); err != nil {
		a.logger.Warn("activity record failed", zap.String("path", e.Path), zap.Error(err))
	}
}

// mutate runs fn unless in dry-run mode and records the result. A dry run
// records DRY_RUN with the intended action as reason.
func (a *app) mutate(action activity.Action, path, target string, size int64, fn func() error) error {
	e := activity.Entry{Action: action, Path: path, Target: target, Size: size}
	if a.cfg.Cleanup.DryRun {
		e.Action = activity.ActionDryRun
		e.Reason = string(action)
		a.record(e)
		return nil
	}
	err := fn()
	if err != nil {
		e.Action = activity.ActionFailed
		e.Reason = string(action)
		e.Error = err.Error()
	}
	a.record(e)
	return err
}
