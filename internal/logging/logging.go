package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dirmanage/internal/config"
)

const logFile = "dirmanage.log"

// New builds the process logger. Console output goes to stderr; when cfg.Dir
// is set, JSON lines are also appended to dir/dirmanage.log after rotation.
// verbose forces debug level regardless of cfg.Level.
func New(cfg config.LoggingCfg, verbose bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		l, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		level = l
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	enabler := zap.NewAtomicLevelAt(level)

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), enabler),
	}

	if cfg.Dir != "" {
		f, err := openLogFile(cfg.Dir, cfg.RotationDays)
		if err != nil {
			return nil, err
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(f), enabler))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

func openLogFile(dir string, rotationDays int) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory %s: %w", dir, err)
	}
	if rotationDays <= 0 {
		rotationDays = 30
	}

	filePath := filepath.Join(dir, logFile)
	rotateLogsIfNeeded(filePath, rotationDays, time.Now())

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", filePath, err)
	}
	return f, nil
}

// rotateLogsIfNeeded renames logPath aside once it is older than rotationDays
// and prunes rotated copies past the same age.
func rotateLogsIfNeeded(logPath string, rotationDays int, now time.Time) {
	info, err := os.Stat(logPath)
	if err != nil {
		return
	}

	cutoff := now.AddDate(0, 0, -rotationDays)
	if !info.ModTime().Before(cutoff) {
		return
	}

	rotatedPath := logPath + "." + info.ModTime().Format("20060102-150405")
	if err := os.Rename(logPath, rotatedPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to rotate log file: %v\n", err)
		return
	}

	cleanupOldLogs(logPath, rotatedPath, cutoff)
}

// cleanupOldLogs keeps the copy that was just rotated aside.
func cleanupOldLogs(logPath, keep string, cutoff time.Time) {
	dir := filepath.Dir(logPath)
	prefix := filepath.Base(logPath) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) || entry.Name() == filepath.Base(keep) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			full := filepath.Join(dir, entry.Name())
			if err := os.Remove(full); err != nil {
				fmt.Fprintf(os.Stderr, "failed to remove old log file %s: %v\n", full, err)
			}
		}
	}
}
