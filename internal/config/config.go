package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"dirmanage/internal/cleanup"
	"dirmanage/internal/filter"
	"dirmanage/internal/scan"
)

type WalkCfg struct {
	MaxRecords int    `yaml:"max_records" json:"max_records"` // 0 = unlimited
	Overflow   string `yaml:"overflow" json:"overflow"`       // truncate or error
	MaxDepth   int    `yaml:"max_depth" json:"max_depth"`     // 0 = unlimited, 1 = direct children only
}

type CleanupCfg struct {
	DryRun         bool     `yaml:"dry_run" json:"dry_run"`
	Workers        int      `yaml:"workers" json:"workers"`
	ProtectedPaths []string `yaml:"protected_paths" json:"protected_paths"` // Refused in addition to system paths
	// Deletions per second across all workers; 0 = unpaced
	MaxDeletesPerSecond float64 `yaml:"max_deletes_per_second" json:"max_deletes_per_second"`
}

type ScheduleCfg struct {
	Interval string `yaml:"interval" json:"interval"` // Go duration between sru watch cycles, e.g. "6h"
}

type LoggingCfg struct {
	Dir          string `yaml:"dir" json:"dir"`                     // Empty = console only
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
	Level        string `yaml:"level" json:"level"`
}

type ActivityCfg struct {
	DatabasePath string `yaml:"database_path" json:"database_path"` // Empty = no SQLite history
	TextLog      string `yaml:"text_log" json:"text_log"`           // Empty = no text log
}

type MetricsCfg struct {
	Port int `yaml:"port" json:"port"` // 0 = no metrics listener
}

type ReportCfg struct {
	TXTPath string `yaml:"txt_path" json:"txt_path"`
	CSVPath string `yaml:"csv_path" json:"csv_path"`
}

type Config struct {
	Root     string          `yaml:"root" json:"root"`
	SRU      filter.Criteria `yaml:"sru" json:"sru"`
	Walk     WalkCfg         `yaml:"walk" json:"walk"`
	Cleanup  CleanupCfg      `yaml:"cleanup" json:"cleanup"`
	Logging  LoggingCfg      `yaml:"logging" json:"logging"`
	Activity ActivityCfg     `yaml:"activity" json:"activity"`
	Metrics  MetricsCfg      `yaml:"metrics" json:"metrics"`
	Report   ReportCfg       `yaml:"report" json:"report"`
	Schedule ScheduleCfg     `yaml:"schedule" json:"schedule"`
}

var (
	errNoRoot           = errors.New("root must not be empty")
	errNegativeLimit    = errors.New("walk limits cannot be negative")
	errNegativeWorkers  = errors.New("cleanup.workers cannot be negative")
	errInvalidPort      = errors.New("metrics.port must be between 0 and 65535")
	errInvalidLevel     = errors.New("invalid logging.level")
	errInvalidProtected = errors.New("protected path must be absolute")
	errNegativeRate     = errors.New("cleanup.max_deletes_per_second cannot be negative")
	errInvalidInterval  = errors.New("schedule.interval must be a positive duration")
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Root: ".",
		SRU:  filter.Criteria{Owner: filter.AllOwners},
		Walk: WalkCfg{Overflow: string(scan.OverflowTruncate)},
		Cleanup: CleanupCfg{
			Workers: cleanup.DefaultWorkers,
		},
		Logging: LoggingCfg{
			RotationDays: 30,
			Level:        "info",
		},
		Activity: ActivityCfg{
			TextLog: "sru_log.txt",
		},
		Report: ReportCfg{
			TXTPath: "report.txt",
			CSVPath: "report.csv",
		},
		Schedule: ScheduleCfg{
			Interval: "1h",
		},
	}
}

// Load reads a YAML file over Default and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns a validated Default when path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		if err := cfg.validateAndDefault(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

func decode(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// Validate re-checks a config after command-line overrides were applied.
func (c *Config) Validate() error {
	return c.validateAndDefault()
}

func (c *Config) validateAndDefault() error {
	if c.Root == "" {
		return errNoRoot
	}
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("root %s: %w", c.Root, err)
	}
	c.Root = filepath.Clean(root)

	if c.SRU.Owner == "" {
		c.SRU.Owner = filter.AllOwners
	}
	if err := c.SRU.Validate(); err != nil {
		return fmt.Errorf("sru: %w", err)
	}

	if c.Walk.MaxRecords < 0 || c.Walk.MaxDepth < 0 {
		return errNegativeLimit
	}
	policy, err := scan.ParseOverflowPolicy(c.Walk.Overflow)
	if err != nil {
		return fmt.Errorf("walk: %w", err)
	}
	c.Walk.Overflow = string(policy)

	if c.Cleanup.Workers < 0 {
		return errNegativeWorkers
	}
	if c.Cleanup.MaxDeletesPerSecond < 0 {
		return errNegativeRate
	}
	if c.Cleanup.Workers == 0 {
		c.Cleanup.Workers = cleanup.DefaultWorkers
	}
	for i, p := range c.Cleanup.ProtectedPaths {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return err
		}
		c.Cleanup.ProtectedPaths[i] = cp
	}

	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30 // Default: keep logs for 30 days
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w %q", errInvalidLevel, c.Logging.Level)
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return errInvalidPort
	}

	if c.Schedule.Interval == "" {
		c.Schedule.Interval = "1h"
	}
	if d, err := time.ParseDuration(c.Schedule.Interval); err != nil || d <= 0 {
		return fmt.Errorf("%w: %q", errInvalidInterval, c.Schedule.Interval)
	}

	return nil
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", errInvalidProtected
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", errInvalidProtected, p)
	}
	return cp, nil
}

// WalkOptions converts the walk section for scan.NewWalker.
func (c *Config) WalkOptions() scan.Options {
	return scan.Options{
		MaxDepth:   c.Walk.MaxDepth,
		MaxRecords: c.Walk.MaxRecords,
		Overflow:   scan.OverflowPolicy(c.Walk.Overflow),
	}
}

// CleanupOptions converts the cleanup section for cleanup.NewCleaner.
func (c *Config) CleanupOptions() cleanup.Options {
	return cleanup.Options{
		DryRun:              c.Cleanup.DryRun,
		Workers:             c.Cleanup.Workers,
		ProtectedPaths:      c.Cleanup.ProtectedPaths,
		MaxDeletesPerSecond: c.Cleanup.MaxDeletesPerSecond,
	}
}

// Interval returns the pause between scheduled reclamation cycles.
func (c *Config) Interval() time.Duration {
	d, err := time.ParseDuration(c.Schedule.Interval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Port > 0
}

func (c *Config) MetricsAddress() string {
	return fmt.Sprintf(":%d", c.Metrics.Port)
}
