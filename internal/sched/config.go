// internal/sched/config.go

package sched

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "github.com/goccy/go-yaml"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"framesched/internal/frame"
	"framesched/internal/pipeline"
)

// Config mirrors config.yml.
type Config struct {
	TargetFPS       int    `yaml:"target_fps"`        // 60 (by default)
	FrameDeadlineMS int    `yaml:"frame_deadline_ms"` // 0 = no deadline
	BudgetPolicy    string `yaml:"budget_policy"`     // defer_low | lenient | strict
	SkipPolicy      string `yaml:"skip_policy"`       // never | catch_up | skip_to_latest | limited
	MaxFrameSkip    int    `yaml:"max_frame_skip"`    // 3 (by default)
	DirtyCapacity   int    `yaml:"dirty_capacity"`    // bitmap size per dirty set
	ParallelLayout  bool   `yaml:"parallel_layout"`
	ParallelWorkers int    `yaml:"parallel_workers"` // 0 = unlimited
	HistorySize     int    `yaml:"history_size"`     // frames kept for jank stats
	LogLevel        string `yaml:"log_level"`
	CSVPath         string `yaml:"csv_path"` // empty = no CSV log
	TickMS          int    `yaml:"tick_ms"`  // 0 = derived from target_fps
}

// envPrefix is prepended to every environment override, e.g. FRAMESCHED_TARGET_FPS.
const envPrefix = "FRAMESCHED"

// DefaultConfig is what Load returns when there is no file.
func DefaultConfig() Config {
	return Config{
		TargetFPS:     frame.DefaultFPS,
		BudgetPolicy:  "defer_low",
		SkipPolicy:    "catch_up",
		MaxFrameSkip:  DefaultMaxFrameSkip,
		DirtyCapacity: pipeline.DefaultDirtyCapacity,
		HistorySize:   DefaultHistorySize,
		LogLevel:      "info",
	}
}

// Load reads YAML and overrides defaults; empty path = defaults only.
// A missing or unreadable file is not an error.
func Load(path string) Config {
	cfg := DefaultConfig()

	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logrus.WithError(err).WithField("path", path).Warn("config: ignoring malformed file")
		return DefaultConfig()
	}
	return cfg.clamp()
}

// LoadWithEnv is Load plus FRAMESCHED_* environment overrides.
func LoadWithEnv(path string) (Config, error) {
	cfg := Load(path)

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// file values become the defaults env vars override
	v.SetDefault("target_fps", cfg.TargetFPS)
	v.SetDefault("frame_deadline_ms", cfg.FrameDeadlineMS)
	v.SetDefault("budget_policy", cfg.BudgetPolicy)
	v.SetDefault("skip_policy", cfg.SkipPolicy)
	v.SetDefault("max_frame_skip", cfg.MaxFrameSkip)
	v.SetDefault("dirty_capacity", cfg.DirtyCapacity)
	v.SetDefault("parallel_layout", cfg.ParallelLayout)
	v.SetDefault("parallel_workers", cfg.ParallelWorkers)
	v.SetDefault("history_size", cfg.HistorySize)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("csv_path", cfg.CSVPath)
	v.SetDefault("tick_ms", cfg.TickMS)

	cfg = Config{
		TargetFPS:       v.GetInt("target_fps"),
		FrameDeadlineMS: v.GetInt("frame_deadline_ms"),
		BudgetPolicy:    v.GetString("budget_policy"),
		SkipPolicy:      v.GetString("skip_policy"),
		MaxFrameSkip:    v.GetInt("max_frame_skip"),
		DirtyCapacity:   v.GetInt("dirty_capacity"),
		ParallelLayout:  v.GetBool("parallel_layout"),
		ParallelWorkers: v.GetInt("parallel_workers"),
		HistorySize:     v.GetInt("history_size"),
		LogLevel:        v.GetString("log_level"),
		CSVPath:         v.GetString("csv_path"),
		TickMS:          v.GetInt("tick_ms"),
	}.clamp()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// clamp applies the sanity limits.
func (c Config) clamp() Config {
	if c.TargetFPS <= 0 {
		c.TargetFPS = frame.DefaultFPS
	}
	if c.FrameDeadlineMS < 0 {
		c.FrameDeadlineMS = 0
	}
	if c.MaxFrameSkip < 0 {
		c.MaxFrameSkip = DefaultMaxFrameSkip
	}
	if c.DirtyCapacity <= 0 {
		c.DirtyCapacity = pipeline.DefaultDirtyCapacity
	}
	if c.ParallelWorkers < 0 {
		c.ParallelWorkers = 0
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.TickMS < 0 {
		c.TickMS = 0
	}
	return c
}

// Validate checks the named settings resolve.
func (c Config) Validate() error {
	if _, err := PolicyByName(c.BudgetPolicy); err != nil {
		return err
	}
	if _, err := ParseSkipPolicy(c.SkipPolicy); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// FrameDeadline bounds tasks and pipeline work of one frame; 0 = none.
func (c Config) FrameDeadline() time.Duration {
	return time.Duration(c.FrameDeadlineMS) * time.Millisecond
}

// TickInterval is the vsync period for the TickClock.
func (c Config) TickInterval() time.Duration {
	if c.TickMS > 0 {
		return time.Duration(c.TickMS) * time.Millisecond
	}
	return frame.FrameDurationFromFPS(c.TargetFPS)
}

// PipelineOptions converts the pipeline settings for pipeline.NewCoordinator.
func (c Config) PipelineOptions(log logrus.FieldLogger) pipeline.Options {
	return pipeline.Options{
		DirtyCapacity:   c.DirtyCapacity,
		ParallelLayout:  c.ParallelLayout,
		ParallelWorkers: c.ParallelWorkers,
		Logger:          log,
	}
}
