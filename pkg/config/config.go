package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/offlinefirst/tiptap/pkg/gesture"
)

const DefaultFileName = "config.yaml"

// Config captures the user-adjustable knobs for the recognizer and its hosts.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Replay     ReplayConfig     `yaml:"replay"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`

	// Source indicates where the configuration originated (defaults or a file path).
	Source string `yaml:"-"`
}

// PathsConfig controls filesystem locations used by the CLI.
type PathsConfig struct {
	RunsDir string `yaml:"runs_dir"`
}

// RecognizerConfig mirrors gesture.Options. A nil maximum leaves the count unbounded.
type RecognizerConfig struct {
	MaximumTapDuration  time.Duration `yaml:"maximum_tap_duration"`
	MinimumDragDistance float64       `yaml:"minimum_drag_distance"`

	RequiredSourceTaps   int  `yaml:"required_source_taps"`
	MaximumSourceTaps    *int `yaml:"maximum_source_taps"`
	RequiredTipTaps      int  `yaml:"required_tip_taps"`
	MaximumTipTaps       *int `yaml:"maximum_tip_taps"`
	RequiredCombinedTaps int  `yaml:"required_combined_taps"`
	MaximumCombinedTaps  *int `yaml:"maximum_combined_taps"`

	LiftPolicy string `yaml:"lift_policy"`
}

// ReplayConfig tunes trace replay.
type ReplayConfig struct {
	AutoReset   bool `yaml:"auto_reset"`
	Concurrency int  `yaml:"concurrency"`
}

// ServerConfig configures the websocket touch surface host.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// MaxEventsPerSecond throttles each websocket session; zero disables it.
	MaxEventsPerSecond float64 `yaml:"max_events_per_second"`
}

// LoggingConfig defines log verbosity and formatting.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the baseline configuration used when no overrides are supplied.
func Default() Config {
	opts := gesture.Default()
	return Config{
		Paths: PathsConfig{
			RunsDir: "runs",
		},
		Recognizer: RecognizerConfig{
			MaximumTapDuration:   opts.MaximumTapDuration,
			MinimumDragDistance:  opts.MinimumDragDistance,
			RequiredSourceTaps:   opts.SourceTaps.Required,
			RequiredTipTaps:      opts.TipTaps.Required,
			RequiredCombinedTaps: opts.CombinedTaps.Required,
			LiftPolicy:           opts.LiftPolicy.String(),
		},
		Replay: ReplayConfig{
			AutoReset:   true,
			Concurrency: 4,
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Source: "<defaults>",
	}
}

// Load reads configuration from disk if present, otherwise returning defaults.
// When path is empty, the loader attempts to read ./config.yaml but tolerates a missing file.
func Load(path string) (Config, error) {
	cfg := Default()

	candidate := strings.TrimSpace(path)
	explicit := candidate != ""
	if !explicit {
		candidate = DefaultFileName
	}

	data, err := os.ReadFile(candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if explicit {
				return cfg, fmt.Errorf("config file %q not found", candidate)
			}
			return cfg, nil
		}
		return cfg, fmt.Errorf("open config file %q: %w", candidate, err)
	}

	if err := decodeYAML(bytes.NewReader(data), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %q: %w", candidate, err)
	}
	cfg.Source = candidate
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// decodeYAML overlays the document onto cfg, rejecting unknown keys.
func decodeYAML(r io.Reader, cfg *Config) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// Validate ensures essential configuration values are present and sensible.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Paths.RunsDir) == "" {
		return errors.New("paths.runs_dir must not be empty")
	}

	if _, err := NormalizeLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := NormalizeFormat(c.Logging.Format); err != nil {
		return err
	}

	if _, err := c.Recognizer.Options(); err != nil {
		return fmt.Errorf("recognizer: %w", err)
	}
	if c.Replay.Concurrency <= 0 {
		return errors.New("replay.concurrency must be positive")
	}
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		return errors.New("server.listen_addr must not be empty")
	}
	if c.Server.MaxEventsPerSecond < 0 {
		return errors.New("server.max_events_per_second must not be negative")
	}

	return nil
}

// Options converts the recognizer section into validated gesture options.
func (r RecognizerConfig) Options() (gesture.Options, error) {
	policy, err := gesture.ParseLiftPolicy(r.LiftPolicy)
	if err != nil {
		return gesture.Options{}, err
	}
	opts := gesture.Options{
		MaximumTapDuration:  r.MaximumTapDuration,
		MinimumDragDistance: r.MinimumDragDistance,
		SourceTaps:          gesture.Bounds{Required: r.RequiredSourceTaps, Maximum: maximum(r.MaximumSourceTaps)},
		TipTaps:             gesture.Bounds{Required: r.RequiredTipTaps, Maximum: maximum(r.MaximumTipTaps)},
		CombinedTaps:        gesture.Bounds{Required: r.RequiredCombinedTaps, Maximum: maximum(r.MaximumCombinedTaps)},
		LiftPolicy:          policy,
	}
	if err := opts.Validate(); err != nil {
		return gesture.Options{}, err
	}
	return opts, nil
}

func maximum(v *int) int {
	if v == nil {
		return gesture.Unbounded
	}
	return *v
}

func (c *Config) normalize() {
	c.Paths.RunsDir = filepath.Clean(strings.TrimSpace(c.Paths.RunsDir))

	defaults := Default()

	if c.Paths.RunsDir == "." || c.Paths.RunsDir == "" {
		c.Paths.RunsDir = defaults.Paths.RunsDir
	}
	if lvl, err := NormalizeLogLevel(c.Logging.Level); err == nil {
		c.Logging.Level = lvl
	}
	if format, err := NormalizeFormat(c.Logging.Format); err == nil {
		c.Logging.Format = format
	}
	c.Recognizer.LiftPolicy = strings.ToLower(strings.TrimSpace(c.Recognizer.LiftPolicy))
	if c.Recognizer.LiftPolicy == "" {
		c.Recognizer.LiftPolicy = defaults.Recognizer.LiftPolicy
	}
	if c.Recognizer.MaximumTapDuration == 0 {
		c.Recognizer.MaximumTapDuration = defaults.Recognizer.MaximumTapDuration
	}
	if c.Replay.Concurrency == 0 {
		c.Replay.Concurrency = defaults.Replay.Concurrency
	}
	c.Server.ListenAddr = strings.TrimSpace(c.Server.ListenAddr)
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = defaults.Server.ListenAddr
	}
}

// NormalizeLogLevel validates and lowercases known logging levels.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}

// NormalizeFormat validates and canonicalizes logging format identifiers.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return "json", nil
	case "console", "text":
		return "console", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}
