package runmanifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/offlinefirst/tiptap/pkg/config"
)

// SchemaVersion captures the manifest version for compatibility checks.
const SchemaVersion = 1

// Layout represents the absolute filesystem locations for a replay run.
type Layout struct {
	Root         string
	ManifestPath string
	LogPath      string
	OutcomesDir  string
}

// Paths holds the relative locations stored in the manifest for portability.
type Paths struct {
	Root     string `json:"root"`
	Manifest string `json:"manifest"`
	Log      string `json:"log"`
	Outcomes string `json:"outcomes"`
}

// RecognizerSettings records the classifier configuration used for the run.
type RecognizerSettings struct {
	MaximumTapDuration   string  `json:"maximum_tap_duration"`
	MinimumDragDistance  float64 `json:"minimum_drag_distance"`
	RequiredSourceTaps   int     `json:"required_source_taps"`
	MaximumSourceTaps    *int    `json:"maximum_source_taps,omitempty"`
	RequiredTipTaps      int     `json:"required_tip_taps"`
	MaximumTipTaps       *int    `json:"maximum_tip_taps,omitempty"`
	RequiredCombinedTaps int     `json:"required_combined_taps"`
	MaximumCombinedTaps  *int    `json:"maximum_combined_taps,omitempty"`
	LiftPolicy           string  `json:"lift_policy"`
	AutoReset            bool    `json:"auto_reset"`
}

// Status summarises the lifecycle of a replay run.
type Status struct {
	State       string                    `json:"state"`
	Summary     string                    `json:"summary,omitempty"`
	StartedAt   *time.Time                `json:"started_at,omitempty"`
	EndedAt     *time.Time                `json:"ended_at,omitempty"`
	Termination string                    `json:"termination,omitempty"`
	Controller  []ControllerTimelineEntry `json:"controller_timeline,omitempty"`
	Traces      []TraceStatus             `json:"traces,omitempty"`
}

// ControllerTimelineEntry records controller state transitions for diagnostics.
type ControllerTimelineEntry struct {
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TraceStatus captures the outcome of replaying one trace.
type TraceStatus struct {
	Name     string         `json:"name"`
	State    string         `json:"state"`
	Outcomes string         `json:"outcomes,omitempty"`
	Events   int            `json:"events"`
	Taps     map[string]int `json:"taps,omitempty"`
	Ended    int            `json:"ended"`
	Failed   int            `json:"failed"`
	Message  string         `json:"message,omitempty"`
}

// Trace outcome states used in manifests for downstream tooling.
const (
	TraceStatePending   = "pending"
	TraceStateCompleted = "completed"
	TraceStateErrored   = "error"
)

// Manifest is the durable metadata describing a replay run.
type Manifest struct {
	SchemaVersion int                `json:"schema_version"`
	RunID         string             `json:"run_id"`
	SessionID     string             `json:"session_id"`
	CreatedAt     time.Time          `json:"created_at"`
	Hostname      string             `json:"hostname"`
	AppVersion    string             `json:"app_version"`
	ConfigSource  string             `json:"config_source"`
	Recognizer    RecognizerSettings `json:"recognizer"`
	Paths         Paths              `json:"paths"`
	Status        Status             `json:"status"`
}

// Options captures the knobs for creating a new manifest.
type Options struct {
	RunID      string
	CreatedAt  time.Time
	Hostname   string
	AppVersion string
	Config     config.Config
	Layout     Layout
}

// New constructs a manifest using the supplied options.
func New(opts Options) Manifest {
	rec := opts.Config.Recognizer
	return Manifest{
		SchemaVersion: SchemaVersion,
		RunID:         opts.RunID,
		SessionID:     uuid.NewString(),
		CreatedAt:     opts.CreatedAt.UTC(),
		Hostname:      opts.Hostname,
		AppVersion:    opts.AppVersion,
		ConfigSource:  opts.Config.Source,
		Recognizer: RecognizerSettings{
			MaximumTapDuration:   rec.MaximumTapDuration.String(),
			MinimumDragDistance:  rec.MinimumDragDistance,
			RequiredSourceTaps:   rec.RequiredSourceTaps,
			MaximumSourceTaps:    rec.MaximumSourceTaps,
			RequiredTipTaps:      rec.RequiredTipTaps,
			MaximumTipTaps:       rec.MaximumTipTaps,
			RequiredCombinedTaps: rec.RequiredCombinedTaps,
			MaximumCombinedTaps:  rec.MaximumCombinedTaps,
			LiftPolicy:           rec.LiftPolicy,
			AutoReset:            opts.Config.Replay.AutoReset,
		},
		Paths:  opts.Layout.RelativePaths(),
		Status: Status{State: "pending"},
	}
}

// BuildLayout creates an absolute filesystem layout for a run.
func BuildLayout(runsDir, runID string) Layout {
	root := filepath.Join(runsDir, runID)
	return Layout{
		Root:         root,
		ManifestPath: filepath.Join(root, "manifest.json"),
		LogPath:      filepath.Join(root, "replay.log"),
		OutcomesDir:  filepath.Join(root, "outcomes"),
	}
}

// RelativePaths exposes the manifest-friendly relative paths for the layout.
func (l Layout) RelativePaths() Paths {
	return Paths{
		Root:     ".",
		Manifest: filepath.Base(l.ManifestPath),
		Log:      filepath.Base(l.LogPath),
		Outcomes: filepath.Base(l.OutcomesDir),
	}
}

// OutcomesPath returns where the outcomes of the named trace are written.
func (l Layout) OutcomesPath(traceName string) string {
	return filepath.Join(l.OutcomesDir, SanitizeName(traceName)+".jsonl")
}

// SanitizeName reduces a trace path to a file-name-safe stem.
func SanitizeName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 || base == "." {
		return "trace"
	}
	return b.String()
}

// EnsureFilesystem prepares the directory tree for a run layout.
func EnsureFilesystem(layout Layout) error {
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		return fmt.Errorf("create run root: %w", err)
	}
	if err := os.MkdirAll(layout.OutcomesDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", layout.OutcomesDir, err)
	}

	file, err := os.OpenFile(layout.LogPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("initialise replay log: %w", err)
	}
	defer file.Close()

	return nil
}

// Save writes the manifest JSON to disk with indentation for readability.
func Save(man Manifest, path string) error {
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Load reads a manifest JSON file from disk.
func Load(path string) (Manifest, error) {
	var man Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return man, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &man); err != nil {
		return man, fmt.Errorf("decode manifest: %w", err)
	}
	return man, nil
}

// ResolveRunID chooses a run identifier derived from the timestamp and avoids collisions.
func ResolveRunID(runsDir string, now time.Time) (string, error) {
	if strings.TrimSpace(runsDir) == "" {
		return "", errors.New("runs directory must not be empty")
	}

	base := now.UTC().Format("20060102_150405")
	candidate := base
	for {
		_, err := os.Stat(filepath.Join(runsDir, candidate))
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("inspect runs directory: %w", err)
		}
		candidate = fmt.Sprintf("%s_%s", base, uuid.NewString()[:8])
	}
}
