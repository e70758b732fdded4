package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/offlinefirst/tiptap/internal/buildinfo"
	"github.com/offlinefirst/tiptap/pkg/capture"
	"github.com/offlinefirst/tiptap/pkg/config"
	"github.com/offlinefirst/tiptap/pkg/events"
	"github.com/offlinefirst/tiptap/pkg/metrics"
	"github.com/offlinefirst/tiptap/pkg/runmanifest"
)

func newReplayCommand() command {
	return command{
		name:        "replay",
		description: "Replay recorded touch traces through the recognizer",
		args:        "trace.jsonl...",
		configure: func(fs *flag.FlagSet) {
			fs.Bool("plan-only", false, "Print the resolved configuration without replaying")
			fs.String("out", "", "Override the runs directory")
		},
		run: runReplay,
	}
}

var (
	timeNow      = time.Now
	hostname     = os.Hostname
	manifestSave = runmanifest.Save
)

func runReplay(fs *flag.FlagSet, args []string, ctx *AppContext, stdout io.Writer, stderr io.Writer) error {
	if ctx == nil {
		return fmt.Errorf("application context unavailable")
	}

	cfg := ctx.Config
	if out := stringFlag(fs, "out"); out != "" {
		cfg.Paths.RunsDir = out
	}

	planOnly := boolFlag(fs, "plan-only")
	ctx.Logger.Info("replay command invoked", "plan_only", planOnly, "traces", len(args), "runs_dir", cfg.Paths.RunsDir, "config_source", cfg.Source)

	if planOnly {
		printReplayPlan(ctx, cfg, args, stdout)
		return nil
	}
	if len(args) == 0 {
		return errors.New("replay requires at least one trace file")
	}

	traces := make([]capture.Trace, 0, len(args))
	for _, path := range args {
		traces = append(traces, capture.Trace{Name: filepath.Base(path), Source: events.OpenTraceFile(path)})
	}

	if err := os.MkdirAll(cfg.Paths.RunsDir, 0o755); err != nil {
		return fmt.Errorf("ensure runs directory: %w", err)
	}

	runID, err := runmanifest.ResolveRunID(cfg.Paths.RunsDir, timeNow())
	if err != nil {
		return fmt.Errorf("resolve run id: %w", err)
	}

	layout := runmanifest.BuildLayout(cfg.Paths.RunsDir, runID)
	if err := runmanifest.EnsureFilesystem(layout); err != nil {
		return fmt.Errorf("prepare run filesystem: %w", err)
	}

	host, err := hostname()
	if err != nil {
		host = "unknown"
	}

	manifest := runmanifest.New(runmanifest.Options{
		RunID:      runID,
		CreatedAt:  timeNow(),
		Hostname:   host,
		AppVersion: buildinfo.Version(),
		Config:     cfg,
		Layout:     layout,
	})
	for _, trace := range traces {
		manifest.Status.Traces = append(manifest.Status.Traces, runmanifest.TraceStatus{
			Name:  trace.Name,
			State: runmanifest.TraceStatePending,
		})
	}
	manifest.Status.State = "running"
	manifest.Status.Summary = "replay in progress"
	if err := manifestSave(manifest, layout.ManifestPath); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	summary, err := capture.Run(ctx.Done(), capture.Options{
		Config:  cfg,
		Layout:  layout,
		Logger:  ctx.Logger,
		Clock:   timeNow,
		Metrics: metrics.NewRecorder(),
		Traces:  traces,
	})

	if summary.Lifecycle != nil {
		started := summary.Lifecycle.StartedAt.UTC()
		finished := summary.Lifecycle.FinishedAt.UTC()
		manifest.Status.StartedAt = &started
		manifest.Status.EndedAt = &finished
		manifest.Status.Termination = summary.Lifecycle.TerminationCause
		if len(summary.Lifecycle.ControllerTimeline) > 0 {
			manifest.Status.Controller = append([]runmanifest.ControllerTimelineEntry(nil), summary.Lifecycle.ControllerTimeline...)
		}
	}
	if len(summary.Traces) > 0 {
		manifest.Status.Traces = summary.Statuses()
	}

	if err != nil {
		manifest.Status.State = "failed"
		manifest.Status.Summary = err.Error()
		if manifest.Status.Termination == "" {
			manifest.Status.Termination = "error"
		}
		ctx.Logger.Error("replay run failed", "error", err)
		if saveErr := manifestSave(manifest, layout.ManifestPath); saveErr != nil {
			return fmt.Errorf("replay traces: %v (additionally failed to persist manifest: %w)", err, saveErr)
		}
		return fmt.Errorf("replay traces: %w", err)
	}

	manifest.Status.State = "completed"
	manifest.Status.Summary = fmt.Sprintf("replay finished (%s)", manifest.Status.Termination)
	if err := manifestSave(manifest, layout.ManifestPath); err != nil {
		return fmt.Errorf("finalise manifest: %w", err)
	}

	fmt.Fprintf(stdout, "Run directory: %s\n", layout.Root)
	fmt.Fprintf(stdout, "Manifest: %s\n", layout.ManifestPath)
	fmt.Fprintf(stdout, "Replay log: %s\n", layout.LogPath)
	fmt.Fprintf(stdout, "Traces:\n")
	for _, status := range manifest.Status.Traces {
		fmt.Fprintf(stdout, "  - %s: %d events, taps left=%d middle=%d right=%d, ended=%d failed=%d -> %s\n",
			status.Name, status.Events, status.Taps["left"], status.Taps["middle"], status.Taps["right"], status.Ended, status.Failed, status.Outcomes)
	}

	if summary.Lifecycle != nil {
		fmt.Fprintf(stdout, "Lifecycle: started %s, ended %s (termination: %s)\n", summary.Lifecycle.StartedAt.Format(time.RFC3339), summary.Lifecycle.FinishedAt.Format(time.RFC3339), summary.Lifecycle.TerminationCause)
	}
	return nil
}

func printReplayPlan(ctx *AppContext, cfg config.Config, traces []string, stdout io.Writer) {
	rec := cfg.Recognizer
	fmt.Fprintf(stdout, "Resolved configuration (source: %s)\n", cfg.Source)
	fmt.Fprintf(stdout, "  runs_dir: %s\n", cfg.Paths.RunsDir)
	fmt.Fprintf(stdout, "  recognizer.maximum_tap_duration: %s\n", rec.MaximumTapDuration)
	fmt.Fprintf(stdout, "  recognizer.minimum_drag_distance: %g\n", rec.MinimumDragDistance)
	fmt.Fprintf(stdout, "  recognizer.source_taps: %d..%s\n", rec.RequiredSourceTaps, maximumLabel(rec.MaximumSourceTaps))
	fmt.Fprintf(stdout, "  recognizer.tip_taps: %d..%s\n", rec.RequiredTipTaps, maximumLabel(rec.MaximumTipTaps))
	fmt.Fprintf(stdout, "  recognizer.combined_taps: %d..%s\n", rec.RequiredCombinedTaps, maximumLabel(rec.MaximumCombinedTaps))
	fmt.Fprintf(stdout, "  recognizer.lift_policy: %s\n", rec.LiftPolicy)
	fmt.Fprintf(stdout, "  replay.auto_reset: %t\n", cfg.Replay.AutoReset)
	fmt.Fprintf(stdout, "  replay.concurrency: %d\n", cfg.Replay.Concurrency)
	fmt.Fprintf(stdout, "  logging.level: %s\n", ctx.Config.Logging.Level)
	fmt.Fprintf(stdout, "  logging.format: %s\n", ctx.Config.Logging.Format)
	for _, trace := range traces {
		fmt.Fprintf(stdout, "  trace: %s\n", trace)
	}
}

func maximumLabel(v *int) string {
	if v == nil {
		return "unbounded"
	}
	return strconv.Itoa(*v)
}

func boolFlag(fs *flag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	if f == nil {
		return false
	}
	value, err := strconv.ParseBool(f.Value.String())
	if err != nil {
		return false
	}
	return value
}

func stringFlag(fs *flag.FlagSet, name string) string {
	f := fs.Lookup(name)
	if f == nil {
		return ""
	}
	return f.Value.String()
}
