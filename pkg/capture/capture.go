// Package capture replays recorded touch traces through independent
// classifiers and records the outcomes of each run.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/offlinefirst/tiptap/pkg/config"
	"github.com/offlinefirst/tiptap/pkg/events"
	"github.com/offlinefirst/tiptap/pkg/gesture"
	"github.com/offlinefirst/tiptap/pkg/metrics"
	"github.com/offlinefirst/tiptap/pkg/runmanifest"
)

// Trace names one stream of touch events.
type Trace struct {
	Name   string
	Source events.EventSource
}

// Options controls replay orchestration.
type Options struct {
	Config  config.Config
	Layout  runmanifest.Layout
	Logger  *slog.Logger
	Clock   func() time.Time
	Control *Controller
	Metrics *metrics.Recorder
	Traces  []Trace
}

// TraceSummary reports the result of one trace.
type TraceSummary struct {
	Name         string
	OutcomesPath string
	Result       events.Result
	Err          error
}

// Lifecycle records when the run started and how it terminated.
type Lifecycle struct {
	StartedAt          time.Time
	FinishedAt         time.Time
	TerminationCause   string
	ControllerTimeline []runmanifest.ControllerTimelineEntry
}

// Summary reports every replayed trace in input order.
type Summary struct {
	Traces    []TraceSummary
	Lifecycle *Lifecycle
}

// Statuses converts the summary to manifest trace entries.
func (s Summary) Statuses() []runmanifest.TraceStatus {
	out := make([]runmanifest.TraceStatus, 0, len(s.Traces))
	for _, trace := range s.Traces {
		status := runmanifest.TraceStatus{
			Name:     trace.Name,
			State:    runmanifest.TraceStateCompleted,
			Outcomes: trace.OutcomesPath,
			Events:   trace.Result.EventCount,
			Ended:    trace.Result.Ended,
			Failed:   trace.Result.Failed,
		}
		if len(trace.Result.Taps) > 0 {
			status.Taps = make(map[string]int, len(trace.Result.Taps))
			for c, n := range trace.Result.Taps {
				status.Taps[c.String()] = n
			}
		}
		if trace.Err != nil {
			status.State = runmanifest.TraceStateErrored
			status.Message = trace.Err.Error()
		}
		out = append(out, status)
	}
	return out
}

// Run replays every trace concurrently, each through its own classifier.
// The first trace error cancels the remaining replays.
func Run(ctx context.Context, opts Options) (Summary, error) {
	if opts.Logger == nil {
		return Summary{}, errors.New("logger must be provided")
	}
	if len(opts.Traces) == 0 {
		return Summary{}, errors.New("at least one trace must be provided")
	}
	seen := make(map[string]string, len(opts.Traces))
	for _, trace := range opts.Traces {
		path := opts.Layout.OutcomesPath(trace.Name)
		if prev, ok := seen[path]; ok {
			return Summary{}, fmt.Errorf("traces %q and %q share outcomes file %s", prev, trace.Name, path)
		}
		seen[path] = trace.Name
	}
	if ctx == nil {
		ctx = context.Background()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	gestureOpts, err := opts.Config.Recognizer.Options()
	if err != nil {
		return Summary{}, fmt.Errorf("resolve recognizer options: %w", err)
	}

	logFile, err := os.OpenFile(opts.Layout.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Summary{}, fmt.Errorf("open replay log: %w", err)
	}
	defer logFile.Close()
	runLog := &replayLog{file: logFile, clock: clock}

	controller := opts.Control
	if controller == nil {
		controller = NewController()
	}

	lifecycle := &Lifecycle{StartedAt: clock().UTC()}
	summary := Summary{
		Traces:    make([]TraceSummary, len(opts.Traces)),
		Lifecycle: lifecycle,
	}

	concurrency := opts.Config.Replay.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, trace := range opts.Traces {
		i, trace := i, trace
		g.Go(func() error {
			ts := replayTrace(gctx, opts, gestureOpts, controller, trace)
			summary.Traces[i] = ts
			if ts.Err != nil {
				runLog.write(trace.Name, "failed: %v", ts.Err)
				opts.Logger.Error("trace replay failed", "trace", trace.Name, "error", ts.Err)
				return fmt.Errorf("replay %s: %w", trace.Name, ts.Err)
			}
			res := ts.Result
			runLog.write(trace.Name, "events=%d left=%d middle=%d right=%d ended=%d failed=%d",
				res.EventCount, res.Taps[gesture.Left], res.Taps[gesture.Middle], res.Taps[gesture.Right], res.Ended, res.Failed)
			opts.Logger.Info("trace replay complete", "trace", trace.Name, "events", res.EventCount, "taps", res.TotalTaps(), "outcomes", ts.OutcomesPath)
			return nil
		})
	}
	runErr := g.Wait()

	lifecycle.FinishedAt = clock().UTC()
	lifecycle.ControllerTimeline = controller.Timeline()
	switch {
	case runErr == nil:
		lifecycle.TerminationCause = "completed"
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		lifecycle.TerminationCause = "cancelled"
	default:
		lifecycle.TerminationCause = "error"
	}

	if runErr != nil {
		controller.Kill(runErr)
		return summary, runErr
	}
	return summary, nil
}

func replayTrace(ctx context.Context, opts Options, gestureOpts gesture.Options, controller *Controller, trace Trace) TraceSummary {
	ts := TraceSummary{Name: trace.Name, OutcomesPath: opts.Layout.OutcomesPath(trace.Name)}
	if trace.Source == nil {
		ts.Err = errors.New("trace has no event source")
		return ts
	}

	replayer, err := events.NewReplayer(events.Options{
		Gesture:   gestureOpts,
		AutoReset: opts.Config.Replay.AutoReset,
		Gate:      controller,
		Logger:    opts.Logger.With("trace", trace.Name),
		Observe: func(c *gesture.Classifier) {
			if opts.Metrics != nil {
				opts.Metrics.Observe(c)
			}
		},
	})
	if err != nil {
		ts.Err = fmt.Errorf("initialise replayer: %w", err)
		return ts
	}

	out, err := os.OpenFile(ts.OutcomesPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		ts.Err = fmt.Errorf("create outcomes file: %w", err)
		return ts
	}

	res, err := replayer.Replay(ctx, trace.Source, out)
	ts.Result = res
	if closeErr := out.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("close outcomes file: %w", closeErr)
	}
	ts.Err = err
	return ts
}

// replayLog serialises run log lines written by concurrent replays.
type replayLog struct {
	mu    sync.Mutex
	file  *os.File
	clock func() time.Time
}

func (l *replayLog) write(trace, message string, args ...any) {
	if l == nil || l.file == nil {
		return
	}
	formatted := message
	if len(args) > 0 {
		formatted = fmt.Sprintf(message, args...)
	}
	line := fmt.Sprintf("[%s] trace=%s %s\n", l.clock().UTC().Format(time.RFC3339), trace, formatted)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.file.WriteString(line)
}
