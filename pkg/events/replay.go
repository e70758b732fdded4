package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/offlinefirst/tiptap/pkg/gesture"
)

// Outcome kinds written to the replay sink.
const (
	OutcomeTap    = "tap"
	OutcomeEnded  = "ended"
	OutcomeFailed = "failed"
)

// Gate blocks event delivery while a replay is paused.
type Gate interface {
	Wait(ctx context.Context) error
}

// Options controls replay behaviour.
type Options struct {
	Gesture gesture.Options
	// AutoReset resets the classifier once it is terminal and the host reports
	// no touches down, so one stream can carry many gestures.
	AutoReset bool
	Gate      Gate
	Logger    *slog.Logger
	// Observe is called with the classifier before any event is dispatched.
	Observe func(*gesture.Classifier)
}

// Outcome is a recognised tap or a gesture reaching a terminal state.
type Outcome struct {
	Index          int                     `json:"index"`
	Time           float64                 `json:"t"`
	Kind           string                  `json:"kind"`
	Classification *gesture.Classification `json:"classification,omitempty"`
	TapCount       int                     `json:"tap_count"`
}

// Result summarises a replayed stream.
type Result struct {
	EventCount   int
	OutcomeCount int
	Taps         map[gesture.Classification]int
	Ended        int
	Failed       int
}

// TotalTaps sums the recognised taps across classifications.
func (r Result) TotalTaps() int {
	total := 0
	for _, n := range r.Taps {
		total += n
	}
	return total
}

// Replayer drives a gesture classifier from an EventSource.
type Replayer struct {
	opts   Options
	logger *slog.Logger
}

// NewReplayer validates options and constructs a replayer.
func NewReplayer(opts Options) (*Replayer, error) {
	if err := opts.Gesture.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Replayer{opts: opts, logger: logger}, nil
}

// Replay feeds every event from source into a fresh classifier and writes
// each outcome as a JSON line to sink. A nil sink discards outcomes.
func (r *Replayer) Replay(ctx context.Context, source EventSource, sink io.Writer) (Result, error) {
	if source == nil {
		return Result{}, errors.New("event source must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if sink == nil {
		sink = io.Discard
	}

	classifier, err := gesture.New(r.opts.Gesture)
	if err != nil {
		return Result{}, err
	}
	tracker := NewTracker()
	classifier.Attach(tracker)
	if r.opts.Observe != nil {
		r.opts.Observe(classifier)
	}

	encoder := json.NewEncoder(sink)
	encoder.SetEscapeHTML(false)

	result := Result{Taps: make(map[gesture.Classification]int)}
	var current Event
	var writeErr error
	record := func(outcome Outcome) {
		outcome.Index = result.EventCount - 1
		outcome.Time = current.Time
		outcome.TapCount = classifier.TapCount()
		result.OutcomeCount++
		if writeErr == nil {
			if err := encoder.Encode(outcome); err != nil {
				writeErr = fmt.Errorf("write outcome: %w", err)
			}
		}
	}

	classifier.OnTapRecognized(func(c gesture.Classification) {
		result.Taps[c]++
		record(Outcome{Kind: OutcomeTap, Classification: &c})
	})
	classifier.OnStateChanged(func(s gesture.State) {
		switch s {
		case gesture.StateEnded:
			result.Ended++
			record(Outcome{Kind: OutcomeEnded})
		case gesture.StateFailed:
			result.Failed++
			record(Outcome{Kind: OutcomeFailed})
		}
	})

	streamErr := source.Stream(ctx, func(event Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.opts.Gate != nil {
			if err := r.opts.Gate.Wait(ctx); err != nil {
				return err
			}
		}
		if err := event.Validate(); err != nil {
			return fmt.Errorf("event %d: %w", result.EventCount, err)
		}

		current = event
		result.EventCount++
		Dispatch(classifier, tracker, event)
		if writeErr != nil {
			return writeErr
		}

		if r.opts.AutoReset && classifier.State().Terminal() && tracker.Len() == 0 {
			r.logger.Debug("gesture finished, resetting recognizer", "state", classifier.State().String(), "taps", classifier.TapCount(), "t", event.Time)
			classifier.Reset()
		}
		return nil
	})

	if streamErr != nil {
		if errors.Is(streamErr, context.Canceled) || errors.Is(streamErr, context.DeadlineExceeded) {
			return result, streamErr
		}
		return result, fmt.Errorf("replay events: %w", streamErr)
	}

	r.logger.Info("replay complete",
		"events", result.EventCount,
		"taps", result.TotalTaps(),
		"ended", result.Ended,
		"failed", result.Failed,
	)
	return result, nil
}

// Dispatch updates tracker with the event positions and forwards the event to
// classifier. Lifted touches are forgotten after the classifier has seen them.
func Dispatch(classifier *gesture.Classifier, tracker *Tracker, event Event) {
	at := event.Timestamp()
	switch event.Phase {
	case PhaseBegan:
		tracker.Apply(event)
		classifier.Began(event.IDs(), at)
	case PhaseMoved:
		tracker.Apply(event)
		classifier.Moved(event.IDs(), at)
	case PhaseEnded:
		tracker.Apply(event)
		classifier.Ended(event.IDs(), at)
		tracker.Forget(event)
	case PhaseCancelled:
		tracker.Apply(event)
		classifier.Cancelled(event.IDs(), at)
		tracker.Forget(event)
	case PhaseReset:
		tracker.Clear()
		classifier.Reset()
	}
}
