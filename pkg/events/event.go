package events

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/offlinefirst/tiptap/pkg/gesture"
)

// Phase is the touch lifecycle step an event reports.
type Phase string

const (
	PhaseBegan     Phase = "began"
	PhaseMoved     Phase = "moved"
	PhaseEnded     Phase = "ended"
	PhaseCancelled Phase = "cancelled"
	// PhaseReset asks the host to reset the recognizer; it carries no touches.
	PhaseReset Phase = "reset"
)

// Valid reports whether the phase is one the replayer understands.
func (p Phase) Valid() bool {
	switch p {
	case PhaseBegan, PhaseMoved, PhaseEnded, PhaseCancelled, PhaseReset:
		return true
	}
	return false
}

// Touch is one finger contact with its current position.
type Touch struct {
	ID gesture.TouchID `json:"id"`
	X  float64         `json:"x"`
	Y  float64         `json:"y"`
}

// Event describes a batch of touches sharing a lifecycle phase. Time is the
// monotonic event timestamp in seconds.
type Event struct {
	Time    float64 `json:"t"`
	Phase   Phase   `json:"phase"`
	Touches []Touch `json:"touches,omitempty"`
}

// Timestamp converts the event time to a duration since the stream epoch.
func (e Event) Timestamp() time.Duration {
	return time.Duration(math.Round(e.Time * float64(time.Second)))
}

// IDs lists the touch identifiers carried by the event.
func (e Event) IDs() []gesture.TouchID {
	ids := make([]gesture.TouchID, len(e.Touches))
	for i, touch := range e.Touches {
		ids[i] = touch.ID
	}
	return ids
}

// Validate checks the event can be dispatched.
func (e Event) Validate() error {
	if !e.Phase.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPhase, string(e.Phase))
	}
	if math.IsNaN(e.Time) || math.IsInf(e.Time, 0) || e.Time < 0 {
		return fmt.Errorf("invalid event time %v", e.Time)
	}
	if e.Phase != PhaseReset && len(e.Touches) == 0 {
		return fmt.Errorf("%s event carries no touches", e.Phase)
	}
	return nil
}

// EventSource emits touch events in delivery order.
type EventSource interface {
	Stream(ctx context.Context, emit func(Event) error) error
}

// EventSourceFunc adapts a function literal to the EventSource interface.
type EventSourceFunc func(ctx context.Context, emit func(Event) error) error

// Stream calls the underlying function.
func (f EventSourceFunc) Stream(ctx context.Context, emit func(Event) error) error {
	return f(ctx, emit)
}

// SliceSource replays a fixed list of events.
type SliceSource []Event

// Stream emits each event in order, stopping early on cancellation.
func (s SliceSource) Stream(ctx context.Context, emit func(Event) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, event := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(event); err != nil {
			return err
		}
	}
	return nil
}
