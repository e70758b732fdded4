package events

import (
	"context"

	"github.com/offlinefirst/tiptap/pkg/gesture"
)

// SyntheticSource emits a deterministic set of gestures: a left then right
// tip-tap around one resting finger, a middle tip-tap between two resting
// fingers, a held finger dragged past the drag distance and a lone tap.
type SyntheticSource struct {
	// Start offsets every timestamp, in seconds.
	Start float64
}

func touch(id gesture.TouchID, x, y float64) Touch {
	return Touch{ID: id, X: x, Y: y}
}

// Timeline returns the events Stream emits.
func (s SyntheticSource) Timeline() []Event {
	at := func(t float64) float64 { return s.Start + t }
	return []Event{
		{Time: at(0), Phase: PhaseBegan, Touches: []Touch{touch(1, 300, 400)}},
		{Time: at(0.40), Phase: PhaseBegan, Touches: []Touch{touch(2, 200, 300)}},
		{Time: at(0.45), Phase: PhaseEnded, Touches: []Touch{touch(2, 202, 301)}},
		{Time: at(0.60), Phase: PhaseBegan, Touches: []Touch{touch(3, 420, 300)}},
		{Time: at(0.66), Phase: PhaseEnded, Touches: []Touch{touch(3, 421, 302)}},
		{Time: at(1.00), Phase: PhaseEnded, Touches: []Touch{touch(1, 301, 401)}},

		{Time: at(2.00), Phase: PhaseBegan, Touches: []Touch{touch(4, 200, 400), touch(5, 400, 400)}},
		{Time: at(2.30), Phase: PhaseMoved, Touches: []Touch{touch(4, 205, 404)}},
		{Time: at(2.50), Phase: PhaseBegan, Touches: []Touch{touch(6, 300, 300)}},
		{Time: at(2.55), Phase: PhaseEnded, Touches: []Touch{touch(6, 300, 300)}},
		{Time: at(3.00), Phase: PhaseEnded, Touches: []Touch{touch(4, 205, 404), touch(5, 400, 400)}},

		{Time: at(4.00), Phase: PhaseBegan, Touches: []Touch{touch(7, 100, 100)}},
		{Time: at(4.50), Phase: PhaseMoved, Touches: []Touch{touch(7, 100, 230)}},
		{Time: at(4.80), Phase: PhaseEnded, Touches: []Touch{touch(7, 100, 230)}},

		{Time: at(6.00), Phase: PhaseBegan, Touches: []Touch{touch(8, 50, 50)}},
		{Time: at(6.10), Phase: PhaseEnded, Touches: []Touch{touch(8, 50, 50)}},
	}
}

// Stream emits the timeline in order.
func (s SyntheticSource) Stream(ctx context.Context, emit func(Event) error) error {
	return SliceSource(s.Timeline()).Stream(ctx, emit)
}
