package events

import (
	"github.com/offlinefirst/tiptap/pkg/geometry"
	"github.com/offlinefirst/tiptap/pkg/gesture"
)

// Tracker is a gesture.Surface backed by the last position reported for each
// touch. Hosts update it before dispatching an event and forget lifted touches
// afterwards.
type Tracker struct {
	positions map[gesture.TouchID]geometry.Point
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{positions: make(map[gesture.TouchID]geometry.Point)}
}

// Location implements gesture.Surface.
func (t *Tracker) Location(id gesture.TouchID) (geometry.Point, bool) {
	p, ok := t.positions[id]
	return p, ok
}

// Apply records the positions carried by event.
func (t *Tracker) Apply(event Event) {
	for _, touch := range event.Touches {
		t.positions[touch.ID] = geometry.Point{X: touch.X, Y: touch.Y}
	}
}

// Forget drops the touches carried by an end or cancel event.
func (t *Tracker) Forget(event Event) {
	for _, touch := range event.Touches {
		delete(t.positions, touch.ID)
	}
}

// Clear drops every tracked touch.
func (t *Tracker) Clear() {
	clear(t.positions)
}

// Len reports how many touches are down according to the host.
func (t *Tracker) Len() int { return len(t.positions) }
