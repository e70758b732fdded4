package gesture

import (
	"fmt"
	"sort"
	"time"

	"github.com/offlinefirst/tiptap/pkg/geometry"
)

// TouchID identifies one finger contact for as long as it stays down. Hosts
// assign it at touch-begin and reuse it for the matching move/end events.
type TouchID uint64

// Surface resolves the current position of a touch.
type Surface interface {
	Location(id TouchID) (geometry.Point, bool)
}

// TouchRecord is the snapshot captured when a touch begins.
type TouchRecord struct {
	StartTime     time.Duration
	StartPosition geometry.Point
}

// Classifier recognises tip-tap gestures from touch lifecycle events.
//
// Event handlers never return errors: anomalies surface as state transitions.
// Handlers are no-ops while no Surface is attached or while the state is
// terminal; Reset must be called to recognise again after Failed or Ended.
type Classifier struct {
	opts    Options
	surface Surface

	state    State
	active   map[TouchID]TouchRecord
	tapCount int

	stateListeners []func(State)
	tapListeners   []func(Classification)
}

// New validates opts and returns a classifier in the Possible state.
func New(opts Options) (*Classifier, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{
		opts:   opts,
		state:  StatePossible,
		active: make(map[TouchID]TouchRecord),
	}, nil
}

// Attach connects the classifier to the surface that resolves touch positions.
func (c *Classifier) Attach(surface Surface) {
	c.surface = surface
}

// Detach disconnects the surface; subsequent events are ignored.
func (c *Classifier) Detach() {
	c.surface = nil
}

// OnStateChanged registers fn to be called after every state assignment.
func (c *Classifier) OnStateChanged(fn func(State)) {
	if fn != nil {
		c.stateListeners = append(c.stateListeners, fn)
	}
}

// OnTapRecognized registers fn to be called for every recognised tip-tap.
func (c *Classifier) OnTapRecognized(fn func(Classification)) {
	if fn != nil {
		c.tapListeners = append(c.tapListeners, fn)
	}
}

func (c *Classifier) Options() Options { return c.opts }
func (c *Classifier) State() State     { return c.state }

// TapCount reports the recognitions since the last reset.
func (c *Classifier) TapCount() int { return c.tapCount }

// ActiveCount reports how many touches are currently down.
func (c *Classifier) ActiveCount() int { return len(c.active) }

// ActiveTouches returns the IDs of touches currently down in ascending order.
func (c *Classifier) ActiveTouches() []TouchID {
	ids := make([]TouchID, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ActivePoints returns the current positions of the active touches, ordered by ID.
func (c *Classifier) ActivePoints() []geometry.Point {
	ids := c.ActiveTouches()
	points := make([]geometry.Point, 0, len(ids))
	for _, id := range ids {
		points = append(points, c.locate(id, c.active[id]))
	}
	return points
}

// Reset returns the classifier to Possible and forgets every touch.
func (c *Classifier) Reset() {
	clear(c.active)
	c.tapCount = 0
	c.setState(StatePossible)
}

// Began records the start snapshot of each newly down touch.
func (c *Classifier) Began(ids []TouchID, at time.Duration) {
	if !c.accepting() {
		return
	}

	for _, id := range ids {
		position, _ := c.surface.Location(id)
		c.active[id] = TouchRecord{StartTime: at, StartPosition: position}
	}

	if c.state == StatePossible {
		c.setState(StateBegan)
	} else {
		c.setState(StateChanged)
	}
}

// Moved fails the gesture as soon as a touch held past the tap duration has
// drifted further than the drag distance.
func (c *Classifier) Moved(ids []TouchID, at time.Duration) {
	if !c.accepting() {
		return
	}

	for _, id := range ids {
		record, ok := c.active[id]
		if !ok || at-record.StartTime <= c.opts.MaximumTapDuration {
			continue
		}
		if geometry.Distance(record.StartPosition, c.locate(id, record)) > c.opts.MinimumDragDistance {
			c.setState(StateFailed)
			return
		}
	}

	c.setState(StateChanged)
}

// Ended splits the touches that lifted into taps and held touches and runs
// the recognition test against every touch that was down.
func (c *Classifier) Ended(ids []TouchID, at time.Duration) {
	if !c.accepting() {
		return
	}

	sources := make(map[TouchID]TouchRecord, len(c.active))
	for id, record := range c.active {
		sources[id] = record
	}

	var taps []TouchID
	for _, id := range ids {
		if record, ok := c.active[id]; ok && at-record.StartTime < c.opts.MaximumTapDuration {
			taps = append(taps, id)
			delete(sources, id)
		}
		delete(c.active, id)
	}

	if len(taps) > 0 && c.satisfiesCounts(len(taps), len(sources)) {
		tapPoints := make([]geometry.Point, 0, len(taps))
		for _, id := range taps {
			tapPoints = append(tapPoints, c.locate(id, TouchRecord{}))
		}
		sourcePoints := make([]geometry.Point, 0, len(sources))
		for id, record := range sources {
			sourcePoints = append(sourcePoints, c.locate(id, record))
		}

		tapPoint, _ := geometry.Centroid(tapPoints)
		classification := classify(tapPoint, geometry.BoundingBox(sourcePoints))

		c.tapCount++
		c.setState(StateChanged)
		for _, fn := range c.tapListeners {
			fn(classification)
		}
		return
	}

	if len(c.active) > 0 {
		c.setState(StateChanged)
		return
	}
	if c.tapCount > 0 || c.opts.LiftPolicy == LiftPolicyAlwaysEnd {
		c.setState(StateEnded)
	} else {
		c.setState(StateFailed)
	}
}

// Cancelled is handled exactly like Ended.
func (c *Classifier) Cancelled(ids []TouchID, at time.Duration) {
	c.Ended(ids, at)
}

func (c *Classifier) String() string {
	return fmt.Sprintf("gesture.Classifier{state=%s active=%d taps=%d}", c.state, len(c.active), c.tapCount)
}

func (c *Classifier) accepting() bool {
	return c.surface != nil && !c.state.Terminal()
}

func (c *Classifier) satisfiesCounts(tapCount, sourceCount int) bool {
	return c.opts.TipTaps.Contains(tapCount) &&
		c.opts.SourceTaps.Contains(sourceCount) &&
		c.opts.CombinedTaps.Contains(tapCount+sourceCount)
}

// locate falls back to the start position when the surface no longer knows the touch.
func (c *Classifier) locate(id TouchID, record TouchRecord) geometry.Point {
	if c.surface != nil {
		if p, ok := c.surface.Location(id); ok {
			return p
		}
	}
	return record.StartPosition
}

func (c *Classifier) setState(s State) {
	c.state = s
	for _, fn := range c.stateListeners {
		fn(s)
	}
}

// classify places tapPoint against the horizontal extent of source. Edges
// count as outside, and a null source rectangle yields Middle.
func classify(tapPoint geometry.Point, source geometry.Rect) Classification {
	switch {
	case source.IsNull():
		return Middle
	case tapPoint.X <= source.MinX():
		return Left
	case tapPoint.X >= source.MaxX():
		return Right
	default:
		return Middle
	}
}
