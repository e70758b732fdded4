package capture

import (
	"context"
	"sync"
	"time"

	"github.com/offlinefirst/tiptap/pkg/runmanifest"
)

// Controller coordinates pause/resume/kill signals across concurrent replays.
// It satisfies events.Gate.
type Controller struct {
	mu       sync.Mutex
	paused   bool
	stopping bool
	stopErr  error
	signal   chan struct{}
	clock    func() time.Time
	timeline []runmanifest.ControllerTimelineEntry
}

// NewController constructs a controller in the running state.
func NewController() *Controller {
	return &Controller{signal: make(chan struct{}), clock: time.Now}
}

// Pause transitions the controller into a paused state.
func (c *Controller) Pause(reason string) {
	c.mu.Lock()
	if !c.paused && !c.stopping {
		c.paused = true
		c.recordLocked("paused", reason)
	}
	c.mu.Unlock()
}

// Resume clears a paused state and notifies waiters.
func (c *Controller) Resume(reason string) {
	c.mu.Lock()
	wasPaused := c.paused
	c.paused = false
	if wasPaused && !c.stopping {
		c.recordLocked("running", reason)
	}
	c.mu.Unlock()
	if wasPaused {
		c.broadcast()
	}
}

// Kill requests replays to stop and propagates an optional error.
func (c *Controller) Kill(err error) {
	c.mu.Lock()
	if !c.stopping {
		c.stopping = true
		reason := ""
		if err != nil {
			reason = err.Error()
		}
		c.recordLocked("stopping", reason)
	}
	if err != nil && c.stopErr == nil {
		c.stopErr = err
	}
	c.mu.Unlock()
	c.broadcast()
}

// Wait blocks until the controller is running or stopping.
func (c *Controller) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		paused := c.paused
		stopping := c.stopping
		stopErr := c.stopErr
		signal := c.signal
		c.mu.Unlock()

		if stopping {
			if stopErr != nil {
				return stopErr
			}
			if ctx != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			return context.Canceled
		}
		if !paused {
			return nil
		}

		if ctx == nil {
			<-signal
			continue
		}

		select {
		case <-ctx.Done():
			c.Kill(ctx.Err())
			return ctx.Err()
		case <-signal:
			continue
		}
	}
}

// State reports the textual state for diagnostics.
func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.stopping:
		return "stopping"
	case c.paused:
		return "paused"
	default:
		return "running"
	}
}

// Timeline returns the recorded state changes in order.
func (c *Controller) Timeline() []runmanifest.ControllerTimelineEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]runmanifest.ControllerTimelineEntry(nil), c.timeline...)
}

func (c *Controller) recordLocked(state, reason string) {
	c.timeline = append(c.timeline, runmanifest.ControllerTimelineEntry{
		State:     state,
		Reason:    reason,
		Timestamp: c.clock().UTC(),
	})
}

// broadcast wakes every waiter; several replays may block on one controller.
func (c *Controller) broadcast() {
	c.mu.Lock()
	close(c.signal)
	c.signal = make(chan struct{})
	c.mu.Unlock()
}
