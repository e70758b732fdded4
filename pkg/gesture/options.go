package gesture

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// DefaultMaximumTapDuration separates a tap from a held finger.
	DefaultMaximumTapDuration = 250 * time.Millisecond
	// DefaultMinimumDragDistance is how far a held finger may drift before the gesture fails.
	DefaultMinimumDragDistance = 105.0
)

// Unbounded disables an upper count bound.
const Unbounded = math.MaxInt

// LiftPolicy decides the terminal state once every finger has lifted without
// the final end event producing a recognition.
type LiftPolicy int

const (
	// LiftPolicyByTapCount ends the gesture when at least one tap was
	// recognised since the last reset and fails it otherwise.
	LiftPolicyByTapCount LiftPolicy = iota
	// LiftPolicyAlwaysEnd ends the gesture regardless of the tap count.
	LiftPolicyAlwaysEnd
)

func (p LiftPolicy) String() string {
	switch p {
	case LiftPolicyByTapCount:
		return "by_tap_count"
	case LiftPolicyAlwaysEnd:
		return "always_end"
	default:
		return fmt.Sprintf("lift_policy(%d)", int(p))
	}
}

// ParseLiftPolicy resolves a policy name. An empty name yields the default policy.
func ParseLiftPolicy(name string) (LiftPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "by_tap_count":
		return LiftPolicyByTapCount, nil
	case "always_end":
		return LiftPolicyAlwaysEnd, nil
	default:
		return 0, fmt.Errorf("unknown lift policy %q", name)
	}
}

// Bounds is an inclusive [Required, Maximum] range on a touch count.
type Bounds struct {
	Required int
	Maximum  int
}

// Contains reports whether n lies within the bounds.
func (b Bounds) Contains(n int) bool {
	return n >= b.Required && n <= b.Maximum
}

func (b Bounds) validate(name string) error {
	if b.Required < 0 {
		return fmt.Errorf("%w: required %s taps must not be negative", ErrInvalidOptions, name)
	}
	if b.Maximum < b.Required {
		return fmt.Errorf("%w: maximum %s taps (%d) below required (%d)", ErrInvalidOptions, name, b.Maximum, b.Required)
	}
	return nil
}

// Options configures a Classifier. Options are fixed for the lifetime of a
// classifier instance.
type Options struct {
	MaximumTapDuration  time.Duration
	MinimumDragDistance float64

	SourceTaps   Bounds
	TipTaps      Bounds
	CombinedTaps Bounds

	LiftPolicy LiftPolicy
}

// Default returns one resting finger plus one tapping finger, unbounded above.
func Default() Options {
	return Options{
		MaximumTapDuration:  DefaultMaximumTapDuration,
		MinimumDragDistance: DefaultMinimumDragDistance,
		SourceTaps:          Bounds{Required: 1, Maximum: Unbounded},
		TipTaps:             Bounds{Required: 1, Maximum: Unbounded},
		CombinedTaps:        Bounds{Required: 2, Maximum: Unbounded},
		LiftPolicy:          LiftPolicyByTapCount,
	}
}

// Validate reports configurations that could never behave sensibly.
func (o Options) Validate() error {
	if o.MaximumTapDuration <= 0 {
		return fmt.Errorf("%w: maximum tap duration must be positive", ErrInvalidOptions)
	}
	if o.MinimumDragDistance < 0 || math.IsNaN(o.MinimumDragDistance) {
		return fmt.Errorf("%w: minimum drag distance must not be negative", ErrInvalidOptions)
	}
	if err := o.SourceTaps.validate("source"); err != nil {
		return err
	}
	if err := o.TipTaps.validate("tip"); err != nil {
		return err
	}
	if err := o.CombinedTaps.validate("combined"); err != nil {
		return err
	}
	switch o.LiftPolicy {
	case LiftPolicyByTapCount, LiftPolicyAlwaysEnd:
	default:
		return fmt.Errorf("%w: unknown lift policy %d", ErrInvalidOptions, int(o.LiftPolicy))
	}
	return nil
}
