package gesture

import "fmt"

// State is the recognizer lifecycle state reported to the host.
type State int

const (
	StatePossible State = iota
	StateBegan
	StateChanged
	StateFailed
	StateEnded
)

var stateNames = [...]string{
	StatePossible: "possible",
	StateBegan:    "began",
	StateChanged:  "changed",
	StateFailed:   "failed",
	StateEnded:    "ended",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether the state requires a Reset before reuse.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateEnded
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Classification is the position of a tap relative to the resting fingers.
type Classification int

const (
	Left Classification = iota
	Middle
	Right
)

var classificationNames = [...]string{
	Left:   "left",
	Middle: "middle",
	Right:  "right",
}

// Classifications lists every classification in display order.
func Classifications() []Classification {
	return []Classification{Left, Middle, Right}
}

func (c Classification) String() string {
	if c < 0 || int(c) >= len(classificationNames) {
		return fmt.Sprintf("classification(%d)", int(c))
	}
	return classificationNames[c]
}

// MarshalText encodes the classification by name.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a classification name.
func (c *Classification) UnmarshalText(text []byte) error {
	for i, name := range classificationNames {
		if name == string(text) {
			*c = Classification(i)
			return nil
		}
	}
	return fmt.Errorf("unknown classification %q", string(text))
}
