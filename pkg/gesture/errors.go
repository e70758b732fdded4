package gesture

import "errors"

// ErrInvalidOptions indicates a recognizer configuration that cannot be satisfied.
var ErrInvalidOptions = errors.New("invalid gesture options")
