package events

import "errors"

// ErrUnknownPhase indicates a touch event whose phase cannot be dispatched.
var ErrUnknownPhase = errors.New("unknown touch phase")
