// Package gesture implements the tip-tap recognizer: while one or more fingers
// rest on a surface, a brief tap by other fingers is classified as landing to
// the left of, between, or to the right of the resting fingers.
//
// A Classifier is driven synchronously by its host, which must serialise event
// delivery. Instances share no state.
package gesture
