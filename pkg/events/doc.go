// Package events adapts host touch streams to the gesture classifier. It
// decodes JSONL touch traces, produces deterministic synthetic sessions for
// tests, tracks live touch positions and replays a stream through a
// classifier while recording every recognised tap.
package events
