package events

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// maxTraceLine bounds a single JSONL record.
const maxTraceLine = 1 << 20

// TraceSource streams events decoded from a JSONL touch trace.
type TraceSource struct {
	open func() (io.ReadCloser, error)
	name string
}

// NewTraceSource reads events from r. The reader is consumed once.
func NewTraceSource(name string, r io.Reader) TraceSource {
	return TraceSource{
		name: name,
		open: func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
	}
}

// OpenTraceFile returns a source that reads the trace at path on every Stream call.
func OpenTraceFile(path string) TraceSource {
	return TraceSource{
		name: path,
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// Name identifies the trace in logs and manifests.
func (s TraceSource) Name() string { return s.name }

// Stream decodes one event per non-empty line and emits it.
func (s TraceSource) Stream(ctx context.Context, emit func(Event) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rc, err := s.open()
	if err != nil {
		return fmt.Errorf("open trace %q: %w", s.name, err)
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxTraceLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			return fmt.Errorf("%s:%d: decode event: %w", s.name, lineNo, err)
		}
		if err := event.Validate(); err != nil {
			return fmt.Errorf("%s:%d: %w", s.name, lineNo, err)
		}
		if err := emit(event); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read trace %q: %w", s.name, err)
	}
	return nil
}

// WriteTrace encodes every event from source to w as JSONL.
func WriteTrace(ctx context.Context, w io.Writer, source EventSource) (int, error) {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)

	count := 0
	err := source.Stream(ctx, func(event Event) error {
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("write trace event: %w", err)
		}
		count++
		return nil
	})
	return count, err
}
