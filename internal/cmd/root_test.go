package cmd

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/offlinefirst/tiptap/internal/buildinfo"
	"github.com/offlinefirst/tiptap/pkg/events"
)

func newTestRoot() (*RootCommand, *bytes.Buffer, *bytes.Buffer) {
	rc := NewRootCommand()
	var stdout, stderr bytes.Buffer
	rc.stdout = &stdout
	rc.stderr = &stderr
	return rc, &stdout, &stderr
}

func TestRootHelpListsCommands(t *testing.T) {
	rc, stdout, _ := newTestRoot()
	if err := rc.Execute(nil); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	for _, name := range []string{"replay", "serve", "synth", "version"} {
		if !strings.Contains(stdout.String(), name) {
			t.Fatalf("expected %q in help output, got %q", name, stdout.String())
		}
	}
}

func TestRootUnknownCommand(t *testing.T) {
	rc, _, stderr := newTestRoot()
	if err := rc.Execute([]string{"record"}); err == nil {
		t.Fatalf("expected error for unknown command")
	}
	if !strings.Contains(stderr.String(), `Unknown command "record"`) {
		t.Fatalf("expected unknown command message, got %q", stderr.String())
	}
}

func TestVersionCommand(t *testing.T) {
	buildinfo.SetVersion("v1.2.3")
	defer buildinfo.SetVersion("dev")

	origVersion, origGOOS, origRevision := runtimeVersion, runtimeGOOS, revision
	runtimeVersion = func() string { return "go1.25.1" }
	runtimeGOOS = func() string { return "linux" }
	revision = func() string { return "abc123" }
	defer func() { runtimeVersion, runtimeGOOS, revision = origVersion, origGOOS, origRevision }()

	rc, stdout, _ := newTestRoot()
	if err := rc.Execute([]string{"version"}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if got := strings.TrimSpace(stdout.String()); got != "v1.2.3@abc123 (go1.25.1/linux)" {
		t.Fatalf("unexpected version output %q", got)
	}
}

func TestSynthWritesReplayableTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synthetic.jsonl")
	rc, _, stderr := newTestRoot()
	if err := rc.Execute([]string{"synth", "-o", path, "-start", "2.5"}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !strings.Contains(stderr.String(), "Wrote 16 events") {
		t.Fatalf("expected write summary, got %q", stderr.String())
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open trace: %v", err)
	}
	defer file.Close()
	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines++
	}
	if lines != 16 {
		t.Fatalf("expected 16 lines, got %d", lines)
	}

	var first events.Event
	err = events.OpenTraceFile(path).Stream(context.Background(), func(e events.Event) error {
		if first.Phase == "" {
			first = e
		}
		return nil
	})
	if err != nil {
		t.Fatalf("stream trace: %v", err)
	}
	if first.Time != 2.5 {
		t.Fatalf("expected offset start time, got %v", first.Time)
	}
}
