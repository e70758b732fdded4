package cmd

import (
	"bytes"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/offlinefirst/tiptap/pkg/config"
	"github.com/offlinefirst/tiptap/pkg/events"
	"github.com/offlinefirst/tiptap/pkg/runmanifest"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func replayFlags(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	newReplayCommand().configure(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func writeSyntheticTrace(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create trace: %v", err)
	}
	defer file.Close()
	if _, err := events.WriteTrace(context.Background(), file, events.SyntheticSource{}); err != nil {
		t.Fatalf("write trace: %v", err)
	}
	return path
}

func TestReplayCommandPlanOnly(t *testing.T) {
	ctx := &AppContext{Config: config.Default(), Logger: newTestLogger()}

	fs := replayFlags(t, "-plan-only", "session.jsonl")
	var stdout bytes.Buffer
	if err := runReplay(fs, fs.Args(), ctx, &stdout, io.Discard); err != nil {
		t.Fatalf("runReplay returned error: %v", err)
	}

	for _, want := range []string{"Resolved configuration", "recognizer.source_taps: 1..unbounded", "trace: session.jsonl"} {
		if !bytes.Contains(stdout.Bytes(), []byte(want)) {
			t.Fatalf("expected %q in plan output, got %q", want, stdout.String())
		}
	}
}

func TestReplayCommandRequiresTraces(t *testing.T) {
	ctx := &AppContext{Config: config.Default(), Logger: newTestLogger()}
	fs := replayFlags(t)
	if err := runReplay(fs, nil, ctx, io.Discard, io.Discard); err == nil {
		t.Fatalf("expected error without trace arguments")
	}
}

func TestReplayCommandWritesManifest(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.RunsDir = filepath.Join(t.TempDir(), "ignored")
	ctx := &AppContext{Config: cfg, Logger: newTestLogger()}

	traceDir := t.TempDir()
	first := writeSyntheticTrace(t, traceDir, "first.jsonl")
	second := writeSyntheticTrace(t, traceDir, "second.jsonl")
	runsDir := t.TempDir()

	now := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)
	origTime := timeNow
	timeNow = func() time.Time { return now }
	defer func() { timeNow = origTime }()

	origHost := hostname
	hostname = func() (string, error) { return "test-host", nil }
	defer func() { hostname = origHost }()

	fs := replayFlags(t, "-out", runsDir, first, second)
	var stdout bytes.Buffer
	if err := runReplay(fs, fs.Args(), ctx, &stdout, io.Discard); err != nil {
		t.Fatalf("runReplay returned error: %v", err)
	}

	layout := runmanifest.BuildLayout(runsDir, now.Format("20060102_150405"))
	man, err := runmanifest.Load(layout.ManifestPath)
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	if man.Status.State != "completed" {
		t.Fatalf("expected completed state, got %q", man.Status.State)
	}
	if man.Status.Termination != "completed" {
		t.Fatalf("expected completed termination, got %q", man.Status.Termination)
	}
	if man.Status.StartedAt == nil || man.Status.EndedAt == nil {
		t.Fatalf("expected lifecycle timestamps in manifest")
	}
	if man.Hostname != "test-host" {
		t.Fatalf("expected hostname recorded, got %q", man.Hostname)
	}
	if len(man.Status.Traces) != 2 {
		t.Fatalf("expected two trace statuses, got %d", len(man.Status.Traces))
	}
	for _, status := range man.Status.Traces {
		if status.State != runmanifest.TraceStateCompleted {
			t.Fatalf("trace %s: expected completed, got %q (%s)", status.Name, status.State, status.Message)
		}
		if status.Events != 16 || status.Ended != 2 || status.Failed != 2 {
			t.Fatalf("trace %s: unexpected counts %+v", status.Name, status)
		}
		if _, err := os.Stat(status.Outcomes); err != nil {
			t.Fatalf("trace %s: outcomes file missing: %v", status.Name, err)
		}
	}

	if _, err := os.Stat(cfg.Paths.RunsDir); !os.IsNotExist(err) {
		t.Fatalf("expected -out to override the configured runs directory")
	}
	if !bytes.Contains(stdout.Bytes(), []byte("first.jsonl: 16 events, taps left=1 middle=1 right=1")) {
		t.Fatalf("expected trace summary, got %q", stdout.String())
	}
	if !bytes.Contains(stdout.Bytes(), []byte("Lifecycle:")) {
		t.Fatalf("expected lifecycle summary in output, got %q", stdout.String())
	}
}

func TestReplayCommandRecordsFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.RunsDir = t.TempDir()
	ctx := &AppContext{Config: cfg, Logger: newTestLogger()}

	bad := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(bad, []byte("{\"t\":0,\"phase\":\"hover\",\"touches\":[{\"id\":1}]}\n"), 0o644); err != nil {
		t.Fatalf("write trace: %v", err)
	}

	now := time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC)
	origTime := timeNow
	timeNow = func() time.Time { return now }
	defer func() { timeNow = origTime }()

	fs := replayFlags(t, bad)
	if err := runReplay(fs, fs.Args(), ctx, io.Discard, io.Discard); err == nil {
		t.Fatalf("expected replay error for unknown phase")
	}

	layout := runmanifest.BuildLayout(cfg.Paths.RunsDir, now.Format("20060102_150405"))
	man, err := runmanifest.Load(layout.ManifestPath)
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	if man.Status.State != "failed" {
		t.Fatalf("expected failed state, got %q", man.Status.State)
	}
	if len(man.Status.Traces) != 1 || man.Status.Traces[0].State != runmanifest.TraceStateErrored {
		t.Fatalf("expected errored trace status, got %+v", man.Status.Traces)
	}
}
