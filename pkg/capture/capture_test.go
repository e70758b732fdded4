package capture

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinefirst/tiptap/pkg/config"
	"github.com/offlinefirst/tiptap/pkg/events"
	"github.com/offlinefirst/tiptap/pkg/gesture"
	"github.com/offlinefirst/tiptap/pkg/logging"
	"github.com/offlinefirst/tiptap/pkg/metrics"
	"github.com/offlinefirst/tiptap/pkg/runmanifest"
)

func prepareLayout(t *testing.T) runmanifest.Layout {
	t.Helper()
	layout := runmanifest.BuildLayout(t.TempDir(), "test")
	require.NoError(t, runmanifest.EnsureFilesystem(layout))
	return layout
}

func TestRunReplaysTracesIndependently(t *testing.T) {
	cfg := config.Default()
	layout := prepareLayout(t)
	recorder := metrics.NewRecorder()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	traces := []Trace{
		{Name: "first.jsonl", Source: events.SyntheticSource{}},
		{Name: "second.jsonl", Source: events.SyntheticSource{Start: 100}},
		{Name: "third.jsonl", Source: events.SyntheticSource{Start: 7}},
	}
	summary, err := Run(context.Background(), Options{
		Config:  cfg,
		Layout:  layout,
		Logger:  logging.Discard(),
		Clock:   func() time.Time { return base },
		Metrics: recorder,
		Traces:  traces,
	})
	require.NoError(t, err)
	require.Len(t, summary.Traces, 3)

	for i, ts := range summary.Traces {
		assert.Equal(t, traces[i].Name, ts.Name)
		assert.NoError(t, ts.Err)
		assert.Equal(t, 16, ts.Result.EventCount)
		assert.Equal(t, 1, ts.Result.Taps[gesture.Left])

		data, err := os.ReadFile(ts.OutcomesPath)
		require.NoError(t, err)
		assert.Equal(t, 7, strings.Count(string(data), "\n"))
	}

	require.NotNil(t, summary.Lifecycle)
	assert.Equal(t, "completed", summary.Lifecycle.TerminationCause)
	assert.Equal(t, base, summary.Lifecycle.StartedAt)

	statuses := summary.Statuses()
	require.Len(t, statuses, 3)
	assert.Equal(t, runmanifest.TraceStateCompleted, statuses[0].State)
	assert.Equal(t, map[string]int{"left": 1, "middle": 1, "right": 1}, statuses[0].Taps)

	runLog, err := os.ReadFile(layout.LogPath)
	require.NoError(t, err)
	for _, trace := range traces {
		assert.Contains(t, string(runLog), "trace="+trace.Name)
	}

	reg := recorder.Registry()
	count, err := testutil.GatherAndCount(reg, "tiptap_taps_recognized_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRunReportsTraceErrors(t *testing.T) {
	layout := prepareLayout(t)
	boom := errors.New("device unplugged")

	summary, err := Run(context.Background(), Options{
		Config: config.Default(),
		Layout: layout,
		Logger: logging.Discard(),
		Traces: []Trace{{
			Name: "broken",
			Source: events.EventSourceFunc(func(ctx context.Context, emit func(events.Event) error) error {
				return boom
			}),
		}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, "error", summary.Lifecycle.TerminationCause)

	statuses := summary.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, runmanifest.TraceStateErrored, statuses[0].State)
	assert.Contains(t, statuses[0].Message, "device unplugged")
}

func TestRunRejectsDuplicateTraceNames(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Config: config.Default(),
		Layout: prepareLayout(t),
		Logger: logging.Discard(),
		Traces: []Trace{
			{Name: "a/session.jsonl", Source: events.SyntheticSource{}},
			{Name: "b/session.jsonl", Source: events.SyntheticSource{}},
		},
	})
	require.Error(t, err)
}

func TestRunRequiresLoggerAndTraces(t *testing.T) {
	_, err := Run(context.Background(), Options{Config: config.Default()})
	assert.Error(t, err)

	_, err = Run(context.Background(), Options{Config: config.Default(), Logger: logging.Discard()})
	assert.Error(t, err)
}

func TestRunStopsWhenControllerKilled(t *testing.T) {
	controller := NewController()
	stop := errors.New("operator abort")
	controller.Kill(stop)

	summary, err := Run(context.Background(), Options{
		Config:  config.Default(),
		Layout:  prepareLayout(t),
		Logger:  logging.Discard(),
		Control: controller,
		Traces:  []Trace{{Name: "synthetic", Source: events.SyntheticSource{}}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, stop))
	assert.Equal(t, 0, summary.Traces[0].Result.EventCount)
	require.NotEmpty(t, summary.Lifecycle.ControllerTimeline)
	assert.Equal(t, "stopping", summary.Lifecycle.ControllerTimeline[0].State)
}
