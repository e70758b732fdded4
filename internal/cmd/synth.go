package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/offlinefirst/tiptap/pkg/events"
)

func newSynthCommand() command {
	return command{
		name:        "synth",
		description: "Write the built-in synthetic touch trace as JSON lines",
		configure: func(fs *flag.FlagSet) {
			fs.String("o", "", "Output file (default: stdout)")
			fs.Float64("start", 0, "Offset applied to every timestamp, in seconds")
		},
		skipInit: true,
		run:      runSynth,
	}
}

func runSynth(fs *flag.FlagSet, args []string, ctx *AppContext, stdout io.Writer, stderr io.Writer) error {
	source := events.SyntheticSource{}
	if f := fs.Lookup("start"); f != nil {
		if getter, ok := f.Value.(flag.Getter); ok {
			source.Start, _ = getter.Get().(float64)
		}
	}

	out := stdout
	path := stringFlag(fs, "o")
	if path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create trace file: %w", err)
		}
		defer file.Close()
		out = file
	}

	n, err := events.WriteTrace(context.Background(), out, source)
	if err != nil {
		return fmt.Errorf("write synthetic trace: %w", err)
	}
	if path != "" {
		fmt.Fprintf(stderr, "Wrote %d events to %s\n", n, path)
	}
	return nil
}
