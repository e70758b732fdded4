package cmd

import (
	"flag"
	"fmt"
	"io"
)

func newVersionCommand() command {
	return command{
		name:        "version",
		description: "Print the build version, VCS revision and Go runtime",
		skipInit:    true,
		run: func(fs *flag.FlagSet, args []string, _ *AppContext, stdout io.Writer, _ io.Writer) error {
			_, err := fmt.Fprintln(stdout, versionString())
			return err
		},
	}
}
