package main

import (
	"os"

	"github.com/offlinefirst/tiptap/internal/buildinfo"
	"github.com/offlinefirst/tiptap/internal/cmd"
)

// version is set with -ldflags "-X main.version=...".
var version = ""

func main() {
	buildinfo.SetVersion(version)
	root := cmd.NewRootCommand()
	if err := root.Execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
