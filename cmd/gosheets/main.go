package main

import (
	"context"
	"os"

	"github.com/3leaps/gosheets/internal/cmd"
)

// Set by ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	os.Exit(cmd.Execute(context.Background()))
}
