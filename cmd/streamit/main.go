package main

import (
	"fmt"
	"os"

	"github.com/yxiaowhut/streamit/cmd/streamit/commands"

	// Registers the Prometheus metric constructors.
	_ "github.com/yxiaowhut/streamit/pkg/metrics/prometheus"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
