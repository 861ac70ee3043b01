package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Overridden at build time via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and build details",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sitepush %s\n", version)
			fmt.Fprintf(out, "- commit: %s\n", commit)
			fmt.Fprintf(out, "- go/version: %s\n", runtime.Version())
			fmt.Fprintf(out, "- os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
