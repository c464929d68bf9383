// Package main provides the entry point for the forge CLI.
package main

import (
	"context"
	"os"

	"github.com/mrz1836/forge/internal/signal"
)

// Build information set at build time via ldflags.
//
//nolint:gochecknoglobals // ldflags injection targets
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	handler := signal.NewHandler(context.Background())
	defer handler.Stop()

	if err := execute(handler.Context(), buildInfo{version: version, commit: commit, date: date}); err != nil {
		os.Exit(1)
	}
}
