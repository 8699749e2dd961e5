package main

import (
	"fmt"
	"os"

	"github.com/javiermolinar/cadence/internal/config"
	"github.com/javiermolinar/cadence/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// the database is opened on first use so that version and config
	// work without one
	app := ui.NewApp(nil, cfg)
	defer func() { _ = app.Close() }()
	return app.Execute()
}
