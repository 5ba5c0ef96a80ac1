package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nhle/draft-responder/internal/export"
	"github.com/nhle/draft-responder/internal/model"
	"github.com/nhle/draft-responder/internal/pipeline"
	"github.com/nhle/draft-responder/internal/ui/run"
)

// runHeadless runs the pipeline once, prints progress to out and writes
// every draft into a single export file.
func runHeadless(ctx context.Context, cfg model.Config, fn run.Func, w *export.Writer, out io.Writer, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("starting run", "config", cfg)

	s := fn(ctx, cfg, func(e pipeline.Event) {
		if e.Warning {
			logger.Warn(e.Message, "stage", e.Stage)
			return
		}
		fmt.Fprintf(out, "[%3d%%] %s\n", e.Percent, e.Message)
	})

	if s.TeardownErr != nil {
		logger.Warn("closing mailbox", "error", s.TeardownErr)
	}

	switch {
	case s.Stage.Failed():
		if s.Err != nil {
			return s.Err
		}
		return errors.New(s.Message)
	case len(s.Responses) == 0:
		return nil
	}

	path, err := w.WriteAll(s.Responses, nil)
	if err != nil {
		return fmt.Errorf("exporting responses: %w", err)
	}

	fmt.Fprintln(out, run.Summary(s))
	fmt.Fprintf(out, "Saved %d responses to %s\n", len(s.Responses), path)
	logger.Info("run finished", "session", s.ID, "responses", len(s.Responses), "path", path)
	return nil
}
