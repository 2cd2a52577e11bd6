package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/glacierwatch/glacierwatch/internal/log"
)

// Cadence between cron iterations, by previous outcome.
const (
	cronDelayAfterSuccess = 5 * time.Second
	cronDelayWhenIdle     = 60 * time.Second
	cronDelayAfterFailure = 10 * time.Second
)

// Run processes scenes once and returns: a single scene when
// --scene-id is set, otherwise every queued scene of the project until
// the queue drains. The run exits non-zero if any scene failed.
func (e *Engine) Run(ctx context.Context) error {
	if e.opts.SceneID != "" {
		outcome, err := e.ProcessNext(ctx)
		if err != nil {
			return err
		}
		if outcome == OutcomeNoScene {
			return fmt.Errorf("scene %s was not available for processing", e.opts.SceneID)
		}
		return nil
	}

	var failures int
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := e.ProcessNext(ctx)
		switch outcome {
		case OutcomeNoScene:
			if failures > 0 {
				return fmt.Errorf("%d scene(s) failed during the run", failures)
			}
			log.Info("no more scenes to process")
			return nil
		case OutcomeFailed:
			failures++
			log.Errorf("scene processing failed: %v", err)
		}

		// Dry-run never mutates scene status, so the same scene would
		// be fetched forever; one scene per dry run.
		if e.opts.DryRun {
			return nil
		}
	}
}

// RunCron processes scenes indefinitely for unattended periodic
// operation, pausing between iterations. Safe to run in multiple
// replicas: the scene claim and pair insert keep them from colliding.
func (e *Engine) RunCron(ctx context.Context) error {
	for {
		outcome, err := e.ProcessNext(ctx)

		var delay time.Duration
		switch outcome {
		case OutcomeProcessed:
			delay = cronDelayAfterSuccess
		case OutcomeNoScene:
			log.Info("no scenes available, waiting before retrying")
			delay = cronDelayWhenIdle
		case OutcomeFailed:
			log.Errorf("scene processing failed, waiting before retrying: %v", err)
			delay = cronDelayAfterFailure
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
