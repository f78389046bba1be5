// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package synchronizer converges one search resource at a time: it reads the
// live resource, compares it with the desired definition and creates or
// updates it accordingly.
package synchronizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/platform-engineering-labs/searchprov/pkg/config"
	"github.com/platform-engineering-labs/searchprov/pkg/logger"
	"github.com/platform-engineering-labs/searchprov/pkg/search"
)

// Outcome is the result of converging one resource.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeDeleted   Outcome = "deleted"
	OutcomeAbsent    Outcome = "absent"
)

// Converged reports whether the resource exists as desired after the step.
func (o Outcome) Converged() bool {
	switch o {
	case OutcomeCreated, OutcomeUpdated, OutcomeUnchanged:
		return true
	}
	return false
}

// Options tune retries, deadlines and comparison.
type Options struct {
	Retry    config.RetryConfig
	Timeout  time.Duration
	DiffMode string
	DryRun   bool
	// Clock drives retry delays. Defaults to the wall clock.
	Clock clock.Clock
}

// OptionsFromConfig extracts the synchronizer settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Retry:    cfg.Retry,
		Timeout:  cfg.Timeout,
		DiffMode: cfg.DiffMode,
		DryRun:   cfg.DryRun,
	}
}

// Synchronizer converges definitions against a search.Service.
type Synchronizer struct {
	service search.Service
	differ  Differ
	opts    Options
}

// New creates a Synchronizer. Zero option values fall back to the defaults.
func New(service search.Service, opts Options) (*Synchronizer, error) {
	if service == nil {
		return nil, errors.New("synchronizer requires a search service")
	}
	differ, err := NewDiffer(opts.DiffMode)
	if err != nil {
		return nil, err
	}
	defaults := config.Defaults()
	if opts.Retry.Attempts < 1 {
		opts.Retry.Attempts = defaults.Retry.Attempts
	}
	if opts.Retry.Delay <= 0 {
		opts.Retry.Delay = defaults.Retry.Delay
	}
	if opts.Retry.MaxDelay < opts.Retry.Delay {
		opts.Retry.MaxDelay = max(defaults.Retry.MaxDelay, opts.Retry.Delay)
	}
	if opts.Retry.Factor < 1 {
		opts.Retry.Factor = defaults.Retry.Factor
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	return &Synchronizer{service: service, differ: differ, opts: opts}, nil
}

// DryRun reports whether writes are suppressed.
func (s *Synchronizer) DryRun() bool {
	return s.opts.DryRun
}

// Sync brings the resource described by def to its desired state. It returns
// OutcomeFailed with a *search.RemoteError, a *search.TimeoutError or the
// context error when the resource could not be converged.
func (s *Synchronizer) Sync(ctx context.Context, def search.Definition) (Outcome, error) {
	kind, name := def.Kind(), def.ResourceName()
	log := logger.FromContext(ctx).With("kind", kind.String(), "name", name)

	desired, err := search.Encode(def)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to encode %s %q: %w", kind.Label(), name, err)
	}

	syncCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	outcome, err := s.converge(syncCtx, kind, name, desired)
	if err != nil {
		err = s.deadlineError(syncCtx, kind, name, err)
		log.Error("Failed to synchronize resource", "error", err)
		return OutcomeFailed, err
	}

	log.Info("Synchronized resource", "outcome", string(outcome), "dryRun", s.opts.DryRun)
	return outcome, nil
}

func (s *Synchronizer) converge(ctx context.Context, kind search.Kind, name string, desired json.RawMessage) (Outcome, error) {
	log := logger.FromContext(ctx)

	var live *search.Resource
	err := s.withRetry(ctx, search.OpGet, kind, name, func() error {
		var err error
		live, err = s.service.Get(ctx, kind, name)
		return err
	})

	switch {
	case search.IsNotFound(err):
		if s.opts.DryRun {
			return OutcomeCreated, nil
		}
		err = s.withRetry(ctx, search.OpCreate, kind, name, func() error {
			_, err := s.service.Create(ctx, kind, name, desired)
			return err
		})
		if err != nil {
			return OutcomeFailed, err
		}
		return OutcomeCreated, nil

	case err != nil:
		return OutcomeFailed, err
	}

	changes, err := s.differ.Diff(kind, desired, live.Body)
	if err != nil {
		return OutcomeFailed, err
	}
	if len(changes) == 0 {
		return OutcomeUnchanged, nil
	}
	log.Debug("Resource drifted", "kind", kind.String(), "name", name, "changes", changes)

	if s.opts.DryRun {
		return OutcomeUpdated, nil
	}
	err = s.withRetry(ctx, search.OpUpdate, kind, name, func() error {
		_, err := s.service.Update(ctx, kind, name, desired, live.ETag)
		return err
	})
	if err != nil {
		return OutcomeFailed, err
	}
	return OutcomeUpdated, nil
}

// Delete removes a resource. A resource that is already gone counts as
// success and yields OutcomeAbsent, so teardown can be repeated.
func (s *Synchronizer) Delete(ctx context.Context, kind search.Kind, name string) (Outcome, error) {
	log := logger.FromContext(ctx).With("kind", kind.String(), "name", name)

	syncCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	var err error
	if s.opts.DryRun {
		err = s.withRetry(syncCtx, search.OpGet, kind, name, func() error {
			_, err := s.service.Get(syncCtx, kind, name)
			return err
		})
	} else {
		err = s.withRetry(syncCtx, search.OpDelete, kind, name, func() error {
			return s.service.Delete(syncCtx, kind, name)
		})
	}

	switch {
	case isDeleteSuccessError(err):
		log.Info("Resource already absent")
		return OutcomeAbsent, nil
	case err != nil:
		err = s.deadlineError(syncCtx, kind, name, err)
		log.Error("Failed to delete resource", "error", err)
		return OutcomeFailed, err
	}
	log.Info("Deleted resource", "dryRun", s.opts.DryRun)
	return OutcomeDeleted, nil
}

// Status reads the indexer execution status.
func (s *Synchronizer) Status(ctx context.Context, name string) (*search.IndexerStatus, error) {
	syncCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	var status *search.IndexerStatus
	err := s.withRetry(syncCtx, search.OpStatus, search.KindIndexer, name, func() error {
		var err error
		status, err = s.service.IndexerStatus(syncCtx, name)
		return err
	})
	if err != nil {
		return nil, s.deadlineError(syncCtx, search.KindIndexer, name, err)
	}
	return status, nil
}

// withRetry calls f until it succeeds, fails with a non-transient error, runs
// out of attempts or ctx is done. It returns the error of the last attempt.
func (s *Synchronizer) withRetry(ctx context.Context, op string, kind search.Kind, name string, f func() error) error {
	log := logger.FromContext(ctx)

	var lastErr error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			lastErr = f()
			return lastErr
		},
		IsFatalError: func(err error) bool {
			return !search.IsTransient(err)
		},
		NotifyFunc: func(err error, attempt int) {
			log.Warn("Transient search failure, retrying",
				"op", op,
				"kind", kind.String(),
				"name", name,
				"attempt", attempt,
				"error", err)
		},
		Attempts:    s.opts.Retry.Attempts,
		Delay:       s.opts.Retry.Delay,
		MaxDelay:    s.opts.Retry.MaxDelay,
		BackoffFunc: retry.ExpBackoff(s.opts.Retry.Delay, s.opts.Retry.MaxDelay, s.opts.Retry.Factor, true),
		Clock:       s.opts.Clock,
		Stop:        ctx.Done(),
	})
	if err == nil {
		return nil
	}
	if retry.IsRetryStopped(err) && ctx.Err() != nil {
		return fmt.Errorf("search %s %s/%s interrupted: %w", op, kind, name, ctx.Err())
	}
	if lastErr != nil {
		return lastErr
	}
	return err
}

// deadlineError turns an expired sync deadline into a TimeoutError.
func (s *Synchronizer) deadlineError(ctx context.Context, kind search.Kind, name string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &search.TimeoutError{Kind: kind, Name: name, Timeout: s.opts.Timeout, Err: err}
	}
	return err
}

// isDeleteSuccessError returns true if the error indicates the resource is already deleted.
func isDeleteSuccessError(err error) bool {
	return err != nil && search.IsNotFound(err)
}
