// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package provision drives a full run: it derives the resource names, builds
// every definition and converges them one by one in dependency order.
package provision

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/platform-engineering-labs/searchprov/pkg/config"
	"github.com/platform-engineering-labs/searchprov/pkg/logger"
	"github.com/platform-engineering-labs/searchprov/pkg/naming"
	"github.com/platform-engineering-labs/searchprov/pkg/prov"
	"github.com/platform-engineering-labs/searchprov/pkg/registry"
	"github.com/platform-engineering-labs/searchprov/pkg/runid"
	"github.com/platform-engineering-labs/searchprov/pkg/search"
	"github.com/platform-engineering-labs/searchprov/pkg/synchronizer"

	// Import resources to trigger init() registration
	_ "github.com/platform-engineering-labs/searchprov/pkg/resources"
)

// State is the position of a run in the provisioning sequence.
type State string

const (
	StateInit            State = "Init"
	StateDataSourceReady State = "DataSourceReady"
	StateSkillsetReady   State = "SkillsetReady"
	StateIndexReady      State = "IndexReady"
	StateIndexerReady    State = "IndexerReady"
	StateDone            State = "Done"
	StateFailed          State = "Failed"
)

// readyState is the state reached once a kind has been handled.
var readyState = map[search.Kind]State{
	search.KindDataSource: StateDataSourceReady,
	search.KindSkillset:   StateSkillsetReady,
	search.KindIndex:      StateIndexReady,
	search.KindIndexer:    StateIndexerReady,
}

// Syncer converges single resources. *synchronizer.Synchronizer implements it.
type Syncer interface {
	Sync(ctx context.Context, def search.Definition) (synchronizer.Outcome, error)
	Delete(ctx context.Context, kind search.Kind, name string) (synchronizer.Outcome, error)
	Status(ctx context.Context, name string) (*search.IndexerStatus, error)
	DryRun() bool
}

// StepResult is the outcome of one resource in a run.
type StepResult struct {
	Kind     search.Kind
	Name     string
	Outcome  synchronizer.Outcome
	Err      error
	Duration time.Duration
}

// Result is the ordered record of a run. It is returned even when the run
// fails so that callers can see which resources already converged.
type Result struct {
	RunID      runid.RunID
	Names      naming.Names
	Steps      []StepResult
	State      State
	FailedKind search.Kind
	Err        error
	DryRun     bool
}

// Succeeded reports whether the run reached StateDone.
func (r *Result) Succeeded() bool {
	return r.State == StateDone
}

// Outcome returns the outcome recorded for kind.
func (r *Result) Outcome(kind search.Kind) (synchronizer.Outcome, bool) {
	for _, s := range r.Steps {
		if s.Kind == kind {
			return s.Outcome, true
		}
	}
	return "", false
}

func (r *Result) step(kind search.Kind) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Kind == kind {
			return s, true
		}
	}
	return StepResult{}, false
}

func (r *Result) fail(kind search.Kind, err error) {
	r.State = StateFailed
	r.FailedKind = kind
	r.Err = err
}

// plannedStep pairs a built definition with the builder that made it.
type plannedStep struct {
	builder prov.Builder
	def     search.Definition
}

// Orchestrator runs the provisioning state machine for one configuration.
type Orchestrator struct {
	cfg      *config.Config
	syncer   Syncer
	builders []prov.Builder
}

// New creates an Orchestrator over the registered builders.
func New(cfg *config.Config, syncer Syncer) *Orchestrator {
	return &Orchestrator{cfg: cfg, syncer: syncer, builders: registry.Ordered()}
}

// Names derives the resource names for the configured base name.
func (o *Orchestrator) Names() (naming.Names, error) {
	return naming.Derive(o.cfg.BaseName)
}

// Plan builds every definition without touching the service. Disabled
// optional kinds have a nil definition.
func (o *Orchestrator) Plan() (naming.Names, []search.Definition, error) {
	names, steps, err := o.plan()
	if err != nil {
		return names, nil, err
	}
	defs := make([]search.Definition, len(steps))
	for i, s := range steps {
		defs[i] = s.def
	}
	return names, defs, nil
}

func (o *Orchestrator) plan() (naming.Names, []plannedStep, error) {
	names, err := naming.Derive(o.cfg.BaseName)
	if err != nil {
		return names, nil, err
	}

	steps := make([]plannedStep, 0, len(o.builders))
	for _, b := range o.builders {
		if !b.Enabled(o.cfg) {
			if !b.Optional() {
				return names, nil, fmt.Errorf("%s cannot be disabled", b.Kind().Label())
			}
			steps = append(steps, plannedStep{builder: b})
			continue
		}
		def, err := b.Build(o.cfg, names)
		if err != nil {
			return names, nil, fmt.Errorf("failed to build %s: %w", b.Kind().Label(), err)
		}
		steps = append(steps, plannedStep{builder: b, def: def})
	}
	return names, steps, nil
}

// Run converges the four resources in order. Name and definition errors are
// returned before any remote call. On the first failed step the run stops,
// keeps what it has done and returns the error; nothing is rolled back, and
// running again resumes where it stopped.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		RunID:  runid.New(o.cfg.BaseName),
		State:  StateInit,
		DryRun: o.syncer.DryRun(),
	}
	log := logger.FromContext(ctx).With("run", result.RunID.String())
	ctx = logger.WithContext(ctx, log)

	names, steps, err := o.plan()
	result.Names = names
	if err != nil {
		result.fail("", err)
		log.Error("Provisioning aborted before any remote call", "error", err)
		return result, err
	}

	log.Info("Provisioning search resources",
		"base", names.Base,
		"dryRun", result.DryRun)

	for _, step := range steps {
		kind := step.builder.Kind()

		if err := ctx.Err(); err != nil {
			result.fail(kind, fmt.Errorf("provisioning canceled before %s: %w", kind.Label(), err))
			return result, result.Err
		}

		if step.def == nil {
			log.Info("Skipping disabled resource", "kind", kind.String())
			result.Steps = append(result.Steps, StepResult{Kind: kind, Outcome: synchronizer.OutcomeSkipped})
			result.State = readyState[kind]
			continue
		}

		if err := o.checkDependencies(step, result); err != nil {
			result.fail(kind, err)
			return result, err
		}

		start := time.Now()
		outcome, err := o.syncer.Sync(ctx, step.def)
		result.Steps = append(result.Steps, StepResult{
			Kind:     kind,
			Name:     step.def.ResourceName(),
			Outcome:  outcome,
			Err:      err,
			Duration: time.Since(start),
		})
		if err != nil {
			result.fail(kind, err)
			log.Error("Provisioning stopped", "failedKind", kind.String(), "error", err)
			return result, err
		}
		result.State = readyState[kind]
	}

	result.State = StateDone
	log.Info("Provisioning complete", "base", names.Base)
	return result, nil
}

// checkDependencies verifies that every dependency of the step has a
// non-failed outcome in this run, and that every resource the definition
// references by name was converged under that name.
func (o *Orchestrator) checkDependencies(step plannedStep, result *Result) error {
	kind := step.builder.Kind()
	for _, dep := range step.builder.DependsOn() {
		outcome, ok := result.Outcome(dep)
		if !ok {
			return &DependencyNotReadyError{Kind: kind, Dependency: dep}
		}
		if !outcome.Converged() && outcome != synchronizer.OutcomeSkipped {
			return &DependencyNotReadyError{Kind: kind, Dependency: dep, Outcome: outcome}
		}
	}

	ref, ok := step.def.(search.Referencer)
	if !ok {
		return nil
	}
	refs := ref.References()
	for _, dep := range search.ProvisionOrder {
		name, ok := refs[dep]
		if !ok {
			continue
		}
		done, ok := result.step(dep)
		if !ok {
			return &DependencyNotReadyError{Kind: kind, Dependency: dep, Name: name}
		}
		if done.Name != name || !done.Outcome.Converged() {
			return &DependencyNotReadyError{Kind: kind, Dependency: dep, Name: name, Outcome: done.Outcome}
		}
	}
	return nil
}

// Teardown deletes the four resources in reverse dependency order. Resources
// that are already gone count as success, so teardown can be repeated.
func (o *Orchestrator) Teardown(ctx context.Context) (*Result, error) {
	result := &Result{
		RunID:  runid.New(o.cfg.BaseName),
		State:  StateInit,
		DryRun: o.syncer.DryRun(),
	}
	log := logger.FromContext(ctx).With("run", result.RunID.String())
	ctx = logger.WithContext(ctx, log)

	names, err := naming.Derive(o.cfg.BaseName)
	result.Names = names
	if err != nil {
		result.fail("", err)
		return result, err
	}

	order := slices.Clone(search.ProvisionOrder)
	slices.Reverse(order)

	log.Info("Tearing down search resources", "base", names.Base, "dryRun", result.DryRun)
	for _, kind := range order {
		if err := ctx.Err(); err != nil {
			result.fail(kind, fmt.Errorf("teardown canceled before %s: %w", kind.Label(), err))
			return result, result.Err
		}

		name := nameFor(names, kind)
		start := time.Now()
		outcome, err := o.syncer.Delete(ctx, kind, name)
		result.Steps = append(result.Steps, StepResult{
			Kind:     kind,
			Name:     name,
			Outcome:  outcome,
			Err:      err,
			Duration: time.Since(start),
		})
		if err != nil {
			result.fail(kind, err)
			return result, err
		}
	}

	result.State = StateDone
	log.Info("Teardown complete", "base", names.Base)
	return result, nil
}

// Status returns the execution status of the indexer.
func (o *Orchestrator) Status(ctx context.Context) (*search.IndexerStatus, error) {
	names, err := naming.Derive(o.cfg.BaseName)
	if err != nil {
		return nil, err
	}
	status, err := o.syncer.Status(ctx, names.Indexer)
	if err != nil {
		if search.IsNotFound(err) {
			return nil, fmt.Errorf("indexer %q does not exist: %w", names.Indexer, err)
		}
		return nil, err
	}
	return status, nil
}

func nameFor(names naming.Names, kind search.Kind) string {
	switch kind {
	case search.KindDataSource:
		return names.DataSource
	case search.KindSkillset:
		return names.Skillset
	case search.KindIndex:
		return names.Index
	case search.KindIndexer:
		return names.Indexer
	}
	return ""
}

// IsInputError reports whether err was caused by the configuration or base
// name rather than by the service.
func IsInputError(err error) bool {
	var nameErr *naming.InvalidNameError
	var cfgErr *config.ConfigurationError
	return errors.As(err, &nameErr) || errors.As(err, &cfgErr)
}
