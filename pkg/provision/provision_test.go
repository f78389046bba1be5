// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package provision

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platform-engineering-labs/searchprov/pkg/config"
	"github.com/platform-engineering-labs/searchprov/pkg/naming"
	"github.com/platform-engineering-labs/searchprov/pkg/prov"
	"github.com/platform-engineering-labs/searchprov/pkg/search"
	"github.com/platform-engineering-labs/searchprov/pkg/search/searchtest"
	"github.com/platform-engineering-labs/searchprov/pkg/synchronizer"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.BaseName = "contoso-docs"
	cfg.SearchService = "contoso-search"
	cfg.OpenAIEndpoint = "https://contoso-openai.openai.azure.com"
	cfg.SubscriptionId = "00000000-0000-0000-0000-000000000000"
	cfg.ResourceGroup = "rg-contoso"
	cfg.StorageAccount = "contosodocs"
	cfg.Container = "raw"
	cfg.Retry.Delay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond
	cfg.Timeout = 5 * time.Second
	return cfg
}

func newOrchestrator(t *testing.T, cfg *config.Config, svc search.Service) *Orchestrator {
	t.Helper()
	s, err := synchronizer.New(svc, synchronizer.OptionsFromConfig(cfg))
	require.NoError(t, err)
	return New(cfg, s)
}

func outcomes(r *Result) map[search.Kind]synchronizer.Outcome {
	out := make(map[search.Kind]synchronizer.Outcome)
	for _, s := range r.Steps {
		out[s.Kind] = s.Outcome
	}
	return out
}

func allOutcomes(o synchronizer.Outcome) map[search.Kind]synchronizer.Outcome {
	return map[search.Kind]synchronizer.Outcome{
		search.KindDataSource: o,
		search.KindSkillset:   o,
		search.KindIndex:      o,
		search.KindIndexer:    o,
	}
}

func callsFor(fake *searchtest.Fake, kind search.Kind) int {
	n := 0
	for _, c := range fake.Calls() {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func TestRun_FreshServiceCreatesEverything(t *testing.T) {
	fake := searchtest.New()
	o := newOrchestrator(t, testConfig(), fake)

	result, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.True(t, result.Succeeded())
	assert.Equal(t, allOutcomes(synchronizer.OutcomeCreated), outcomes(result))
	assert.Equal(t, "contoso-docs", result.RunID.Base())

	assert.Equal(t, []string{"contoso-docs-ds"}, fake.Names(search.KindDataSource))
	assert.Equal(t, []string{"contoso-docs-skills"}, fake.Names(search.KindSkillset))
	assert.Equal(t, []string{"contoso-docs-index"}, fake.Names(search.KindIndex))
	assert.Equal(t, []string{"contoso-docs-indexer"}, fake.Names(search.KindIndexer))

	indexer, ok := fake.Document(search.KindIndexer, "contoso-docs-indexer")
	require.True(t, ok)
	assert.Equal(t, "contoso-docs-ds", indexer["dataSourceName"])
	assert.Equal(t, "contoso-docs-skills", indexer["skillsetName"])
	assert.Equal(t, "contoso-docs-index", indexer["targetIndexName"])
}

func TestRun_SecondRunIsUnchanged(t *testing.T) {
	fake := searchtest.New()
	o := newOrchestrator(t, testConfig(), fake)

	_, err := o.Run(context.Background())
	require.NoError(t, err)
	writes := fake.Writes()

	result, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, allOutcomes(synchronizer.OutcomeUnchanged), outcomes(result))
	assert.Equal(t, writes, fake.Writes(), "a converged run issues no writes")
}

func TestRun_ResumesAfterIndexFailure(t *testing.T) {
	fake := searchtest.New()
	fake.FailOn(search.OpCreate, search.KindIndex, http.StatusBadRequest, 0)
	o := newOrchestrator(t, testConfig(), fake)

	result, err := o.Run(context.Background())
	require.Error(t, err)

	var remote *search.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, search.KindIndex, result.FailedKind)
	assert.Equal(t, err, result.Err)
	assert.Equal(t, map[search.Kind]synchronizer.Outcome{
		search.KindDataSource: synchronizer.OutcomeCreated,
		search.KindSkillset:   synchronizer.OutcomeCreated,
		search.KindIndex:      synchronizer.OutcomeFailed,
	}, outcomes(result))
	assert.Zero(t, callsFor(fake, search.KindIndexer), "indexer is never touched after a failure")
	assert.True(t, fake.Has(search.KindDataSource, "contoso-docs-ds"), "no rollback")

	fake.ClearFailures()
	result, err = o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[search.Kind]synchronizer.Outcome{
		search.KindDataSource: synchronizer.OutcomeUnchanged,
		search.KindSkillset:   synchronizer.OutcomeUnchanged,
		search.KindIndex:      synchronizer.OutcomeCreated,
		search.KindIndexer:    synchronizer.OutcomeCreated,
	}, outcomes(result))
}

func TestRun_IndexerComesLast(t *testing.T) {
	fake := searchtest.New()
	o := newOrchestrator(t, testConfig(), fake)

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	firstIndexerCall := -1
	lastOtherWrite := -1
	for i, c := range fake.Calls() {
		if c.Kind == search.KindIndexer && firstIndexerCall < 0 {
			firstIndexerCall = i
		}
		if c.Kind != search.KindIndexer && c.Op == search.OpCreate {
			lastOtherWrite = i
		}
	}
	require.GreaterOrEqual(t, firstIndexerCall, 0)
	assert.Greater(t, firstIndexerCall, lastOtherWrite)

	var order []search.Kind
	for _, s := range fake.Calls() {
		if s.Op == search.OpCreate {
			order = append(order, s.Kind)
		}
	}
	assert.Equal(t, search.ProvisionOrder, order)
}

func TestRun_SkillsetDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.SkillsetEnabled = false
	fake := searchtest.New()
	o := newOrchestrator(t, cfg, fake)

	result, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[search.Kind]synchronizer.Outcome{
		search.KindDataSource: synchronizer.OutcomeCreated,
		search.KindSkillset:   synchronizer.OutcomeSkipped,
		search.KindIndex:      synchronizer.OutcomeCreated,
		search.KindIndexer:    synchronizer.OutcomeCreated,
	}, outcomes(result))
	assert.Zero(t, callsFor(fake, search.KindSkillset))

	indexer, ok := fake.Document(search.KindIndexer, "contoso-docs-indexer")
	require.True(t, ok)
	assert.Nil(t, indexer["skillsetName"])
	assert.Empty(t, indexer["outputFieldMappings"])
}

func TestRun_DisablingSkillsetUpdatesIndexer(t *testing.T) {
	cfg := testConfig()
	fake := searchtest.New()
	o := newOrchestrator(t, cfg, fake)
	ctx := context.Background()

	_, err := o.Run(ctx)
	require.NoError(t, err)
	indexer, ok := fake.Document(search.KindIndexer, "contoso-docs-indexer")
	require.True(t, ok)
	require.Equal(t, "contoso-docs-skills", indexer["skillsetName"])

	cfg.SkillsetEnabled = false
	result, err := o.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, synchronizer.OutcomeSkipped, outcomes(result)[search.KindSkillset])
	assert.Equal(t, synchronizer.OutcomeUpdated, outcomes(result)[search.KindIndex])
	assert.Equal(t, synchronizer.OutcomeUpdated, outcomes(result)[search.KindIndexer])

	indexer, ok = fake.Document(search.KindIndexer, "contoso-docs-indexer")
	require.True(t, ok)
	assert.Nil(t, indexer["skillsetName"])
	assert.Empty(t, indexer["outputFieldMappings"])
	index, ok := fake.Document(search.KindIndex, "contoso-docs-index")
	require.True(t, ok)
	assert.Nil(t, index["vectorSearch"])

	result, err = o.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, synchronizer.OutcomeUnchanged, outcomes(result)[search.KindIndex])
	assert.Equal(t, synchronizer.OutcomeUnchanged, outcomes(result)[search.KindIndexer])
}

func TestRun_RemovingScheduleUpdatesIndexer(t *testing.T) {
	cfg := testConfig()
	cfg.IndexerSchedule = "PT2H"
	fake := searchtest.New()
	o := newOrchestrator(t, cfg, fake)
	ctx := context.Background()

	_, err := o.Run(ctx)
	require.NoError(t, err)
	indexer, ok := fake.Document(search.KindIndexer, "contoso-docs-indexer")
	require.True(t, ok)
	require.NotNil(t, indexer["schedule"])

	cfg.IndexerSchedule = ""
	result, err := o.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, synchronizer.OutcomeUpdated, outcomes(result)[search.KindIndexer])
	assert.Equal(t, synchronizer.OutcomeUnchanged, outcomes(result)[search.KindDataSource])

	indexer, ok = fake.Document(search.KindIndexer, "contoso-docs-indexer")
	require.True(t, ok)
	assert.Nil(t, indexer["schedule"])
}

func TestRun_InvalidBaseNameMakesNoCalls(t *testing.T) {
	for _, base := range []string{"", "Contoso_Docs", "-docs", "docs-"} {
		t.Run(base, func(t *testing.T) {
			cfg := testConfig()
			cfg.BaseName = base
			fake := searchtest.New()
			o := newOrchestrator(t, cfg, fake)

			result, err := o.Run(context.Background())
			var nameErr *naming.InvalidNameError
			require.True(t, errors.As(err, &nameErr))
			assert.Equal(t, StateFailed, result.State)
			assert.Empty(t, result.Steps)
			assert.Empty(t, fake.Calls())
			assert.True(t, IsInputError(err))
		})
	}
}

func TestRun_ConfigurationErrorMakesNoCalls(t *testing.T) {
	cfg := testConfig()
	cfg.Container = ""
	fake := searchtest.New()
	o := newOrchestrator(t, cfg, fake)

	_, err := o.Run(context.Background())
	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "container", cfgErr.Field)
	assert.Empty(t, fake.Calls())
	assert.True(t, IsInputError(err))
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	fake := searchtest.New()
	o := newOrchestrator(t, testConfig(), fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := o.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, search.KindDataSource, result.FailedKind)
	assert.Empty(t, fake.Calls())
}

func TestRun_DryRunIssuesNoWrites(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = true
	fake := searchtest.New()
	o := newOrchestrator(t, cfg, fake)

	result, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, allOutcomes(synchronizer.OutcomeCreated), outcomes(result))
	assert.Equal(t, 0, fake.Writes())
}

// stubSyncer reports a fixed outcome per kind without an error.
type stubSyncer struct {
	outcomes map[search.Kind]synchronizer.Outcome
	synced   []search.Kind
}

func (s *stubSyncer) Sync(ctx context.Context, def search.Definition) (synchronizer.Outcome, error) {
	s.synced = append(s.synced, def.Kind())
	if o, ok := s.outcomes[def.Kind()]; ok {
		return o, nil
	}
	return synchronizer.OutcomeCreated, nil
}

func (s *stubSyncer) Delete(ctx context.Context, kind search.Kind, name string) (synchronizer.Outcome, error) {
	return synchronizer.OutcomeDeleted, nil
}

func (s *stubSyncer) Status(ctx context.Context, name string) (*search.IndexerStatus, error) {
	return &search.IndexerStatus{Status: "running"}, nil
}

func (s *stubSyncer) DryRun() bool { return false }

func TestRun_DependencyNotReady(t *testing.T) {
	stub := &stubSyncer{outcomes: map[search.Kind]synchronizer.Outcome{
		search.KindSkillset: synchronizer.OutcomeFailed,
	}}
	o := New(testConfig(), stub)

	result, err := o.Run(context.Background())
	var depErr *DependencyNotReadyError
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, search.KindIndex, depErr.Kind)
	assert.Equal(t, search.KindSkillset, depErr.Dependency)
	assert.Equal(t, synchronizer.OutcomeFailed, depErr.Outcome)
	assert.Equal(t, search.KindIndex, result.FailedKind)
	assert.Equal(t, []search.Kind{search.KindDataSource, search.KindSkillset}, stub.synced)
}

// fixedBuilder returns a prepared definition.
type fixedBuilder struct {
	kind     search.Kind
	deps     []search.Kind
	optional bool
	disabled bool
	def      search.Definition
}

func (b *fixedBuilder) Kind() search.Kind               { return b.kind }
func (b *fixedBuilder) DependsOn() []search.Kind        { return b.deps }
func (b *fixedBuilder) Optional() bool                  { return b.optional }
func (b *fixedBuilder) Enabled(cfg *config.Config) bool { return !b.disabled }
func (b *fixedBuilder) Build(cfg *config.Config, names naming.Names) (search.Definition, error) {
	return b.def, nil
}

func referencingBuilders(skillsetDisabled bool, indexer search.Indexer) []prov.Builder {
	return []prov.Builder{
		&fixedBuilder{kind: search.KindDataSource, def: search.DataSource{Name: "contoso-docs-ds"}},
		&fixedBuilder{kind: search.KindSkillset, optional: true, disabled: skillsetDisabled, def: search.Skillset{Name: "contoso-docs-skills"}},
		&fixedBuilder{kind: search.KindIndex, def: search.Index{Name: "contoso-docs-index"}},
		&fixedBuilder{
			kind: search.KindIndexer,
			deps: []search.Kind{search.KindDataSource, search.KindSkillset, search.KindIndex},
			def:  indexer,
		},
	}
}

func TestRun_IndexerReferencesMustBeConverged(t *testing.T) {
	skillset := "contoso-docs-skills"

	tests := []struct {
		name       string
		disabled   bool
		indexer    search.Indexer
		dependency search.Kind
		refName    string
		outcome    synchronizer.Outcome
	}{
		{
			name:     "referenced skillset was skipped",
			disabled: true,
			indexer: search.Indexer{
				Name:            "contoso-docs-indexer",
				DataSourceName:  "contoso-docs-ds",
				SkillsetName:    &skillset,
				TargetIndexName: "contoso-docs-index",
			},
			dependency: search.KindSkillset,
			refName:    "contoso-docs-skills",
			outcome:    synchronizer.OutcomeSkipped,
		},
		{
			name: "referenced index has another name",
			indexer: search.Indexer{
				Name:            "contoso-docs-indexer",
				DataSourceName:  "contoso-docs-ds",
				TargetIndexName: "other-index",
			},
			dependency: search.KindIndex,
			refName:    "other-index",
			outcome:    synchronizer.OutcomeCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubSyncer{}
			o := &Orchestrator{cfg: testConfig(), syncer: stub, builders: referencingBuilders(tt.disabled, tt.indexer)}

			result, err := o.Run(context.Background())
			var depErr *DependencyNotReadyError
			require.True(t, errors.As(err, &depErr))
			assert.Equal(t, search.KindIndexer, depErr.Kind)
			assert.Equal(t, tt.dependency, depErr.Dependency)
			assert.Equal(t, tt.refName, depErr.Name)
			assert.Equal(t, tt.outcome, depErr.Outcome)
			assert.Equal(t, search.KindIndexer, result.FailedKind)
			assert.NotContains(t, stub.synced, search.KindIndexer)
		})
	}
}

func TestRun_IndexerReferencesConverged(t *testing.T) {
	stub := &stubSyncer{}
	o := &Orchestrator{cfg: testConfig(), syncer: stub, builders: referencingBuilders(true, search.Indexer{
		Name:            "contoso-docs-indexer",
		DataSourceName:  "contoso-docs-ds",
		TargetIndexName: "contoso-docs-index",
	})}

	result, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, []search.Kind{search.KindDataSource, search.KindIndex, search.KindIndexer}, stub.synced)
}

func TestTeardown(t *testing.T) {
	fake := searchtest.New()
	o := newOrchestrator(t, testConfig(), fake)
	ctx := context.Background()

	_, err := o.Run(ctx)
	require.NoError(t, err)
	fake.ResetCalls()

	result, err := o.Teardown(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, allOutcomes(synchronizer.OutcomeDeleted), outcomes(result))

	var order []search.Kind
	for _, c := range fake.Calls() {
		order = append(order, c.Kind)
	}
	assert.Equal(t, []search.Kind{search.KindIndexer, search.KindIndex, search.KindSkillset, search.KindDataSource}, order)

	result, err = o.Teardown(ctx)
	require.NoError(t, err)
	assert.Equal(t, allOutcomes(synchronizer.OutcomeAbsent), outcomes(result))
}

func TestStatus(t *testing.T) {
	fake := searchtest.New()
	o := newOrchestrator(t, testConfig(), fake)
	ctx := context.Background()

	_, err := o.Status(ctx)
	assert.True(t, search.IsNotFound(err))

	_, err = o.Run(ctx)
	require.NoError(t, err)
	fake.SetIndexerStatus("contoso-docs-indexer", search.IndexerStatus{
		Status:     "running",
		LastResult: &search.IndexerExecutionResult{Status: "success", ItemsProcessed: 3},
	})

	status, err := o.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "success", status.LastResult.Status)
}

func TestPlan(t *testing.T) {
	o := New(testConfig(), &stubSyncer{})

	names, defs, err := o.Plan()
	require.NoError(t, err)
	assert.Equal(t, "contoso-docs-indexer", names.Indexer)
	require.Len(t, defs, 4)
	for i, kind := range search.ProvisionOrder {
		assert.Equal(t, kind, defs[i].Kind())
	}
}
