// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package commands implements the searchprov command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/platform-engineering-labs/searchprov/pkg/client"
	"github.com/platform-engineering-labs/searchprov/pkg/config"
	"github.com/platform-engineering-labs/searchprov/pkg/logger"
	"github.com/platform-engineering-labs/searchprov/pkg/preflight"
	"github.com/platform-engineering-labs/searchprov/pkg/provision"
	"github.com/platform-engineering-labs/searchprov/pkg/synchronizer"
)

// Exit codes returned by the binary.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// New returns the root command.
func New() *cli.Command {
	return &cli.Command{
		Name:  "searchprov",
		Usage: "Provision the Azure AI Search data source, skillset, index and indexer for a document pipeline",
		Commands: []*cli.Command{
			{
				Name:   "provision",
				Usage:  "Create or update the four search resources in dependency order",
				Flags:  append(commonFlags(), dryRunFlag(), preflightFlag()),
				Action: ProvisionAction,
			},
			{
				Name:   "plan",
				Usage:  "Print the definitions a run would send without contacting the service",
				Flags:  commonFlags(),
				Action: PlanAction,
			},
			{
				Name:   "names",
				Usage:  "Print the resource names derived from the base index name",
				Flags:  commonFlags(),
				Action: NamesAction,
			},
			{
				Name:   "status",
				Usage:  "Show the indexer execution status",
				Flags:  commonFlags(),
				Action: StatusAction,
			},
			{
				Name:   "teardown",
				Usage:  "Delete the four search resources in reverse dependency order",
				Flags:  append(commonFlags(), dryRunFlag()),
				Action: TeardownAction,
			},
		},
	}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if provision.IsInputError(err) {
		return ExitUsage
	}
	return ExitFailure
}

// appContext holds what every command needs after startup.
type appContext struct {
	cfg    *config.Config
	out    io.Writer
	client *client.Client
}

// newAppContext loads the configuration, applies the flags and sets up
// logging. When validate is not nil the configuration is checked with it and
// the Azure clients are created.
func newAppContext(ctx context.Context, cmd *cli.Command, validate func(*config.Config) error) (context.Context, *appContext, error) {
	cfg, err := config.Load(cmd.String("config"), cmd.String("env"))
	if err != nil {
		return ctx, nil, err
	}
	applyFlags(cmd, cfg)

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.Root().ErrWriter,
	})
	if err != nil {
		return ctx, nil, &config.ConfigurationError{Field: "log", Reason: err.Error()}
	}
	ctx = logger.WithContext(ctx, log)

	app := &appContext{cfg: cfg, out: cmd.Root().Writer}
	if app.out == nil {
		app.out = os.Stdout
	}
	if validate == nil {
		return ctx, app, nil
	}

	if err := validate(cfg); err != nil {
		return ctx, nil, err
	}
	app.client, err = client.NewClient(cfg)
	if err != nil {
		return ctx, nil, err
	}
	return ctx, app, nil
}

func (a *appContext) orchestrator() (*provision.Orchestrator, error) {
	var syncer provision.Syncer
	if a.client != nil {
		s, err := synchronizer.New(a.client.Search, synchronizer.OptionsFromConfig(a.cfg))
		if err != nil {
			return nil, err
		}
		syncer = s
	}
	return provision.New(a.cfg, syncer), nil
}

// runPreflight checks the surrounding Azure resources and prints the report.
func (a *appContext) runPreflight(ctx context.Context) error {
	clients, err := a.client.PreflightClients()
	if err != nil {
		return err
	}
	report, err := preflight.Run(ctx, a.cfg, clients)
	if report != nil {
		renderPreflight(a.out, report)
	}
	if err != nil {
		return fmt.Errorf("preflight failed: %w", err)
	}
	return nil
}
