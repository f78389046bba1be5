// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/platform-engineering-labs/searchprov/pkg/config"
)

// ProvisionAction converges the four resources and prints one row per step.
func ProvisionAction(ctx context.Context, cmd *cli.Command) error {
	ctx, app, err := newAppContext(ctx, cmd, (*config.Config).Validate)
	if err != nil {
		return err
	}

	o, err := app.orchestrator()
	if err != nil {
		return err
	}
	// Name and definition errors are reported before preflight touches Azure.
	if _, _, err := o.Plan(); err != nil {
		return err
	}

	if app.cfg.Preflight {
		if err := app.runPreflight(ctx); err != nil {
			return err
		}
	}

	result, err := o.Run(ctx)
	renderResult(app.out, result)
	return err
}

// TeardownAction deletes the four resources in reverse order.
func TeardownAction(ctx context.Context, cmd *cli.Command) error {
	ctx, app, err := newAppContext(ctx, cmd, (*config.Config).ValidateSearch)
	if err != nil {
		return err
	}
	o, err := app.orchestrator()
	if err != nil {
		return err
	}
	result, err := o.Teardown(ctx)
	renderResult(app.out, result)
	return err
}

// StatusAction prints the indexer execution status.
func StatusAction(ctx context.Context, cmd *cli.Command) error {
	ctx, app, err := newAppContext(ctx, cmd, (*config.Config).ValidateSearch)
	if err != nil {
		return err
	}
	o, err := app.orchestrator()
	if err != nil {
		return err
	}
	status, err := o.Status(ctx)
	if err != nil {
		return err
	}
	renderStatus(app.out, status)
	return nil
}

// NamesAction prints the derived resource names.
func NamesAction(ctx context.Context, cmd *cli.Command) error {
	_, app, err := newAppContext(ctx, cmd, nil)
	if err != nil {
		return err
	}
	o, err := app.orchestrator()
	if err != nil {
		return err
	}
	names, err := o.Names()
	if err != nil {
		return err
	}
	renderNames(app.out, names)
	return nil
}

// PlanAction prints every definition as the JSON body a run would send.
func PlanAction(ctx context.Context, cmd *cli.Command) error {
	_, app, err := newAppContext(ctx, cmd, nil)
	if err != nil {
		return err
	}
	o, err := app.orchestrator()
	if err != nil {
		return err
	}
	_, defs, err := o.Plan()
	if err != nil {
		return err
	}

	plan := make([]map[string]any, 0, len(defs))
	for _, def := range defs {
		if def == nil {
			continue
		}
		plan = append(plan, map[string]any{
			"kind":       def.Kind().String(),
			"name":       def.ResourceName(),
			"definition": def,
		})
	}
	out, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	fmt.Fprintln(app.out, string(out))
	return nil
}
