// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/platform-engineering-labs/searchprov/pkg/naming"
	"github.com/platform-engineering-labs/searchprov/pkg/preflight"
	"github.com/platform-engineering-labs/searchprov/pkg/provision"
	"github.com/platform-engineering-labs/searchprov/pkg/search"
)

func renderResult(w io.Writer, result *provision.Result) {
	if result == nil {
		return
	}
	if result.DryRun {
		fmt.Fprintln(w, "[DRY RUN] no changes were written")
	}

	table := tablewriter.NewWriter(w)
	table.Header("Kind", "Name", "Outcome", "Duration", "Error")
	for _, s := range result.Steps {
		errText := ""
		if s.Err != nil {
			errText = s.Err.Error()
		}
		table.Append(s.Kind.String(), s.Name, string(s.Outcome), s.Duration.Round(time.Millisecond).String(), errText)
	}
	table.Render()

	fmt.Fprintf(w, "run %s: %s\n", result.RunID, result.State)
	if result.Err != nil && len(result.Steps) == 0 {
		fmt.Fprintf(w, "%v\n", result.Err)
	}
}

func renderNames(w io.Writer, names naming.Names) {
	table := tablewriter.NewWriter(w)
	table.Header("Kind", "Name")
	table.Append(search.KindDataSource.String(), names.DataSource)
	table.Append(search.KindSkillset.String(), names.Skillset)
	table.Append(search.KindIndex.String(), names.Index)
	table.Append(search.KindIndexer.String(), names.Indexer)
	table.Render()
}

func renderStatus(w io.Writer, status *search.IndexerStatus) {
	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")
	table.Append("Status", status.Status)
	if last := status.LastResult; last != nil {
		table.Append("Last run", last.Status)
		if last.StartTime != nil {
			table.Append("Started", last.StartTime.Format(time.RFC3339))
		}
		if last.EndTime != nil {
			table.Append("Ended", last.EndTime.Format(time.RFC3339))
		}
		table.Append("Items processed", fmt.Sprintf("%d", last.ItemsProcessed))
		table.Append("Items failed", fmt.Sprintf("%d", last.ItemsFailed))
		if last.ErrorMessage != "" {
			table.Append("Error", last.ErrorMessage)
		}
	}
	table.Render()
}

func renderPreflight(w io.Writer, report *preflight.Report) {
	table := tablewriter.NewWriter(w)
	table.Header("Check", "Resource", "Status", "Detail")
	for _, r := range report.Results {
		table.Append(r.Check, r.Resource, string(r.Status), r.Detail)
	}
	table.Render()
}
