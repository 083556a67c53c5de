package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"assetizer/internal/evidence"
	"assetizer/internal/pipeline"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <asset>",
		Short: "Show an asset's stage state and evidence counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(runCtx context.Context, p *pipeline.Pipeline, _ *evidence.Store) error {
				status, err := p.Show(runCtx, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, status)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Asset %s\n", status.AssetID)
				if status.Title != "" {
					fmt.Fprintf(out, "  title:    %s\n", status.Title)
				}
				if status.SourceURL != "" {
					fmt.Fprintf(out, "  source:   %s\n", status.SourceURL)
				}
				if status.DurationSec > 0 {
					fmt.Fprintf(out, "  duration: %.0fs\n", status.DurationSec)
				}

				rows := make([][]string, 0, len(status.Stages))
				for _, row := range status.Stages {
					detail := row.Error
					if detail == "" && len(row.Metrics) > 0 {
						detail = formatMetrics(row.Metrics)
					}
					rows = append(rows, []string{
						string(row.Stage),
						string(row.Status),
						row.UpdatedAt,
						detail,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Stage", "Status", "Updated", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				))

				if len(status.Units) > 0 {
					kinds := make([]string, 0, len(status.Units))
					for kind := range status.Units {
						kinds = append(kinds, kind)
					}
					sort.Strings(kinds)
					for _, kind := range kinds {
						fmt.Fprintf(out, "  %s units: %d\n", kind, status.Units[kind])
					}
				} else if isTerminal(out) {
					fmt.Fprintf(out, "No evidence indexed yet; run `assetizer extract pipeline %s`\n", status.AssetID)
				}
				return nil
			})
		},
	}
}
