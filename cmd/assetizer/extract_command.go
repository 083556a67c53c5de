package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"assetizer/internal/evidence"
	"assetizer/internal/manifest"
	"assetizer/internal/pipeline"
	"assetizer/internal/stage"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Run extraction stages for an asset",
	}

	var force bool
	var localFile string
	for _, st := range manifest.Stages() {
		extractCmd.AddCommand(newStageCommand(ctx, st, &force, &localFile))
	}
	extractCmd.PersistentFlags().BoolVar(&force, "force", false, "Recompute even when cached output is valid")
	extractCmd.PersistentFlags().StringVar(&localFile, "file", "", "Use a local video file for the source stage")

	extractCmd.AddCommand(newPipelineCommand(ctx, &force, &localFile))
	return extractCmd
}

func newStageCommand(ctx *commandContext, st manifest.Stage, force *bool, localFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s <asset>", st),
		Short: fmt.Sprintf("Run the %s stage", st),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(runCtx context.Context, p *pipeline.Pipeline, _ *evidence.Store) error {
				if *localFile != "" {
					p.WithLocalSource(*localFile)
				}
				result, err := p.RunStage(runCtx, args[0], st, *force)
				if err != nil {
					return err
				}
				return printStageResult(cmd, ctx, result)
			})
		},
	}
}

func newPipelineCommand(ctx *commandContext, force *bool, localFile *string) *cobra.Command {
	var until string
	var stopOnError bool

	cmd := &cobra.Command{
		Use:   "pipeline <asset>",
		Short: "Run every stage in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			untilStage := manifest.StageIndex
			if until != "" {
				parsed, err := manifest.ParseStage(until)
				if err != nil {
					return err
				}
				untilStage = parsed
			}
			return ctx.withPipeline(func(runCtx context.Context, p *pipeline.Pipeline, _ *evidence.Store) error {
				if *localFile != "" {
					p.WithLocalSource(*localFile)
				}
				outcomes, runErr := p.RunSequence(runCtx, args[0], untilStage, *force, stopOnError)
				if err := printOutcomes(cmd, ctx, outcomes); err != nil {
					return err
				}
				return runErr
			})
		},
	}

	cmd.Flags().StringVar(&until, "until", "", "Stop after this stage")
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "Abort the run at the first stage failure")
	return cmd
}

func printStageResult(cmd *cobra.Command, ctx *commandContext, result stage.Result) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, map[string]any{
			"stage":       result.Stage,
			"status":      result.Status,
			"cache_hit":   result.CacheHit,
			"duration_ms": result.Duration.Milliseconds(),
			"refs":        result.Refs,
			"metrics":     result.Metrics,
		})
	}

	out := cmd.OutOrStdout()
	label := string(result.Status)
	if result.CacheHit {
		label = "done (cached)"
	}
	fmt.Fprintf(out, "Stage %s: %s in %s\n", result.Stage, label, result.Duration.Round(time.Millisecond))
	if len(result.Metrics) > 0 {
		fmt.Fprintf(out, "  %s\n", formatMetrics(result.Metrics))
	}
	return nil
}

func printOutcomes(cmd *cobra.Command, ctx *commandContext, outcomes []pipeline.Outcome) error {
	if ctx.jsonOutput() {
		rows := make([]map[string]any, 0, len(outcomes))
		for _, outcome := range outcomes {
			row := map[string]any{
				"stage":     outcome.Stage,
				"status":    outcome.Status,
				"cache_hit": outcome.CacheHit,
			}
			if outcome.SkipReason != "" {
				row["skip_reason"] = outcome.SkipReason
			}
			if outcome.Err != nil {
				row["error"] = outcome.Err.Error()
			}
			rows = append(rows, row)
		}
		return writeJSON(cmd, map[string]any{"stages": rows})
	}

	rows := make([][]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		detail := ""
		status := string(outcome.Status)
		switch {
		case outcome.SkipReason != "":
			status = "skipped"
			detail = outcome.SkipReason
		case outcome.Err != nil:
			detail = outcome.Err.Error()
		case outcome.CacheHit:
			detail = "cached"
		}
		rows = append(rows, []string{
			string(outcome.Stage),
			status,
			outcome.Duration.Round(time.Millisecond).String(),
			detail,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Stage", "Status", "Duration", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
	return nil
}

func formatMetrics(metrics map[string]int64) string {
	keys := make([]string, 0, len(metrics))
	for key := range metrics {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", key, metrics[key]))
	}
	return strings.Join(parts, " ")
}
