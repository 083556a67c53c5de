package main

import (
	"context"

	"github.com/spf13/cobra"

	"assetizer/internal/evidence"
	"assetizer/internal/manifest"
	"assetizer/internal/pipeline"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index <asset>",
		Short: "Rebuild the evidence index for an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(runCtx context.Context, p *pipeline.Pipeline, _ *evidence.Store) error {
				result, err := p.RunStage(runCtx, args[0], manifest.StageIndex, force)
				if err != nil {
					return err
				}
				return printStageResult(cmd, ctx, result)
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Recompute even when cached output is valid")
	return cmd
}
