package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"assetizer/internal/evidence"
	"assetizer/internal/pipeline"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clean <asset>",
		Short: "Delete an asset's artifacts and indexed evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("clean deletes the artifact tree and all indexed evidence for %s; rerun with --yes to confirm", args[0])
			}
			return ctx.withPipeline(func(runCtx context.Context, p *pipeline.Pipeline, _ *evidence.Store) error {
				if err := p.Clean(runCtx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Asset %s removed\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}
