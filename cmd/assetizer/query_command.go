package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"assetizer/internal/evidence"
	"assetizer/internal/pipeline"
	"assetizer/internal/textutil"
)

func newQueryCommand(ctx *commandContext) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "query <asset> <text>...",
		Short: "Search an asset's evidence",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			assetID := args[0]
			query := strings.Join(args[1:], " ")
			return ctx.withPipeline(func(runCtx context.Context, p *pipeline.Pipeline, store *evidence.Store) error {
				k := topK
				if k <= 0 {
					k = p.QueryTopK()
				}
				hits, err := store.Search(runCtx, assetID, query, k)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"query": query, "hits": hits})
				}

				out := cmd.OutOrStdout()
				if len(hits) == 0 {
					fmt.Fprintf(out, "No evidence matches %q\n", query)
					return nil
				}
				rows := make([][]string, 0, len(hits))
				for _, hit := range hits {
					rows = append(rows, []string{
						hit.Citation,
						hit.Kind,
						textutil.FormatTimeMs(hit.StartMs),
						hit.Snippet,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Citation", "Kind", "At", "Snippet"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of results (default from config)")
	return cmd
}

func newEvidenceCommand(ctx *commandContext) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "evidence <asset> <text>...",
		Short: "Build a citation-ready evidence pack",
		Long:  "Searches an asset's evidence and resolves each hit to its full text, timing, and frame image path.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			assetID := args[0]
			query := strings.Join(args[1:], " ")
			return ctx.withPipeline(func(runCtx context.Context, p *pipeline.Pipeline, store *evidence.Store) error {
				k := topK
				if k <= 0 {
					k = p.QueryTopK()
				}
				pack, err := store.BuildPack(runCtx, p.Layout(assetID), query, k)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, pack)
				}

				out := cmd.OutOrStdout()
				if len(pack.Items) == 0 {
					fmt.Fprintf(out, "No evidence matches %q\n", query)
					return nil
				}
				for _, item := range pack.Items {
					fmt.Fprintf(out, "%s\n", item.Citation)
					fmt.Fprintf(out, "  %s\n", item.Text)
					if item.FramePath != "" {
						fmt.Fprintf(out, "  image: %s\n", item.FramePath)
					}
				}
				for _, problem := range pack.Errors {
					fmt.Fprintf(out, "warning: %s\n", problem)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of results (default from config)")
	return cmd
}
