package main

import (
	"fmt"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/communalgrowth/docsub/internal/config"
	"github.com/communalgrowth/docsub/internal/search"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <term>...",
		Short: "Search documents by title and author",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withContainer(func(i do.Injector) error {
				svc, err := do.Invoke[*search.Service](i)
				if err != nil {
					return err
				}
				rows, err := svc.Search(cmd.Context(), strings.Join(args, " "), limit)
				if err != nil {
					return err
				}
				return ctx.output(cmd, rows, func() string { return renderRows(rows) })
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", search.DefaultLimit, "Maximum number of results")
	return cmd
}

func newRecentCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recently added subscribed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withContainer(func(i do.Injector) error {
				svc, err := do.Invoke[*search.Service](i)
				if err != nil {
					return err
				}
				rows, err := svc.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return ctx.output(cmd, rows, func() string { return renderRows(rows) })
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of documents")
	return cmd
}

func newReindexCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withContainer(func(i do.Injector) error {
				svc, err := do.Invoke[*search.Service](i)
				if err != nil {
					return err
				}
				n, err := svc.Reindex(cmd.Context())
				if err != nil {
					return err
				}
				return ctx.output(cmd, map[string]int{"documents": n}, func() string {
					return fmt.Sprintf("indexed %d documents", n)
				})
			})
		},
	}
}

func loadConfig(ctx *commandContext) (*config.Config, error) {
	return config.Load(ctx.flags)
}
