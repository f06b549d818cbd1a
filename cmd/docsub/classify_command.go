package main

import (
	"github.com/spf13/cobra"

	"github.com/communalgrowth/docsub/internal/domain"
	"github.com/communalgrowth/docsub/internal/idparser"
	"github.com/communalgrowth/docsub/internal/ingest"
)

type classified struct {
	Token string `json:"token"`
	domain.Identifier
}

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <line>...",
		Short: "Show how identifiers would be read from message lines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens := ingest.Tokenize(args, ingest.UniformLimits(ingest.DefaultMaxDocIDs))
			out := make([]classified, 0, len(tokens))
			for _, tok := range tokens {
				out = append(out, classified{Token: tok, Identifier: idparser.Classify(tok)})
			}
			return ctx.output(cmd, out, func() string {
				rows := make([][]string, 0, len(out))
				for _, c := range out {
					rows = append(rows, []string{c.Token, string(c.Kind), c.Value})
				}
				return renderTable([]string{"Token", "Kind", "Value"}, rows, nil)
			})
		},
	}
}
