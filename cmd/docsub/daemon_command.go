package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/communalgrowth/docsub/internal/di"
	"github.com/communalgrowth/docsub/internal/maildrop"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Process mail delivered to the spool until interrupted",
		Long: `Watch <spool>/subscribe/new, <spool>/unsubscribe/new and
<spool>/forget/new. Every message is parsed, handled as the action named
by its directory, and removed. Only one daemon may run per spool.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return ctx.withContainer(func(i do.Injector) error {
				return runDaemon(signalCtx, i)
			})
		},
	}
}

func runDaemon(ctx context.Context, i do.Injector) error {
	if err := di.Bootstrap(ctx, i); err != nil {
		return err
	}
	d, err := do.Invoke[*maildrop.Daemon](i)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}
