package main

import (
	"fmt"
	"io"
	"os"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/communalgrowth/docsub/internal/errors"
	"github.com/communalgrowth/docsub/internal/ingest"
	"github.com/communalgrowth/docsub/internal/maildrop"
	"github.com/communalgrowth/docsub/internal/mailmsg"
)

// newActionCommands builds subscribe, unsubscribe and forget. Each argument
// is one body line, so "a, b" and two arguments "a" "b" are equivalent.
func newActionCommands(ctx *commandContext) []*cobra.Command {
	short := map[ingest.Action]string{
		ingest.ActionSubscribe:   "Subscribe a sender to documents",
		ingest.ActionUnsubscribe: "Unsubscribe a sender from documents",
		ingest.ActionForget:      "Remove a sender and all their subscriptions",
	}

	cmds := make([]*cobra.Command, 0, len(ingest.Actions))
	for _, action := range ingest.Actions {
		var sender string
		cmd := &cobra.Command{
			Use:   string(action) + " [identifiers...]",
			Short: short[action],
			RunE: func(cmd *cobra.Command, args []string) error {
				if action == ingest.ActionForget && len(args) > 0 {
					return errors.Validationf("forget takes no identifiers")
				}
				return ctx.handle(cmd, action, ingest.Envelope{Sender: sender, Lines: args})
			},
		}
		if action == ingest.ActionForget {
			cmd.Use = string(action)
		}
		cmd.Flags().StringVar(&sender, "sender", "", "Sender e-mail address")
		_ = cmd.MarkFlagRequired("sender")
		cmds = append(cmds, cmd)
	}
	return cmds
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var actionName string
	cmd := &cobra.Command{
		Use:   "ingest <file|->",
		Short: "Handle one raw e-mail message immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := ingest.ParseAction(actionName)
			if err != nil {
				return err
			}
			msg, err := readMessage(cmd, args[0])
			if err != nil {
				return err
			}
			return ctx.handle(cmd, action, ingest.Envelope{Sender: msg.From, Lines: msg.Lines})
		},
	}
	cmd.Flags().StringVar(&actionName, "action", string(ingest.ActionSubscribe), "Action: subscribe, unsubscribe, or forget")
	return cmd
}

func newDeliverCommand(ctx *commandContext) *cobra.Command {
	var actionName string
	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Queue a raw e-mail from stdin for the daemon",
		Long: `Copy a message from stdin into the spool, as a mail transport
would. Suitable as a pipe target in a mail alias.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			action, err := ingest.ParseAction(actionName)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if err := maildrop.Prepare(cfg.Daemon.SpoolPath); err != nil {
				return err
			}
			path, err := maildrop.Deliver(cfg.Daemon.SpoolPath, action, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return ctx.output(cmd, map[string]string{"path": path}, func() string { return path })
		},
	}
	cmd.Flags().StringVar(&actionName, "action", string(ingest.ActionSubscribe), "Action: subscribe, unsubscribe, or forget")
	return cmd
}

func (c *commandContext) handle(cmd *cobra.Command, action ingest.Action, env ingest.Envelope) error {
	return c.withContainer(func(i do.Injector) error {
		frontDoor, err := do.Invoke[*ingest.FrontDoor](i)
		if err != nil {
			return err
		}
		result, err := frontDoor.Handle(cmd.Context(), action, env)
		if err != nil {
			return err
		}
		return c.output(cmd, result, func() string {
			return fmt.Sprintf("%s %s\n%s", result.Action, result.Sender, renderReport(result.Report))
		})
	})
}

func readMessage(cmd *cobra.Command, name string) (*mailmsg.Message, error) {
	var r io.Reader = cmd.InOrStdin()
	if name != "-" {
		f, err := os.Open(name) //#nosec G304 -- file named on the command line
		if err != nil {
			return nil, fmt.Errorf("open message: %w", err)
		}
		defer f.Close()
		r = f
	}
	return mailmsg.Parse(r)
}
