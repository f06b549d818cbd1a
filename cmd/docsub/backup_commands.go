package main

import (
	"fmt"
	"path/filepath"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/communalgrowth/docsub/internal/backup"
	"github.com/communalgrowth/docsub/internal/config"
)

func newBackupCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export documents and subscriptions to a zip archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withContainer(func(i do.Injector) error {
				cfg := do.MustInvoke[*config.Config](i)
				svc, err := do.Invoke[*backup.BackupService](i)
				if err != nil {
					return err
				}
				result, err := svc.Create(cmd.Context(), filepath.Join(cfg.Storage.DataPath, "backups"), output)
				if err != nil {
					return err
				}
				return ctx.output(cmd, result, func() string {
					return fmt.Sprintf("%s: %d documents, %d subscribers, %d subscriptions",
						result.Path, result.Counts.Documents, result.Counts.Subscribers, result.Counts.Subscriptions)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Backup file (default: <data-path>/backups/docsub-backup-<time>.zip)")
	return cmd
}

func newRestoreCommand(ctx *commandContext) *cobra.Command {
	var opts backup.RestoreOptions
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Merge a backup archive into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withContainer(func(i do.Injector) error {
				svc, err := do.Invoke[*backup.RestoreService](i)
				if err != nil {
					return err
				}
				result, err := svc.Restore(cmd.Context(), args[0], opts)
				if err != nil {
					return err
				}
				return ctx.output(cmd, result, func() string {
					rows := [][]string{
						{"created", fmt.Sprint(result.Created)},
						{"merged", fmt.Sprint(result.Merged)},
						{"linked", fmt.Sprint(result.Linked)},
						{"subscribers created", fmt.Sprint(result.Subscribers)},
						{"errors", fmt.Sprint(len(result.Errors))},
					}
					for _, e := range result.Errors {
						rows = append(rows, []string{fmt.Sprintf("line %d", e.Line), e.Error})
					}
					return renderTable([]string{"Outcome", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				})
			})
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Validate and count without writing")
	return cmd
}
