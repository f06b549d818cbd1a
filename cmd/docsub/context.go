package main

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/communalgrowth/docsub/internal/config"
	"github.com/communalgrowth/docsub/internal/di"
)

type commandContext struct {
	flags      *config.Flags
	jsonOutput bool
}

// withContainer builds the DI container, runs fn, and shuts the container
// down. Configuration errors surface before fn runs.
func (c *commandContext) withContainer(fn func(do.Injector) error) error {
	injector := di.NewContainer(c.flags)
	defer injector.Shutdown()

	if _, err := config.Load(c.flags); err != nil {
		return err
	}
	return fn(injector)
}

// output writes v as JSON when --json was given and calls render otherwise.
func (c *commandContext) output(cmd *cobra.Command, v any, render func() string) error {
	if c.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode %s output: %w", cmd.Name(), err)
		}
		return nil
	}
	if out := render(); out != "" {
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	return nil
}
