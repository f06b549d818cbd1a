// Command docsub subscribes e-mail senders to documents named by ISBN, DOI
// or arXiv identifiers, and runs the mail drop daemon that feeds it.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/communalgrowth/docsub/internal/errors"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "docsub:", err)
		}
		os.Exit(errors.CodeOf(err).ExitCode())
	}
}
