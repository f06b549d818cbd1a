// Package providers contains dependency injection providers for docsub.
package providers

import (
	"os"

	"github.com/samber/do/v2"

	"github.com/communalgrowth/docsub/internal/config"
	"github.com/communalgrowth/docsub/internal/logger"
)

// ProvideConfig loads the configuration from the flags registered in the
// container, falling back to environment and defaults when there are none.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	flags, err := do.Invoke[*config.Flags](i)
	if err != nil {
		flags = nil
	}
	return config.Load(flags)
}

// ProvideLogger provides the structured logger. Logs go to stderr so
// command output on stdout stays clean.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Writer:      os.Stderr,
		Format:      cfg.Logger.Format,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Debug("configuration loaded",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Storage.DataPath,
		"spool_path", cfg.Daemon.SpoolPath,
		"max_docids", cfg.Ingest.MaxDocIDs,
	)

	return log, nil
}
