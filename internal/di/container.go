// Package di wires docsub's components together.
package di

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/communalgrowth/docsub/internal/config"
	"github.com/communalgrowth/docsub/internal/di/providers"
	"github.com/communalgrowth/docsub/internal/engine"
	"github.com/communalgrowth/docsub/internal/ingest"
	"github.com/communalgrowth/docsub/internal/logger"
	"github.com/communalgrowth/docsub/internal/maildrop"
	"github.com/communalgrowth/docsub/internal/search"
)

// NewContainer creates and configures the DI container with all providers.
// flags may be nil.
func NewContainer(flags *config.Flags) *do.RootScope {
	injector := do.New()

	if flags != nil {
		do.ProvideValue(injector, flags)
	}

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Storage
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)

	// Metadata
	do.Provide(injector, providers.ProvideResolver)

	// Reconciliation and ingestion
	do.Provide(injector, providers.ProvideEngine)
	do.Provide(injector, providers.ProvideFrontDoor)

	// Backup
	do.Provide(injector, providers.ProvideBackupService)
	do.Provide(injector, providers.ProvideRestoreService)

	// Workers
	do.Provide(injector, providers.ProvideDaemon)

	return injector
}

// Bootstrap initializes everything the daemon needs and brings the search
// index in line with the store.
func Bootstrap(ctx context.Context, injector do.Injector) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*search.Service](injector)
	if _, err := do.Invoke[*providers.ResolverHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*engine.Engine](injector)
	_ = do.MustInvoke[*ingest.FrontDoor](injector)
	if _, err := do.Invoke[*maildrop.Daemon](injector); err != nil {
		return err
	}

	providers.EnsureSearchIndexed(ctx, injector)
	return nil
}
