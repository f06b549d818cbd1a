package providers

import (
	"github.com/samber/do/v2"

	"github.com/communalgrowth/docsub/internal/config"
	"github.com/communalgrowth/docsub/internal/engine"
	"github.com/communalgrowth/docsub/internal/ingest"
	"github.com/communalgrowth/docsub/internal/logger"
)

// ProvideEngine provides the reconciliation engine. Documents it creates
// are indexed for search.
func ProvideEngine(i do.Injector) (*engine.Engine, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	resolver := do.MustInvoke[*ResolverHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)

	return engine.New(storeHandle.Store, resolver, log.Logger,
		engine.WithIndexer(indexHandle.SearchIndex),
		engine.WithResolverTimeout(cfg.Resolver.Timeout),
	), nil
}

// ProvideFrontDoor provides the ingestion front door.
func ProvideFrontDoor(i do.Injector) (*ingest.FrontDoor, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	eng := do.MustInvoke[*engine.Engine](i)

	return ingest.NewFrontDoor(eng, cfg.Ingest.MaxDocIDs, log.Logger), nil
}
