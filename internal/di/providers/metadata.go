package providers

import (
	"github.com/samber/do/v2"

	"github.com/communalgrowth/docsub/internal/config"
	"github.com/communalgrowth/docsub/internal/logger"
	"github.com/communalgrowth/docsub/internal/metadata"
	"github.com/communalgrowth/docsub/internal/metadata/catalog"
	"github.com/communalgrowth/docsub/internal/ratelimit"
)

// ResolverHandle wraps the metadata resolver and its rate limiter.
type ResolverHandle struct {
	metadata.Resolver
	limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdowner.
func (h *ResolverHandle) Shutdown() error {
	h.limiter.Stop()
	return nil
}

// ProvideResolver provides the metadata resolver. Without a catalog every
// lookup comes back empty, so only documents already in the store can be
// subscribed to.
func ProvideResolver(i do.Injector) (*ResolverHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	var resolver metadata.Resolver = metadata.Unavailable
	if cfg.Resolver.CatalogPath != "" {
		c, err := catalog.Load(cfg.Resolver.CatalogPath)
		if err != nil {
			return nil, err
		}
		log.Debug("catalog loaded", "path", cfg.Resolver.CatalogPath, "entries", c.Len())
		resolver = c
	} else {
		log.Debug("no catalog configured, new documents cannot be resolved")
	}

	limiter := ratelimit.New(cfg.Resolver.RPS, cfg.Resolver.Burst)
	return &ResolverHandle{
		Resolver: metadata.Throttled(resolver, limiter),
		limiter:  limiter,
	}, nil
}
