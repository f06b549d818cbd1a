package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/communalgrowth/docsub/internal/config"
	"github.com/communalgrowth/docsub/internal/logger"
	"github.com/communalgrowth/docsub/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdowner.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.Storage.DataPath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Debug("search index opened", "documents", docCount)

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*search.Service, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return search.NewService(indexHandle.SearchIndex, storeHandle.Store, log.Logger), nil
}

// EnsureSearchIndexed reindexes when the index has drifted from the store.
// Failures are logged; search keeps working on whatever is indexed.
func EnsureSearchIndexed(ctx context.Context, i do.Injector) {
	svc := do.MustInvoke[*search.Service](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := svc.EnsureIndexed(ctx); err != nil {
		log.Error("search reindex failed", "error", err)
	}
}
