package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/communalgrowth/docsub/internal/domain"
)

// DocumentSource is the read side of the document store the search service
// needs.
type DocumentSource interface {
	GetDocuments(ctx context.Context, ids []int64) ([]*domain.Document, error)
	ListDocuments(ctx context.Context) ([]*domain.Document, error)
	RecentDocuments(ctx context.Context, limit int) ([]*domain.Document, error)
	CountDocuments(ctx context.Context) (int, error)
	SubscriberEmails(ctx context.Context, docIDs []int64) (map[int64][]string, error)
}

// Row is one line of a search or recent listing.
type Row struct {
	DocumentID  int64    `json:"document_id"`
	Title       string   `json:"title"`
	ID          string   `json:"id"` // display form, e.g. "ISBN-13:9780140328721"
	Authors     []string `json:"authors"`
	Subscribers []string `json:"subscribers"`
}

// Service answers search and recent queries with rows built from the store.
type Service struct {
	index  *SearchIndex
	source DocumentSource
	logger *slog.Logger
}

// NewService creates a search service.
func NewService(index *SearchIndex, source DocumentSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{index: index, source: source, logger: logger}
}

// Search returns up to limit documents matching term, best match first.
func (s *Service) Search(ctx context.Context, term string, limit int) ([]Row, error) {
	res, err := s.index.Search(ctx, SearchParams{Query: term, Limit: limit})
	if err != nil {
		return nil, err
	}
	if len(res.Hits) == 0 {
		return []Row{}, nil
	}

	ids := make([]int64, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.DocumentID
	}
	docs, err := s.source.GetDocuments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load search hits: %w", err)
	}
	if len(docs) < len(ids) {
		s.logger.Warn("search index references missing documents", "hits", len(ids), "found", len(docs))
	}
	return s.rows(ctx, docs)
}

// Recent returns the newest documents that have at least one subscriber.
func (s *Service) Recent(ctx context.Context, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 10
	}
	docs, err := s.source.RecentDocuments(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load recent documents: %w", err)
	}
	return s.rows(ctx, docs)
}

// Reindex rebuilds the index from every stored document.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	docs, err := s.source.ListDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}
	if err := s.index.Rebuild(); err != nil {
		return 0, err
	}
	if err := s.index.IndexDocuments(docs); err != nil {
		return 0, fmt.Errorf("index documents: %w", err)
	}
	s.logger.Info("reindexed documents", "count", len(docs))
	return len(docs), nil
}

// EnsureIndexed reindexes when the index and the store disagree on the
// number of documents, as after a mapping change or a lost index.
func (s *Service) EnsureIndexed(ctx context.Context) error {
	stored, err := s.source.CountDocuments(ctx)
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	indexed, err := s.index.DocumentCount()
	if err != nil {
		return fmt.Errorf("count indexed documents: %w", err)
	}
	if uint64(stored) == indexed {
		return nil
	}
	s.logger.Info("search index out of date", "stored", stored, "indexed", indexed)
	_, err = s.Reindex(ctx)
	return err
}

func (s *Service) rows(ctx context.Context, docs []*domain.Document) ([]Row, error) {
	ids := make([]int64, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	emails, err := s.source.SubscriberEmails(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}

	rows := make([]Row, 0, len(docs))
	for _, d := range docs {
		subs := emails[d.ID]
		if subs == nil {
			subs = []string{}
		}
		rows = append(rows, Row{
			DocumentID:  d.ID,
			Title:       d.Title,
			ID:          d.DisplayID(),
			Authors:     d.AuthorNames(),
			Subscribers: subs,
		})
	}
	return rows, nil
}
