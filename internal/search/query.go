package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/communalgrowth/docsub/internal/normalize"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query  string
	Limit  int
	Offset int
}

// DefaultLimit is the number of hits returned when none is asked for.
const DefaultLimit = 100

// SearchResult represents the search results.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit is one matching document.
type SearchHit struct {
	DocumentID int64   `json:"document_id"`
	Score      float64 `json:"score"`
	Title      string  `json:"title"`
}

// Search runs a match query over titles and author last names. The query is
// reduced to letters, digits, spaces and apostrophes first, and every
// remaining word must match. A query with no words matches nothing.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}

	result := &SearchResult{Query: params.Query, Hits: []SearchHit{}}

	searchQuery := buildSearchQuery(params.Query)
	if searchQuery == nil {
		return result, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	searchRequest := bleve.NewSearchRequestOptions(searchQuery, params.Limit, params.Offset, false)
	searchRequest.SortBy([]string{"-_score", "-created_at"})
	searchRequest.Fields = []string{"title"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result.Total = searchResult.Total
	result.TookMs = searchResult.Took.Milliseconds()

	for _, hit := range searchResult.Hits {
		id, err := ParseDocumentKey(hit.ID)
		if err != nil {
			s.logger.Warn("skipping search hit with bad key", "key", hit.ID, "error", err)
			continue
		}
		h := SearchHit{DocumentID: id, Score: hit.Score}
		if t, ok := hit.Fields["title"].(string); ok {
			h.Title = t
		}
		result.Hits = append(result.Hits, h)
	}

	return result, nil
}

// buildSearchQuery returns nil when term has nothing to search for.
func buildSearchQuery(term string) query.Query {
	stripped := strings.Join(strings.Fields(normalize.AlphaNum(term)), " ")
	if stripped == "" {
		return nil
	}

	// The composite field holds title and author tokens, so one word may
	// match the title and another an author.
	q := bleve.NewMatchQuery(stripped)
	q.SetField(allField)
	q.SetOperator(query.MatchQueryOperatorAnd)
	return q
}
