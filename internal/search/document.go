// Package search provides full-text search over documents using Bleve.
// Documents are indexed by title and by their authors' last names.
package search

import (
	"strconv"

	"github.com/communalgrowth/docsub/internal/domain"
	"github.com/communalgrowth/docsub/internal/normalize"
)

// SearchDocument is what the Bleve index stores for one document.
type SearchDocument struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Authors []string `json:"authors,omitempty"` // last names only

	CreatedAt int64 `json:"created_at"` // Unix millis
}

// ToMap converts the document to a map with lowercase field names.
// This ensures field names match the Bleve index mapping.
func (d *SearchDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"title":      d.Title,
		"created_at": d.CreatedAt,
	}
	if len(d.Authors) > 0 {
		m["authors"] = d.Authors
	}
	return m
}

// DocumentKey is the index key of a stored document.
func DocumentKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseDocumentKey reverses DocumentKey.
func ParseDocumentKey(key string) (int64, error) {
	return strconv.ParseInt(key, 10, 64)
}

// ToSearchDocument converts a stored document.
func ToSearchDocument(doc *domain.Document) *SearchDocument {
	sd := &SearchDocument{
		ID:        DocumentKey(doc.ID),
		Title:     doc.Title,
		CreatedAt: doc.CreatedAt.UnixMilli(),
	}
	for _, a := range doc.Authors {
		if last := normalize.LastName(a.Name); last != "" {
			sd.Authors = append(sd.Authors, last)
		}
	}
	return sd
}
