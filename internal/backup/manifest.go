package backup

import (
	"time"

	"github.com/communalgrowth/docsub/internal/domain"
)

// FormatVersion is the backup format version. Increment major on breaking changes.
const FormatVersion = "1.0"

// Archive entries.
const (
	manifestFile  = "manifest.json"
	documentsFile = "documents.jsonl"
)

// Manifest describes backup contents.
type Manifest struct {
	Version   string       `json:"version"`
	CreatedAt time.Time    `json:"created_at"`
	Counts    EntityCounts `json:"counts"`
}

// EntityCounts tracks entity counts for validation and reporting.
type EntityCounts struct {
	Documents     int `json:"documents"`
	Subscribers   int `json:"subscribers"`
	Subscriptions int `json:"subscriptions"`
}

// DocumentRecord is one line of documents.jsonl: a document with its
// authors in credit order and its subscribers in subscription order.
type DocumentRecord struct {
	Title       string    `json:"title"`
	Authors     []string  `json:"authors,omitempty"`
	ISBN10      string    `json:"isbn10,omitempty"`
	ISBN13      string    `json:"isbn13,omitempty"`
	DOI         string    `json:"doi,omitempty"`
	ArXiv       string    `json:"arxiv,omitempty"`
	Subscribers []string  `json:"subscribers,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r *DocumentRecord) fields() domain.IdentifierFields {
	return domain.IdentifierFields{ISBN10: r.ISBN10, ISBN13: r.ISBN13, DOI: r.DOI, ArXiv: r.ArXiv}
}

func newRecord(doc *domain.Document, subscribers []string) DocumentRecord {
	return DocumentRecord{
		Title:       doc.Title,
		Authors:     doc.AuthorNames(),
		ISBN10:      doc.ISBN10,
		ISBN13:      doc.ISBN13,
		DOI:         doc.DOI,
		ArXiv:       doc.ArXiv,
		Subscribers: subscribers,
		CreatedAt:   doc.CreatedAt,
	}
}
