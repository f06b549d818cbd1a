package domain

import (
	"slices"
	"time"
)

// Subscriber is an e-mail address interested in one or more documents.
type Subscriber struct {
	CreatedAt   time.Time `json:"created_at"`
	Email       string    `json:"email"`
	DocumentIDs []int64   `json:"document_ids"` // subscription order
}

// Subscribed reports whether the subscriber follows the document.
func (s *Subscriber) Subscribed(docID int64) bool {
	return slices.Contains(s.DocumentIDs, docID)
}

// Link records a subscription. It returns false if it already existed.
func (s *Subscriber) Link(docID int64) bool {
	if s.Subscribed(docID) {
		return false
	}
	s.DocumentIDs = append(s.DocumentIDs, docID)
	return true
}

// Unlink removes the first subscription to docID, if any, and reports
// whether one was removed.
func (s *Subscriber) Unlink(docID int64) bool {
	i := slices.Index(s.DocumentIDs, docID)
	if i < 0 {
		return false
	}
	s.DocumentIDs = slices.Delete(s.DocumentIDs, i, i+1)
	return true
}

// IsOrphan reports whether the subscriber has no subscriptions left.
func (s *Subscriber) IsOrphan() bool {
	return len(s.DocumentIDs) == 0
}
