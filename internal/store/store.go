// Package store defines the persistence interface for docsub.
package store

import (
	"context"

	"github.com/communalgrowth/docsub/internal/domain"
)

// Store is the document store. Reads outside a transaction see committed
// data only. All mutation goes through WithTx.
type Store interface {
	// WithTx runs fn in one transaction. The transaction commits if fn
	// returns nil and rolls back otherwise. fn may be called more than once
	// when the database is busy, so it must not have side effects outside tx.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Documents
	FindDocument(ctx context.Context, kind domain.Kind, value string) (*domain.Document, error)
	GetDocument(ctx context.Context, id int64) (*domain.Document, error)
	GetDocuments(ctx context.Context, ids []int64) ([]*domain.Document, error)
	ListDocuments(ctx context.Context) ([]*domain.Document, error)
	RecentDocuments(ctx context.Context, limit int) ([]*domain.Document, error)
	CountDocuments(ctx context.Context) (int, error)

	// Subscribers
	FindSubscriber(ctx context.Context, email string) (*domain.Subscriber, error)
	SubscriberEmails(ctx context.Context, docIDs []int64) (map[int64][]string, error)

	Close() error
}

// Tx is the set of operations the reconciliation engine runs inside one
// transaction. Lookups return ErrNotFound when nothing matches. Inserts
// that collide with an existing row return ErrAlreadyExists.
type Tx interface {
	FindDocument(ctx context.Context, kind domain.Kind, value string) (*domain.Document, error)
	// CreateDocument inserts a document with its authors, creating authors
	// as needed. On error nothing of the document is left behind.
	CreateDocument(ctx context.Context, title string, ids domain.IdentifierFields, authors []string) (*domain.Document, error)
	// AttachIdentifier fills an empty identifier slot of doc. Filling a slot
	// that holds a different value is ErrConflict.
	AttachIdentifier(ctx context.Context, doc *domain.Document, kind domain.Kind, value string) error
	FindOrCreateAuthor(ctx context.Context, name string) (*domain.Author, error)

	FindSubscriber(ctx context.Context, email string) (*domain.Subscriber, error)
	CreateSubscriber(ctx context.Context, email string) (*domain.Subscriber, error)
	// AddSubscription links sub to doc and reports whether a new edge was made.
	AddSubscription(ctx context.Context, sub *domain.Subscriber, doc *domain.Document) (bool, error)
	// RemoveSubscription unlinks sub from doc and reports whether an edge existed.
	RemoveSubscription(ctx context.Context, sub *domain.Subscriber, doc *domain.Document) (bool, error)
	// DeleteSubscriberIfOrphan deletes sub if it has no subscriptions left.
	DeleteSubscriberIfOrphan(ctx context.Context, sub *domain.Subscriber) (bool, error)
	// DeleteSubscriber deletes sub and all of its subscriptions.
	DeleteSubscriber(ctx context.Context, sub *domain.Subscriber) error
}
