package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communalgrowth/docsub/internal/domain"
	"github.com/communalgrowth/docsub/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// matilda creates the usual test document and returns it.
func matilda(t *testing.T, s *Store) *domain.Document {
	t.Helper()
	var doc *domain.Document
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		var err error
		doc, err = tx.CreateDocument(context.Background(), "Matilda",
			domain.IdentifierFields{ISBN10: "0140328726", ISBN13: "9780140328721"},
			[]string{"Roald Dahl", "Quentin Blake"})
		return err
	})
	require.NoError(t, err)
	return doc
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var fk int
	require.NoError(t, s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	for _, table := range []string{"documents", "authors", "document_authors", "subscribers", "subscriptions"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docsub.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	matilda(t, s)
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.CountDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreateDocument_FindByEveryIdentifier(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := matilda(t, s)

	for _, kind := range []domain.Kind{domain.KindISBN10, domain.KindISBN13} {
		doc, err := s.FindDocument(ctx, kind, created.Identifier(kind))
		require.NoError(t, err)
		assert.Equal(t, created.ID, doc.ID)
		assert.Equal(t, "Matilda", doc.Title)
		assert.Equal(t, []string{"Roald Dahl", "Quentin Blake"}, doc.AuthorNames())
	}

	_, err := s.FindDocument(ctx, domain.KindDOI, "10.1/none")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.FindDocument(ctx, domain.KindTitle, "Matilda")
	assert.Error(t, err)
}

func TestCreateDocument_DuplicateIdentifier(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	matilda(t, s)

	err := s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.CreateDocument(ctx, "Other", domain.IdentifierFields{ISBN13: "9780140328721"}, []string{"New Author"})
		assert.ErrorIs(t, err, store.ErrAlreadyExists)

		// The failed create left nothing behind and the tx is still usable.
		_, err = tx.CreateDocument(ctx, "Paper", domain.IdentifierFields{DOI: "10.1103/PhysRevD.13.191"}, nil)
		return err
	})
	require.NoError(t, err)

	n, err := s.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var authors int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM authors WHERE name = 'New Author'`).Scan(&authors))
	assert.Zero(t, authors)
}

func TestCreateDocument_RequiresIdentifier(t *testing.T) {
	s := newTestStore(t)
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		_, err := tx.CreateDocument(context.Background(), "Nameless", domain.IdentifierFields{}, nil)
		return err
	})
	assert.Error(t, err)
}

func TestCreateDocument_SharedAuthorsAreExactStrings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	matilda(t, s)

	err := s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.CreateDocument(ctx, "The BFG", domain.IdentifierFields{ISBN10: "0142410381"},
			[]string{"Roald Dahl", "R. Dahl", "Roald Dahl"})
		return err
	})
	require.NoError(t, err)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM authors`).Scan(&n))
	assert.Equal(t, 3, n, "Roald Dahl, Quentin Blake, R. Dahl")

	doc, err := s.FindDocument(ctx, domain.KindISBN10, "0142410381")
	require.NoError(t, err)
	assert.Equal(t, []string{"Roald Dahl", "R. Dahl"}, doc.AuthorNames())
}

func TestAttachIdentifier(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var doc *domain.Document
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		var err error
		doc, err = tx.CreateDocument(ctx, "Matilda", domain.IdentifierFields{ISBN10: "0140328726"}, nil)
		if err != nil {
			return err
		}
		return tx.AttachIdentifier(ctx, doc, domain.KindISBN13, "9780140328721")
	}))
	assert.Equal(t, "9780140328721", doc.ISBN13)

	found, err := s.FindDocument(ctx, domain.KindISBN13, "9780140328721")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, found.ID)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		// Same value again is fine.
		require.NoError(t, tx.AttachIdentifier(ctx, doc, domain.KindISBN13, "9780140328721"))
		// A different value in a filled slot is not.
		return tx.AttachIdentifier(ctx, doc, domain.KindISBN13, "9780000000000")
	})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestAttachIdentifier_TakenByAnotherDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	matilda(t, s)

	err := s.WithTx(ctx, func(tx store.Tx) error {
		other, err := tx.CreateDocument(ctx, "Other", domain.IdentifierFields{DOI: "10.1/other"}, nil)
		if err != nil {
			return err
		}
		return tx.AttachIdentifier(ctx, other, domain.KindISBN10, "0140328726")
	})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	// The whole transaction rolled back.
	_, err = s.FindDocument(ctx, domain.KindDOI, "10.1/other")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubscriptions_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := matilda(t, s)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		sub, err := tx.CreateSubscriber(ctx, "a@example.org")
		require.NoError(t, err)

		linked, err := tx.AddSubscription(ctx, sub, doc)
		require.NoError(t, err)
		assert.True(t, linked)

		linked, err = tx.AddSubscription(ctx, sub, doc)
		require.NoError(t, err)
		assert.False(t, linked, "second link is a no-op")
		assert.Equal(t, []int64{doc.ID}, sub.DocumentIDs)
		return nil
	}))

	sub, err := s.FindSubscriber(ctx, "a@example.org")
	require.NoError(t, err)
	assert.Equal(t, []int64{doc.ID}, sub.DocumentIDs)

	emails, err := s.SubscriberEmails(ctx, []int64{doc.ID})
	require.NoError(t, err)
	assert.Equal(t, map[int64][]string{doc.ID: {"a@example.org"}}, emails)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		deleted, err := tx.DeleteSubscriberIfOrphan(ctx, sub)
		require.NoError(t, err)
		assert.False(t, deleted, "still subscribed")

		removed, err := tx.RemoveSubscription(ctx, sub, doc)
		require.NoError(t, err)
		assert.True(t, removed)

		deleted, err = tx.DeleteSubscriberIfOrphan(ctx, sub)
		require.NoError(t, err)
		assert.True(t, deleted)
		return nil
	}))

	_, err = s.FindSubscriber(ctx, "a@example.org")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The document outlives its subscribers.
	_, err = s.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
}

func TestCreateSubscriber_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.CreateSubscriber(ctx, "a@example.org"); err != nil {
			return err
		}
		_, err := tx.CreateSubscriber(ctx, "a@example.org")
		assert.ErrorIs(t, err, store.ErrAlreadyExists)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteSubscriber_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := matilda(t, s)

	var paper *domain.Document
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		var err error
		paper, err = tx.CreateDocument(ctx, "Paper", domain.IdentifierFields{ArXiv: "1403.5335"}, nil)
		if err != nil {
			return err
		}
		sub, err := tx.CreateSubscriber(ctx, "a@example.org")
		if err != nil {
			return err
		}
		for _, d := range []*domain.Document{doc, paper} {
			if _, err := tx.AddSubscription(ctx, sub, d); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		sub, err := tx.FindSubscriber(ctx, "a@example.org")
		if err != nil {
			return err
		}
		assert.Len(t, sub.DocumentIDs, 2)
		return tx.DeleteSubscriber(ctx, sub)
	}))

	var edges int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM subscriptions`).Scan(&edges))
	assert.Zero(t, edges)

	n, err := s.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecentDocuments_OnlySubscribed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		sub, err := tx.CreateSubscriber(ctx, "a@example.org")
		if err != nil {
			return err
		}
		for i := 0; i < 4; i++ {
			d, err := tx.CreateDocument(ctx, fmt.Sprintf("Doc %d", i),
				domain.IdentifierFields{DOI: fmt.Sprintf("10.1/%d", i)}, nil)
			if err != nil {
				return err
			}
			if i%2 == 0 {
				if _, err := tx.AddSubscription(ctx, sub, d); err != nil {
					return err
				}
			}
		}
		return nil
	}))

	docs, err := s.RecentDocuments(ctx, 10)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Doc 2", docs[0].Title)
	assert.Equal(t, "Doc 0", docs[1].Title)

	docs, err = s.RecentDocuments(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestGetDocuments_KeepsRequestedOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first := matilda(t, s)

	var second *domain.Document
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		var err error
		second, err = tx.CreateDocument(ctx, "Paper", domain.IdentifierFields{ArXiv: "1403.5335"}, []string{"A. Author"})
		return err
	}))

	docs, err := s.GetDocuments(ctx, []int64{second.ID, 999, first.ID})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, second.ID, docs[0].ID)
	assert.Equal(t, first.ID, docs[1].ID)
	assert.Equal(t, []string{"A. Author"}, docs[0].AuthorNames())

	all, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.CreateSubscriber(ctx, "a@example.org"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.FindSubscriber(ctx, "a@example.org")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTx_ConcurrentWriters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := matilda(t, s)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.WithTx(ctx, func(tx store.Tx) error {
				sub, err := tx.CreateSubscriber(ctx, fmt.Sprintf("user%d@example.org", i))
				if err != nil {
					return err
				}
				_, err = tx.AddSubscription(ctx, sub, doc)
				return err
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	emails, err := s.SubscriberEmails(ctx, []int64{doc.ID})
	require.NoError(t, err)
	assert.Len(t, emails[doc.ID], 8)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: documents.isbn10 (2067)")))
	assert.False(t, isUniqueViolation(errors.New("no such table")))
	assert.False(t, isUniqueViolation(nil))
}
