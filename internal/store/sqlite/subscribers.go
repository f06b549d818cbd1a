package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/communalgrowth/docsub/internal/domain"
	"github.com/communalgrowth/docsub/internal/store"
)

// tx implements store.Tx on a database transaction.
type tx struct {
	q      querier
	logger *slog.Logger
}

var _ store.Tx = (*tx)(nil)

func findSubscriber(ctx context.Context, q querier, email string) (*domain.Subscriber, error) {
	var (
		sub       domain.Subscriber
		createdAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT email, created_at FROM subscribers WHERE email = ?`, email).Scan(&sub.Email, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find subscriber: %w", err)
	}
	if sub.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT document_id FROM subscriptions WHERE subscriber_email = ? ORDER BY rowid`, email)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	sub.DocumentIDs = []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.DocumentIDs = append(sub.DocumentIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return &sub, nil
}

// FindSubscriber returns a subscriber with its subscriptions.
func (s *Store) FindSubscriber(ctx context.Context, email string) (*domain.Subscriber, error) {
	return findSubscriber(ctx, s.db, email)
}

// SubscriberEmails returns, per document, the addresses subscribed to it in
// subscription order. Documents nobody follows are absent from the map.
func (s *Store) SubscriberEmails(ctx context.Context, docIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string)
	if len(docIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, subscriber_email FROM subscriptions
		 WHERE document_id IN (`+placeholders(len(docIDs))+`)
		 ORDER BY document_id, rowid`, int64Args(docIDs)...)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			email string
		)
		if err := rows.Scan(&id, &email); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out[id] = append(out[id], email)
	}
	return out, rows.Err()
}

// FindSubscriber returns a subscriber with its subscriptions.
func (t *tx) FindSubscriber(ctx context.Context, email string) (*domain.Subscriber, error) {
	return findSubscriber(ctx, t.q, email)
}

// CreateSubscriber inserts a subscriber with no subscriptions.
func (t *tx) CreateSubscriber(ctx context.Context, email string) (*domain.Subscriber, error) {
	now := time.Now()
	if _, err := t.q.ExecContext(ctx,
		`INSERT INTO subscribers (email, created_at) VALUES (?, ?)`, email, formatTime(now)); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyExists.WithCause(err)
		}
		return nil, fmt.Errorf("create subscriber: %w", err)
	}
	return &domain.Subscriber{Email: email, CreatedAt: now.UTC(), DocumentIDs: []int64{}}, nil
}

// AddSubscription links sub to doc. Linking twice is a no-op.
func (t *tx) AddSubscription(ctx context.Context, sub *domain.Subscriber, doc *domain.Document) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO subscriptions (subscriber_email, document_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(subscriber_email, document_id) DO NOTHING`,
		sub.Email, doc.ID, formatTime(time.Now()))
	if err != nil {
		return false, fmt.Errorf("add subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add subscription: %w", err)
	}
	sub.Link(doc.ID)
	return n > 0, nil
}

// RemoveSubscription unlinks sub from doc. The document is untouched.
func (t *tx) RemoveSubscription(ctx context.Context, sub *domain.Subscriber, doc *domain.Document) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE subscriber_email = ? AND document_id = ?`, sub.Email, doc.ID)
	if err != nil {
		return false, fmt.Errorf("remove subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove subscription: %w", err)
	}
	sub.Unlink(doc.ID)
	return n > 0, nil
}

// DeleteSubscriberIfOrphan deletes sub when no subscription row refers to it.
func (t *tx) DeleteSubscriberIfOrphan(ctx context.Context, sub *domain.Subscriber) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`DELETE FROM subscribers WHERE email = ?
		 AND NOT EXISTS (SELECT 1 FROM subscriptions WHERE subscriber_email = ?)`,
		sub.Email, sub.Email)
	if err != nil {
		return false, fmt.Errorf("delete orphan subscriber: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete orphan subscriber: %w", err)
	}
	if n > 0 {
		t.logger.Debug("deleted orphan subscriber", "email", sub.Email)
	}
	return n > 0, nil
}

// DeleteSubscriber deletes sub; its subscriptions go with it.
func (t *tx) DeleteSubscriber(ctx context.Context, sub *domain.Subscriber) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM subscribers WHERE email = ?`, sub.Email); err != nil {
		return fmt.Errorf("delete subscriber: %w", err)
	}
	sub.DocumentIDs = sub.DocumentIDs[:0]
	return nil
}
