package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/communalgrowth/docsub/internal/domain"
	"github.com/communalgrowth/docsub/internal/store"
)

const documentColumns = `id, title, isbn10, isbn13, doi, arxiv, created_at`

// identifierColumn maps a resolvable kind to its documents column.
func identifierColumn(kind domain.Kind) (string, error) {
	switch kind {
	case domain.KindISBN10:
		return "isbn10", nil
	case domain.KindISBN13:
		return "isbn13", nil
	case domain.KindDOI:
		return "doi", nil
	case domain.KindArXiv:
		return "arxiv", nil
	case domain.KindTitle:
		return "", fmt.Errorf("documents are not looked up by %s", kind)
	default:
		return "", fmt.Errorf("unknown identifier kind %q", string(kind))
	}
}

// scanDocument scans a document row without its authors.
func scanDocument(scanner interface{ Scan(dest ...any) error }) (*domain.Document, error) {
	var (
		d                         domain.Document
		isbn10, isbn13, doi, arxv sql.NullString
		createdAt                 string
	)
	if err := scanner.Scan(&d.ID, &d.Title, &isbn10, &isbn13, &doi, &arxv, &createdAt); err != nil {
		return nil, err
	}
	d.ISBN10, d.ISBN13, d.DOI, d.ArXiv = isbn10.String, isbn13.String, doi.String, arxv.String

	var err error
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	d.Authors = []domain.Author{}
	return &d, nil
}

func findDocument(ctx context.Context, q querier, kind domain.Kind, value string) (*domain.Document, error) {
	col, err := identifierColumn(kind)
	if err != nil {
		return nil, err
	}
	row := q.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE `+col+` = ?`, value)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document %s:%s: %w", kind, value, err)
	}
	if err := loadAuthors(ctx, q, []*domain.Document{d}); err != nil {
		return nil, err
	}
	return d, nil
}

// queryDocuments runs a SELECT over documentColumns and loads authors.
func queryDocuments(ctx context.Context, q querier, query string, args ...any) ([]*domain.Document, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	if err := loadAuthors(ctx, q, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// loadAuthors fills in Authors for docs in credit order.
func loadAuthors(ctx context.Context, q querier, docs []*domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	byID := make(map[int64]*domain.Document, len(docs))
	ids := make([]int64, 0, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
		ids = append(ids, d.ID)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT document_id, author_name FROM document_authors
		 WHERE document_id IN (`+placeholders(len(ids))+`)
		 ORDER BY document_id, position`, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("query authors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			docID int64
			name  string
		)
		if err := rows.Scan(&docID, &name); err != nil {
			return fmt.Errorf("scan author: %w", err)
		}
		if d, ok := byID[docID]; ok {
			d.Authors = append(d.Authors, domain.Author{Name: name})
		}
	}
	return rows.Err()
}

// FindDocument returns the document carrying kind:value.
func (s *Store) FindDocument(ctx context.Context, kind domain.Kind, value string) (*domain.Document, error) {
	return findDocument(ctx, s.db, kind, value)
}

// GetDocument returns a document by ID.
func (s *Store) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	docs, err := queryDocuments(ctx, s.db, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, store.ErrNotFound
	}
	return docs[0], nil
}

// GetDocuments returns the documents with the given IDs, in the order asked.
// Unknown IDs are skipped.
func (s *Store) GetDocuments(ctx context.Context, ids []int64) ([]*domain.Document, error) {
	if len(ids) == 0 {
		return []*domain.Document{}, nil
	}
	docs, err := queryDocuments(ctx, s.db,
		`SELECT `+documentColumns+` FROM documents WHERE id IN (`+placeholders(len(ids))+`)`,
		int64Args(ids)...)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*domain.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	ordered := make([]*domain.Document, 0, len(docs))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			ordered = append(ordered, d)
			delete(byID, id)
		}
	}
	return ordered, nil
}

// ListDocuments returns every document, oldest first.
func (s *Store) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	return queryDocuments(ctx, s.db, `SELECT `+documentColumns+` FROM documents ORDER BY id`)
}

// RecentDocuments returns the newest documents that have at least one
// subscriber, newest first.
func (s *Store) RecentDocuments(ctx context.Context, limit int) ([]*domain.Document, error) {
	return queryDocuments(ctx, s.db,
		`SELECT `+documentColumns+` FROM documents d
		 WHERE EXISTS (SELECT 1 FROM subscriptions s WHERE s.document_id = d.id)
		 ORDER BY d.id DESC LIMIT ?`, limit)
}

// CountDocuments returns the number of documents.
func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// FindDocument returns the document carrying kind:value.
func (t *tx) FindDocument(ctx context.Context, kind domain.Kind, value string) (*domain.Document, error) {
	return findDocument(ctx, t.q, kind, value)
}

// CreateDocument inserts a document and its author credits under a
// savepoint, so a failure leaves the surrounding transaction untouched.
func (t *tx) CreateDocument(ctx context.Context, title string, ids domain.IdentifierFields, authors []string) (doc *domain.Document, err error) {
	if ids.IsEmpty() {
		return nil, fmt.Errorf("create document %q: no identifier", title)
	}

	if _, err := t.q.ExecContext(ctx, `SAVEPOINT create_document`); err != nil {
		return nil, fmt.Errorf("savepoint: %w", err)
	}
	defer func() {
		if err != nil {
			_, _ = t.q.ExecContext(ctx, `ROLLBACK TO create_document`)
		}
		if _, relErr := t.q.ExecContext(ctx, `RELEASE create_document`); relErr != nil && err == nil {
			doc, err = nil, fmt.Errorf("release savepoint: %w", relErr)
		}
	}()

	now := time.Now()
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO documents (title, isbn10, isbn13, doi, arxiv, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		title, nullString(ids.ISBN10), nullString(ids.ISBN13), nullString(ids.DOI), nullString(ids.ArXiv), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyExists.WithCause(err)
		}
		return nil, fmt.Errorf("insert document: %w", err)
	}
	docID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("document id: %w", err)
	}

	doc = &domain.Document{
		ID:        docID,
		Title:     title,
		ISBN10:    ids.ISBN10,
		ISBN13:    ids.ISBN13,
		DOI:       ids.DOI,
		ArXiv:     ids.ArXiv,
		Authors:   []domain.Author{},
		CreatedAt: now.UTC(),
	}

	seen := make(map[string]bool, len(authors))
	for _, name := range authors {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		author, err := t.FindOrCreateAuthor(ctx, name)
		if err != nil {
			return nil, err
		}
		if _, err := t.q.ExecContext(ctx,
			`INSERT INTO document_authors (document_id, author_name, position) VALUES (?, ?, ?)`,
			docID, author.Name, len(doc.Authors)); err != nil {
			return nil, fmt.Errorf("credit author %q: %w", name, err)
		}
		doc.Authors = append(doc.Authors, *author)
	}

	return doc, nil
}

// AttachIdentifier fills an empty identifier slot of doc.
func (t *tx) AttachIdentifier(ctx context.Context, doc *domain.Document, kind domain.Kind, value string) error {
	col, err := identifierColumn(kind)
	if err != nil {
		return err
	}

	res, err := t.q.ExecContext(ctx,
		`UPDATE documents SET `+col+` = ? WHERE id = ? AND (`+col+` IS NULL OR `+col+` = ?)`,
		value, doc.ID, value)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("attach %s to document %d: %w", kind, doc.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach %s: %w", kind, err)
	}
	if n == 0 {
		if _, err := t.getDocumentRow(ctx, doc.ID); err != nil {
			return err
		}
		return store.ErrConflict.WithDetails(map[string]string{
			"kind":  kind.String(),
			"value": value,
		})
	}

	doc.SetIdentifier(kind, value)
	return nil
}

func (t *tx) getDocumentRow(ctx context.Context, id int64) (*domain.Document, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return d, err
}

// FindOrCreateAuthor returns the author with exactly this name, creating it
// if needed.
func (t *tx) FindOrCreateAuthor(ctx context.Context, name string) (*domain.Author, error) {
	if name == "" {
		return nil, fmt.Errorf("author name is empty")
	}
	if _, err := t.q.ExecContext(ctx,
		`INSERT INTO authors (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, formatTime(time.Now())); err != nil {
		return nil, fmt.Errorf("find or create author %q: %w", name, err)
	}
	return &domain.Author{Name: name}, nil
}
