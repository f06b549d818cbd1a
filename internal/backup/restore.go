package backup

import (
	"archive/zip"
	"context"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"

	"github.com/communalgrowth/docsub/internal/backup/stream"
	"github.com/communalgrowth/docsub/internal/domain"
	"github.com/communalgrowth/docsub/internal/errors"
	"github.com/communalgrowth/docsub/internal/store"
)

// Indexer is told about documents a restore created.
type Indexer interface {
	IndexDocument(ctx context.Context, doc *domain.Document) error
}

// RestoreOptions configures restoration.
type RestoreOptions struct {
	DryRun bool // Validate and count without writing
}

// RestoreResult summarizes a restore. Records merge into whatever the store
// already holds: a record matching an existing document by any identifier
// adds its missing identifiers and subscriptions to that document.
type RestoreResult struct {
	Created       int            `json:"created"`
	Merged        int            `json:"merged"`
	Linked        int            `json:"linked"`
	Subscribers   int            `json:"subscribers_created"`
	Errors        []RestoreError `json:"errors,omitempty"`
	Duration      time.Duration  `json:"duration"`
	DryRun        bool           `json:"dry_run,omitempty"`
	ExpectedCount EntityCounts   `json:"expected"`
}

// RestoreError records a line that could not be restored.
type RestoreError struct {
	Line  int    `json:"line"`
	Title string `json:"title,omitempty"`
	Error string `json:"error"`
}

// ValidationResult contains backup validation results.
type ValidationResult struct {
	Valid    bool      `json:"valid"`
	Manifest *Manifest `json:"manifest,omitempty"`
	Errors   []string  `json:"errors,omitempty"`
}

// RestoreService restores from backups.
type RestoreService struct {
	store   store.Store
	indexer Indexer
	logger  *slog.Logger
}

// NewRestoreService creates a RestoreService. indexer may be nil.
func NewRestoreService(st store.Store, indexer Indexer, logger *slog.Logger) *RestoreService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RestoreService{store: st, indexer: indexer, logger: logger}
}

// Validate checks a backup without importing.
func (s *RestoreService) Validate(path string) (*ValidationResult, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return &ValidationResult{Errors: []string{fmt.Sprintf("failed to open backup: %v", err)}}, nil
	}
	defer zr.Close()
	return validateArchive(zr), nil
}

func validateArchive(zr *zip.ReadCloser) *ValidationResult {
	result := &ValidationResult{Valid: true}

	rc, err := stream.OpenFile(zr, manifestFile)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, "missing "+manifestFile)
		return result
	}
	var manifest Manifest
	err = json.NewDecoder(rc).Decode(&manifest)
	rc.Close()
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("invalid manifest: %v", err))
		return result
	}
	result.Manifest = &manifest

	if manifest.Version != FormatVersion {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("unsupported version %s (want %s)", manifest.Version, FormatVersion))
	}
	if rc, err := stream.OpenFile(zr, documentsFile); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, "missing "+documentsFile)
	} else {
		rc.Close()
	}
	return result
}

// Restore merges a backup into the store.
func (s *RestoreService) Restore(ctx context.Context, path string, opts RestoreOptions) (*RestoreResult, error) {
	start := time.Now()
	s.logger.Info("starting restore", "path", path, "dry_run", opts.DryRun)

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "open backup")
	}
	defer zr.Close()

	v := validateArchive(zr)
	if !v.Valid {
		cause := ErrInvalidManifest
		if v.Manifest != nil && v.Manifest.Version != FormatVersion {
			cause = ErrVersionMismatch
		}
		return nil, errors.Wrap(cause, errors.CodeValidation, "backup rejected").WithDetails(v.Errors)
	}

	rc, err := stream.OpenFile(zr, documentsFile)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{DryRun: opts.DryRun, ExpectedCount: v.Manifest.Counts}
	line := 0
	for rec, err := range stream.NewReader[DocumentRecord](rc).All() {
		line++
		if err != nil {
			result.Errors = append(result.Errors, RestoreError{Line: line, Error: err.Error()})
			continue
		}
		if rec.fields().IsEmpty() {
			result.Errors = append(result.Errors, RestoreError{Line: line, Title: rec.Title, Error: "document has no identifier"})
			continue
		}
		if opts.DryRun {
			continue
		}
		if err := s.restoreRecord(ctx, &rec, result); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			result.Errors = append(result.Errors, RestoreError{Line: line, Title: rec.Title, Error: err.Error()})
		}
	}

	result.Duration = time.Since(start)
	s.logger.Info("restore complete",
		"created", result.Created,
		"merged", result.Merged,
		"linked", result.Linked,
		"errors", len(result.Errors),
		"duration", result.Duration)
	return result, nil
}

type recordOutcome struct {
	doc         *domain.Document
	created     bool
	linked      int
	subscribers int
}

func (s *RestoreService) restoreRecord(ctx context.Context, rec *DocumentRecord, result *RestoreResult) error {
	var out recordOutcome
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		out = recordOutcome{}
		return applyRecord(ctx, tx, rec, &out)
	})
	if err != nil {
		return err
	}

	if out.created {
		result.Created++
		if s.indexer != nil {
			if err := s.indexer.IndexDocument(ctx, out.doc); err != nil {
				s.logger.Warn("failed to index restored document", "doc_id", out.doc.ID, "error", err)
			}
		}
	} else {
		result.Merged++
	}
	result.Linked += out.linked
	result.Subscribers += out.subscribers
	return nil
}

func applyRecord(ctx context.Context, tx store.Tx, rec *DocumentRecord, out *recordOutcome) error {
	fields := rec.fields()
	ids := fields.Identifiers()

	for _, id := range ids {
		doc, err := tx.FindDocument(ctx, id.Kind, id.Value)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		out.doc = doc
		break
	}

	if out.doc == nil {
		doc, err := tx.CreateDocument(ctx, rec.Title, fields, rec.Authors)
		if err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		out.doc = doc
		out.created = true
	} else {
		// Fill empty slots with identifiers no other document owns.
		for _, id := range ids {
			if out.doc.Identifier(id.Kind) != "" {
				continue
			}
			_, err := tx.FindDocument(ctx, id.Kind, id.Value)
			if err == nil {
				continue
			}
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if err := tx.AttachIdentifier(ctx, out.doc, id.Kind, id.Value); err != nil {
				return fmt.Errorf("attach %s: %w", id, err)
			}
		}
	}

	for _, email := range rec.Subscribers {
		sub, err := tx.FindSubscriber(ctx, email)
		if errors.Is(err, store.ErrNotFound) {
			sub, err = tx.CreateSubscriber(ctx, email)
			out.subscribers++
		}
		if err != nil {
			return fmt.Errorf("subscriber %s: %w", email, err)
		}
		linked, err := tx.AddSubscription(ctx, sub, out.doc)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", email, err)
		}
		if linked {
			out.linked++
		}
	}
	return nil
}
