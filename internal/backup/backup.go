package backup

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"github.com/communalgrowth/docsub/internal/backup/stream"
	"github.com/communalgrowth/docsub/internal/domain"
)

// Source is the read side of the store a backup needs.
type Source interface {
	ListDocuments(ctx context.Context) ([]*domain.Document, error)
	SubscriberEmails(ctx context.Context, docIDs []int64) (map[int64][]string, error)
}

// BackupResult describes a written backup.
type BackupResult struct {
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Counts   EntityCounts  `json:"counts"`
	Duration time.Duration `json:"duration"`
}

// BackupService creates backups.
type BackupService struct {
	source Source
	logger *slog.Logger
}

// NewBackupService creates a BackupService.
func NewBackupService(src Source, logger *slog.Logger) *BackupService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BackupService{source: src, logger: logger}
}

// Create writes a backup to outputPath, or to a timestamped file in dir
// when outputPath is empty. The file appears only once complete.
func (s *BackupService) Create(ctx context.Context, dir, outputPath string) (*BackupResult, error) {
	start := time.Now()
	if outputPath == "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create backup dir: %w", err)
		}
		outputPath = filepath.Join(dir, fmt.Sprintf("docsub-backup-%s.zip", start.Format("2006-01-02-150405")))
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".backup-*.zip")
	if err != nil {
		return nil, fmt.Errorf("create backup file: %w", err)
	}
	defer os.Remove(tmp.Name())

	manifest, err := s.Write(ctx, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close backup file: %w", cerr)
	}
	if err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		return nil, fmt.Errorf("finalize backup: %w", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, err
	}

	result := &BackupResult{
		Path:     outputPath,
		Size:     info.Size(),
		Counts:   manifest.Counts,
		Duration: time.Since(start),
	}
	s.logger.Info("backup complete",
		"path", result.Path,
		"size", result.Size,
		"documents", result.Counts.Documents,
		"duration", result.Duration)
	return result, nil
}

// Write streams a backup archive to w.
func (s *BackupService) Write(ctx context.Context, w io.Writer) (*Manifest, error) {
	docs, err := s.source.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	ids := make([]int64, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	subs, err := s.source.SubscriberEmails(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}

	zw := zip.NewWriter(w)
	dw, err := stream.NewWriter(zw, documentsFile)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{Version: FormatVersion, CreatedAt: time.Now().UTC()}
	seen := make(map[string]struct{})
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emails := subs[d.ID]
		if err := dw.Write(newRecord(d, emails)); err != nil {
			return nil, fmt.Errorf("write document %d: %w", d.ID, err)
		}
		manifest.Counts.Subscriptions += len(emails)
		for _, e := range emails {
			seen[e] = struct{}{}
		}
	}
	manifest.Counts.Documents = dw.Count()
	manifest.Counts.Subscribers = len(seen)

	mw, err := zw.Create(manifestFile)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(mw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}
	return manifest, nil
}
