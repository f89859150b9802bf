package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	docapp "github.com/fichesante/backend/internal/application/document"
	"github.com/fichesante/backend/internal/domain/shared"
	"github.com/fichesante/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Ensure FileSystemArchivePublisher implements ArchivePublisher
var _ docapp.ArchivePublisher = (*FileSystemArchivePublisher)(nil)

// Storage errors
var (
	ErrInvalidPath     = shared.NewDomainError(shared.CodeInvalidInput, "invalid archive path")
	ErrArchiveNotFound = shared.NewDomainError(shared.CodeNotFound, "archive not found")
)

// FileSystemConfig contains configuration for file system archive storage
type FileSystemConfig struct {
	// BasePath is the root directory of published archives
	BasePath string
	// BaseURL is the URL prefix archives are served under
	// Example: https://docs.example.com/api/v1/archives
	BaseURL string
	// Logger for operations
	Logger *zap.Logger
	// Clock dates the archive directories (default: time.Now)
	Clock func() time.Time
}

// FileSystemArchivePublisher stores batch archives on the local file system.
// The HTTP layer serves them back through Open.
type FileSystemArchivePublisher struct {
	config *FileSystemConfig
	logger *zap.Logger
}

// NewFileSystemArchivePublisher creates the publisher and its base directory
func NewFileSystemArchivePublisher(config *FileSystemConfig) (*FileSystemArchivePublisher, error) {
	if config == nil {
		config = &FileSystemConfig{}
	}
	if config.BasePath == "" {
		config.BasePath = "/data/archives"
	}
	if config.BaseURL == "" {
		config.BaseURL = "/api/v1/archives"
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	if config.Clock == nil {
		config.Clock = time.Now
	}

	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", config.BasePath, err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystemArchivePublisher{config: config, logger: logger}, nil
}

func validateUpload(upload *docapp.ArchiveUpload) error {
	if upload == nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "archive upload is nil")
	}
	if upload.JobID == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "job ID is required")
	}
	if upload.Name == "" || strings.ContainsAny(upload.Name, `/\`) || upload.Name == ".." {
		return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("invalid archive name %q", upload.Name))
	}
	if len(upload.Data) == 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "archive data is empty")
	}
	return nil
}

// Publish writes the archive to {base}/{yyyy}/{mm}/{job id}/{name}
func (s *FileSystemArchivePublisher) Publish(ctx context.Context, upload *docapp.ArchiveUpload) (_ *docapp.PublishedArchive, err error) {
	_, span := telemetry.StartSpan(ctx, "archive.publish", telemetry.AttrStorageBackend.String("filesystem"))
	defer func() { telemetry.EndSpan(span, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateUpload(upload); err != nil {
		return nil, err
	}
	span.SetAttributes(telemetry.AttrArchiveSize.Int(len(upload.Data)))

	now := s.config.Clock()
	relDir := filepath.Join(
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		upload.JobID.String(),
	)
	dirPath := filepath.Join(s.config.BasePath, relDir)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	relPath := filepath.Join(relDir, upload.Name)
	if err := os.WriteFile(filepath.Join(s.config.BasePath, relPath), upload.Data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write archive: %w", err)
	}

	key := filepath.ToSlash(relPath)
	url := s.GetURL(key)
	s.logger.Info("archive stored",
		zap.String("path", key),
		zap.Int("size", len(upload.Data)),
		zap.String("url", url))

	return &docapp.PublishedArchive{
		Key:  key,
		URL:  url,
		Size: int64(len(upload.Data)),
	}, nil
}

// Open returns the archive stored under the relative path and its size
func (s *FileSystemArchivePublisher) Open(ctx context.Context, relPath string) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return nil, 0, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrArchiveNotFound
		}
		return nil, 0, fmt.Errorf("failed to open archive: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("failed to stat archive: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, 0, ErrArchiveNotFound
	}
	return file, info.Size(), nil
}

// Delete removes an archive; a missing archive is not an error
func (s *FileSystemArchivePublisher) Delete(ctx context.Context, relPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete archive: %w", err)
	}
	s.logger.Info("archive deleted", zap.String("path", relPath))
	return nil
}

// resolve maps a relative path under BasePath, rejecting anything that escapes it
func (s *FileSystemArchivePublisher) resolve(relPath string) (string, error) {
	cleanPath := filepath.Clean(filepath.FromSlash(relPath))
	if relPath == "" || filepath.IsAbs(cleanPath) || containsDotDot(relPath) {
		s.logger.Warn("blocked potentially malicious path", zap.String("path", relPath))
		return "", ErrInvalidPath
	}

	absBase, err := filepath.Abs(s.config.BasePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(absBase, cleanPath))
	if err != nil {
		return "", fmt.Errorf("failed to resolve archive path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		s.logger.Warn("path escape attempt blocked",
			zap.String("path", relPath),
			zap.String("absPath", absPath))
		return "", ErrInvalidPath
	}
	return absPath, nil
}

// CleanupOlderThan removes archives older than age and returns how many were removed
func (s *FileSystemArchivePublisher) CleanupOlderThan(ctx context.Context, age time.Duration) (deleted int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "archive.cleanup", telemetry.AttrStorageBackend.String("filesystem"))
	defer func() {
		span.SetAttributes(attribute.Int("archive.deleted", deleted))
		telemetry.EndSpan(span, err)
	}()

	cutoff := s.config.Clock().Add(-age)

	err = filepath.Walk(s.config.BasePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() || filepath.Ext(path) != ".zip" {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				deleted++
				s.logger.Debug("deleted old archive", zap.String("path", path))
			}
		}
		return nil
	})
	if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		return deleted, fmt.Errorf("archive cleanup failed: %w", err)
	}
	err = nil

	s.logger.Info("archive cleanup completed",
		zap.Int("deleted", deleted),
		zap.Duration("age", age))
	return deleted, nil
}

// GetURL returns the public URL of a stored archive
func (s *FileSystemArchivePublisher) GetURL(relPath string) string {
	return fmt.Sprintf("%s/%s", s.config.BaseURL, filepath.ToSlash(filepath.Clean(relPath)))
}

// containsDotDot checks if a path contains ".." components
func containsDotDot(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	return slices.Contains(parts, "..")
}
