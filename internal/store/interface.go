package store

import (
	"context"

	"fstash/internal/models"
)

// FileStore abstracts the record repository consumed by the file service.
type FileStore interface {
	GetFile(ctx context.Context, id string) (*models.FileRecord, error)
	FindCanonicalByHash(ctx context.Context, digest string) (*models.FileRecord, error)
	InsertCanonical(ctx context.Context, record *models.FileRecord) error
	InsertDuplicate(ctx context.Context, record *models.FileRecord) error
	IncrementRefCount(ctx context.Context, id string, delta int64) (bool, error)
	DeleteFile(ctx context.Context, id string) (*models.FileRecord, error)
	ListFiles(ctx context.Context, filter ListFilter) ([]models.FileRecord, error)
	CanonicalLocators(ctx context.Context) (map[string]struct{}, error)
	FileStats(ctx context.Context) (Stats, error)
	SchemaVersion() (int, error)
}

var _ FileStore = (*Store)(nil)
