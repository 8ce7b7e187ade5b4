package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"fstash/internal/blobstore"
	"fstash/internal/dedup"
	"fstash/internal/models"
	"fstash/internal/store"
)

// A lost uniqueness race surfaces as ErrHashExists and the ingest
// retries against the winner's row; a canonical deleted mid-ingest
// surfaces as ErrNotFound and retries the lookup. Two full cycles
// is already pathological contention.
const maxIngestAttempts = 3

// FileService orchestrates dedup ingestion, deletion, and blob GC.
type FileService struct {
	files store.FileStore
	blobs blobstore.Store
}

// IngestInput carries per-upload metadata alongside the content stream.
type IngestInput struct {
	Filename string
	FileType string
}

// FileContent describes a content stream for download.
type FileContent struct {
	Reader   io.ReadCloser
	Size     int64
	FileType string
	Filename string
}

// GCResult reports one orphaned-blob sweep.
type GCResult struct {
	CandidateCount int
	DeletedCount   int
	FailedCount    int
	ReclaimedBytes int64
	DryRun         bool
}

// NewFileService constructs a FileService.
func NewFileService(files store.FileStore, blobs blobstore.Store) *FileService {
	return &FileService{files: files, blobs: blobs}
}

// Ingest stores one upload, deduplicating by content digest. Identical
// bytes land as a duplicate record sharing the canonical's blob; new
// content becomes a canonical record owning a fresh blob. The record's
// metadata never influences which path is taken.
func (s *FileService) Ingest(ctx context.Context, in IngestInput, content io.ReadSeeker) (models.FileRecord, error) {
	var zero models.FileRecord
	if s == nil || s.files == nil || s.blobs == nil {
		return zero, internalError(fmt.Errorf("file service is not configured"))
	}
	if content == nil {
		return zero, missingContent(fmt.Errorf("file content is required"))
	}

	filename := strings.TrimSpace(in.Filename)
	if filename == "" {
		return zero, validationError("file", ErrCodeMissingRequired, fmt.Errorf("filename is required"))
	}

	digest, size, err := dedup.Digest(content)
	if err != nil {
		return zero, internalError(fmt.Errorf("digest upload: %w", err))
	}

	for attempt := 0; attempt < maxIngestAttempts; attempt++ {
		canonical, err := s.files.FindCanonicalByHash(ctx, digest)
		if err != nil {
			return zero, storeFailure(err)
		}

		if canonical != nil {
			record, err := s.ingestDuplicate(ctx, in, canonical, size)
			if errors.Is(err, store.ErrNotFound) {
				// Canonical deleted between lookup and insert.
				continue
			}
			if err != nil {
				return zero, storeFailure(err)
			}
			return record, nil
		}

		record, err := s.ingestCanonical(ctx, in, digest, size, content)
		if errors.Is(err, store.ErrHashExists) {
			// A concurrent ingest of the same bytes won the unique
			// index; fall back to the duplicate path against its row.
			continue
		}
		if err != nil {
			return zero, err
		}
		return record, nil
	}

	return zero, internalError(fmt.Errorf("ingest contention for digest %s", digest))
}

func (s *FileService) ingestDuplicate(ctx context.Context, in IngestInput, canonical *models.FileRecord, size int64) (models.FileRecord, error) {
	canonicalID := canonical.ID
	record := models.FileRecord{
		ID:               store.NewFileID(),
		BlobLocator:      canonical.BlobLocator,
		OriginalFilename: strings.TrimSpace(in.Filename),
		FileType:         strings.TrimSpace(in.FileType),
		Size:             size,
		IsDuplicate:      true,
		ReferencedFile:   &canonicalID,
	}
	if err := s.files.InsertDuplicate(ctx, &record); err != nil {
		return models.FileRecord{}, err
	}
	return record, nil
}

func (s *FileService) ingestCanonical(ctx context.Context, in IngestInput, digest string, size int64, content io.ReadSeeker) (models.FileRecord, error) {
	var zero models.FileRecord

	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return zero, internalError(fmt.Errorf("rewind upload: %w", err))
	}
	put, err := s.blobs.Put(ctx, content)
	if err != nil {
		return zero, internalError(fmt.Errorf("store blob: %w", err))
	}
	if put.Digest != digest {
		return zero, internalError(fmt.Errorf("upload changed while reading: digest %s became %s", digest, put.Digest))
	}

	record := models.FileRecord{
		ID:               store.NewFileID(),
		BlobLocator:      put.Locator,
		OriginalFilename: strings.TrimSpace(in.Filename),
		FileType:         strings.TrimSpace(in.FileType),
		Size:             size,
		ContentHash:      &digest,
	}
	if err := s.files.InsertCanonical(ctx, &record); err != nil {
		if errors.Is(err, store.ErrHashExists) {
			// The blob is content-addressed, so the losing write left
			// the exact bytes the winner's row points at. Nothing to
			// undo.
			return zero, err
		}
		return zero, storeFailure(err)
	}
	return record, nil
}

// Get returns one record by id.
func (s *FileService) Get(ctx context.Context, id string) (models.FileRecord, error) {
	var zero models.FileRecord
	record, err := s.files.GetFile(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return zero, notFound(fmt.Errorf("file not found"))
	}
	if err != nil {
		return zero, storeFailure(err)
	}
	return *record, nil
}

// List returns records matching filter, newest first.
func (s *FileService) List(ctx context.Context, filter store.ListFilter) ([]models.FileRecord, error) {
	records, err := s.files.ListFiles(ctx, filter)
	if err != nil {
		return nil, storeFailure(err)
	}
	if records == nil {
		records = []models.FileRecord{}
	}
	return records, nil
}

// Delete removes one record under the protect-on-delete policy. Deleting
// a duplicate releases its reference on the canonical; deleting a free
// canonical also removes its blob; a canonical with live duplicates is
// refused.
func (s *FileService) Delete(ctx context.Context, id string) error {
	record, err := s.files.DeleteFile(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(fmt.Errorf("file not found"))
	}
	if errors.Is(err, store.ErrProtected) {
		current, getErr := s.files.GetFile(ctx, id)
		if getErr == nil && current != nil {
			return protected(fmt.Errorf("file is referenced by %d duplicate(s)", current.ReferenceCount-1))
		}
		return protected(fmt.Errorf("file is referenced by duplicates"))
	}
	if err != nil {
		return storeFailure(err)
	}

	if record.Canonical() {
		// Identical content ingested after the row delete reuses the
		// digest-derived locator, so the blob may belong to a live
		// canonical again by now. Skipping the removal on a hit (or on
		// a failed lookup) leaves at worst an orphan for GC; removing
		// it would destroy bytes a live record points at.
		if s.contentReclaimed(ctx, record) {
			return nil
		}
		// Row is already gone; a failed blob removal leaves an orphan
		// for GC rather than a dangling record.
		if err := s.blobs.Delete(ctx, record.BlobLocator); err != nil {
			return internalError(fmt.Errorf("delete blob %s: %w", record.BlobLocator, err))
		}
	}
	return nil
}

func (s *FileService) contentReclaimed(ctx context.Context, record *models.FileRecord) bool {
	if record.ContentHash == nil {
		return false
	}
	current, err := s.files.FindCanonicalByHash(ctx, *record.ContentHash)
	if err != nil {
		return true
	}
	return current != nil
}

// OpenContent opens the stored bytes for one record. Duplicates stream
// the canonical's blob through their shared locator.
func (s *FileService) OpenContent(ctx context.Context, id string) (*FileContent, error) {
	record, err := s.files.GetFile(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(fmt.Errorf("file not found"))
	}
	if err != nil {
		return nil, storeFailure(err)
	}

	rc, err := s.blobs.Open(ctx, record.BlobLocator)
	if err != nil {
		return nil, notFound(fmt.Errorf("file content not found"))
	}

	fileType := strings.TrimSpace(record.FileType)
	if fileType == "" {
		fileType = "application/octet-stream"
	}
	filename := strings.TrimSpace(record.OriginalFilename)
	if filename == "" {
		filename = record.ID
	}

	return &FileContent{Reader: rc, Size: record.Size, FileType: fileType, Filename: filename}, nil
}

// Stats returns dedup effectiveness counters.
func (s *FileService) Stats(ctx context.Context) (store.Stats, error) {
	stats, err := s.files.FileStats(ctx)
	if err != nil {
		return store.Stats{}, storeFailure(err)
	}
	return stats, nil
}

// gcGracePeriod keeps the sweep away from objects written after the
// live-locator snapshot: an in-flight ingest stores its blob before its
// row exists, and sweeping that window would delete live bytes.
const gcGracePeriod = 5 * time.Minute

// GCBlobs sweeps blob objects no canonical record points at. Orphans
// arise only from a crash between a canonical row delete and its blob
// delete, so the sweep is cheap and safe to run any time.
func (s *FileService) GCBlobs(ctx context.Context, apply bool) (GCResult, error) {
	result := GCResult{DryRun: !apply}

	live, err := s.files.CanonicalLocators(ctx)
	if err != nil {
		return result, storeFailure(err)
	}

	cutoff := time.Now().Add(-gcGracePeriod)
	type orphan struct {
		locator string
		size    int64
	}
	var orphans []orphan
	err = s.blobs.Walk(ctx, func(locator string, size int64, modTime time.Time) error {
		if _, ok := live[locator]; ok {
			return nil
		}
		if modTime.After(cutoff) {
			return nil
		}
		orphans = append(orphans, orphan{locator: locator, size: size})
		return nil
	})
	if err != nil {
		return result, internalError(fmt.Errorf("walk blob store: %w", err))
	}

	result.CandidateCount = len(orphans)
	if !apply {
		for _, o := range orphans {
			result.ReclaimedBytes += o.size
		}
		return result, nil
	}

	for _, o := range orphans {
		if err := s.blobs.Delete(ctx, o.locator); err != nil {
			result.FailedCount++
			continue
		}
		result.DeletedCount++
		result.ReclaimedBytes += o.size
	}
	return result, nil
}
