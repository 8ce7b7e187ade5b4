package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fstash/internal/models"
)

const fileColumns = "id, blob_locator, original_filename, file_type, size, uploaded_at, content_hash, is_duplicate, reference_count, referenced_file"

// GetFile returns one record by id, or ErrNotFound.
func (s *Store) GetFile(ctx context.Context, id string) (*models.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	record, err := scanFile(row)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}
	return record, nil
}

// FindCanonicalByHash returns the canonical record owning digest, or nil
// when the digest is unknown. Uses the unique content_hash index.
func (s *Store) FindCanonicalByHash(ctx context.Context, digest string) (*models.FileRecord, error) {
	digest = strings.ToLower(strings.TrimSpace(digest))
	if digest == "" {
		return nil, fmt.Errorf("content hash is required")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE content_hash = ?`, digest)
	return scanFile(row)
}

// InsertCanonical inserts a canonical record. The unique index over
// content_hash turns a concurrent insert of the same digest into
// ErrHashExists; it never silently overwrites.
func (s *Store) InsertCanonical(ctx context.Context, record *models.FileRecord) error {
	if err := validateInsert(record); err != nil {
		return err
	}
	if record.IsDuplicate {
		return ErrNotCanonical
	}
	if record.ContentHash == nil || strings.TrimSpace(*record.ContentHash) == "" {
		return fmt.Errorf("canonical record requires a content hash")
	}
	if record.ReferencedFile != nil {
		return fmt.Errorf("canonical record must not reference another record")
	}

	normalized := strings.ToLower(strings.TrimSpace(*record.ContentHash))
	record.ContentHash = &normalized
	record.ReferenceCount = 1
	fillUploadedAt(record)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (`+fileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 1, NULL)
	`, record.ID, record.BlobLocator, record.OriginalFilename, record.FileType,
		record.Size, formatTime(record.UploadedAt), normalized)
	if err != nil {
		if isHashUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrHashExists, normalized)
		}
		return err
	}
	return nil
}

// InsertDuplicate inserts a duplicate record and increments the referenced
// canonical's reference count in one transaction. The canonical row is
// verified live inside the transaction, so a duplicate can never be linked
// to a record a concurrent delete has already removed.
func (s *Store) InsertDuplicate(ctx context.Context, record *models.FileRecord) (err error) {
	if err := validateInsert(record); err != nil {
		return err
	}
	if !record.IsDuplicate {
		return ErrNotDuplicate
	}
	if record.ContentHash != nil {
		return fmt.Errorf("duplicate record must not carry a content hash")
	}
	if record.ReferencedFile == nil || strings.TrimSpace(*record.ReferencedFile) == "" {
		return fmt.Errorf("duplicate record requires a referenced file")
	}

	record.ReferenceCount = 1
	fillUploadedAt(record)
	canonicalID := *record.ReferencedFile

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	applied, err := incrementRefCountTx(ctx, tx, canonicalID, 1)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("referenced file %s: %w", canonicalID, ErrNotFound)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO files (`+fileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, NULL, 1, 1, ?)
	`, record.ID, record.BlobLocator, record.OriginalFilename, record.FileType,
		record.Size, formatTime(record.UploadedAt), canonicalID); err != nil {
		return err
	}

	return tx.Commit()
}

// IncrementRefCount applies a signed delta to a canonical record's
// reference count as a single UPDATE, never a read-modify-write, so
// concurrent deltas always sum correctly. A missing or duplicate target
// yields applied=false with no error: a decrement racing a completed
// canonical delete is a no-op by design.
func (s *Store) IncrementRefCount(ctx context.Context, id string, delta int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE files SET reference_count = reference_count + ? WHERE id = ? AND is_duplicate = 0",
		delta, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// DeleteFile removes one record under the protect-on-delete policy and
// returns the deleted record. The state decision and the delete share a
// transaction:
//   - duplicate: decrement its canonical and delete the row
//   - canonical with reference_count <= 1: delete the row (caller owns
//     removing the blob afterwards)
//   - canonical with reference_count > 1: ErrProtected, nothing changes
func (s *Store) DeleteFile(ctx context.Context, id string) (_ *models.FileRecord, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	record, err := scanFile(row)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}

	if record.IsDuplicate {
		// The canonical may already be gone if deletes raced; the
		// decrement is then a no-op rather than an error.
		if record.ReferencedFile != nil {
			if _, err = incrementRefCountTx(ctx, tx, *record.ReferencedFile, -1); err != nil {
				return nil, err
			}
		}
	} else if record.ReferenceCount > 1 {
		err = fmt.Errorf("%d references outstanding: %w", record.ReferenceCount, ErrProtected)
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM files WHERE id = ?", id); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return record, nil
}

// ListFiles returns records matching filter, newest upload first.
func (s *Store) ListFiles(ctx context.Context, filter ListFilter) ([]models.FileRecord, error) {
	query, args := buildListQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.FileRecord{}
	for rows.Next() {
		record, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		if record != nil {
			records = append(records, *record)
		}
	}
	return records, rows.Err()
}

// CanonicalLocators returns the blob locators of all live canonical
// records. Used by GC to identify orphaned blob objects.
func (s *Store) CanonicalLocators(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT blob_locator FROM files WHERE is_duplicate = 0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locators := map[string]struct{}{}
	for rows.Next() {
		var locator string
		if err := rows.Scan(&locator); err != nil {
			return nil, err
		}
		locators[locator] = struct{}{}
	}
	return locators, rows.Err()
}

// Stats aggregates dedup effectiveness over all records.
type Stats struct {
	TotalRecords     int64 `json:"total_records"`
	CanonicalRecords int64 `json:"canonical_records"`
	DuplicateRecords int64 `json:"duplicate_records"`
	StoredBytes      int64 `json:"stored_bytes"`
	LogicalBytes     int64 `json:"logical_bytes"`
	SavedBytes       int64 `json:"saved_bytes"`
}

// FileStats returns record counts and byte totals. StoredBytes counts each
// blob once; LogicalBytes counts every logical upload.
func (s *Store) FileStats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN is_duplicate = 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN is_duplicate = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN is_duplicate = 0 THEN size ELSE 0 END), 0),
		       COALESCE(SUM(size), 0)
		FROM files
	`).Scan(&stats.TotalRecords, &stats.CanonicalRecords, &stats.DuplicateRecords,
		&stats.StoredBytes, &stats.LogicalBytes)
	if err != nil {
		return Stats{}, err
	}
	stats.SavedBytes = stats.LogicalBytes - stats.StoredBytes
	return stats, nil
}

func incrementRefCountTx(ctx context.Context, tx *sql.Tx, id string, delta int64) (bool, error) {
	result, err := tx.ExecContext(ctx,
		"UPDATE files SET reference_count = reference_count + ? WHERE id = ? AND is_duplicate = 0",
		delta, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func validateInsert(record *models.FileRecord) error {
	if record == nil {
		return fmt.Errorf("file record is required")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(record.BlobLocator) == "" {
		return fmt.Errorf("blob_locator is required")
	}
	if record.Size < 0 {
		return fmt.Errorf("size must be >= 0")
	}
	return nil
}

func fillUploadedAt(record *models.FileRecord) {
	if record.UploadedAt.IsZero() {
		record.UploadedAt = time.Now().UTC()
	}
}

func isHashUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") &&
		strings.Contains(err.Error(), "content_hash")
}

func scanFile(scanner interface {
	Scan(dest ...any) error
}) (*models.FileRecord, error) {
	record := models.FileRecord{}

	var uploadedAt string
	var contentHash, referencedFile sql.NullString
	var isDuplicate int

	err := scanner.Scan(
		&record.ID,
		&record.BlobLocator,
		&record.OriginalFilename,
		&record.FileType,
		&record.Size,
		&uploadedAt,
		&contentHash,
		&isDuplicate,
		&record.ReferenceCount,
		&referencedFile,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	record.IsDuplicate = isDuplicate != 0
	if contentHash.Valid {
		record.ContentHash = &contentHash.String
	}
	if referencedFile.Valid {
		record.ReferencedFile = &referencedFile.String
	}

	parsed, err := parseTime(uploadedAt)
	if err != nil {
		return nil, err
	}
	record.UploadedAt = parsed

	return &record, nil
}

// uploadedAtLayout is fixed-width, unlike RFC3339Nano which trims
// trailing zeros. uploaded_at is range-filtered by string comparison, so
// every stored value and bound must sort lexicographically in time order.
const uploadedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(uploadedAtLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
