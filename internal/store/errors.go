package store

import "errors"

var (
	// ErrNotFound is returned when no record matches the given id.
	ErrNotFound = errors.New("file record not found")

	// ErrHashExists is returned by InsertCanonical when the unique index
	// rejects a second canonical record for the same content hash.
	ErrHashExists = errors.New("canonical record exists for content hash")

	// ErrProtected is returned when deleting a canonical record that
	// still has duplicates referencing its blob.
	ErrProtected = errors.New("canonical record has outstanding duplicates")

	// ErrNotDuplicate is returned when a duplicate-only operation is
	// invoked on a canonical record.
	ErrNotDuplicate = errors.New("record is not a duplicate")

	// ErrNotCanonical is returned when a canonical-only operation is
	// invoked on a duplicate record.
	ErrNotCanonical = errors.New("record is not canonical")
)
