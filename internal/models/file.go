package models

import "time"

// FileRecord is one logical upload. A canonical record owns the stored
// blob and carries the content hash; a duplicate record shares the
// canonical's blob locator and points back at it via ReferencedFile.
type FileRecord struct {
	ID               string    `json:"id"`
	BlobLocator      string    `json:"blob_locator"`
	OriginalFilename string    `json:"original_filename"`
	FileType         string    `json:"file_type"`
	Size             int64     `json:"size"`
	UploadedAt       time.Time `json:"uploaded_at"`
	ContentHash      *string   `json:"content_hash"`
	IsDuplicate      bool      `json:"is_duplicate"`
	ReferenceCount   int64     `json:"reference_count"`
	ReferencedFile   *string   `json:"referenced_file"`
}

// Canonical reports whether the record owns its blob.
func (f *FileRecord) Canonical() bool {
	return f != nil && !f.IsDuplicate
}
