package api

import "fstash/internal/models"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
	Field     string `json:"field,omitempty"`
}

// FileResponse is the wire shape of one file record.
type FileResponse struct {
	models.FileRecord
}

// InfoResponse reports server and store metadata.
type InfoResponse struct {
	DBPath           string `json:"db_path"`
	BlobRoot         string `json:"blob_root"`
	SchemaVersion    int    `json:"schema_version"`
	TotalRecords     int64  `json:"total_records"`
	CanonicalRecords int64  `json:"canonical_records"`
}

// StatsResponse reports dedup effectiveness.
type StatsResponse struct {
	TotalRecords     int64 `json:"total_records"`
	CanonicalRecords int64 `json:"canonical_records"`
	DuplicateRecords int64 `json:"duplicate_records"`
	StoredBytes      int64 `json:"stored_bytes"`
	LogicalBytes     int64 `json:"logical_bytes"`
	SavedBytes       int64 `json:"saved_bytes"`
}

// GCResponse reports one blob GC run.
type GCResponse struct {
	CandidateCount int   `json:"candidate_count"`
	DeletedCount   int   `json:"deleted_count"`
	FailedCount    int   `json:"failed_count"`
	ReclaimedBytes int64 `json:"reclaimed_bytes"`
	DryRun         bool  `json:"dry_run"`
}
