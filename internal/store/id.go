package store

import "github.com/google/uuid"

// NewFileID returns a new random record id. Record ids are UUIDv4 strings;
// validation lives in the server layer.
func NewFileID() string {
	return uuid.NewString()
}
