// Package dedup computes content fingerprints for exact-byte deduplication.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// DigestLength is the hex length of a content digest.
const DigestLength = sha256.Size * 2

// Digest reads r to EOF from the start and returns the lowercase hex
// SHA-256 of the content plus the byte count. The read position of r is
// restored before returning so callers can keep consuming the same stream.
func Digest(r io.ReadSeeker) (string, int64, error) {
	if r == nil {
		return "", 0, fmt.Errorf("reader is required")
	}

	origin, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return "", 0, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", 0, err
	}

	h := sha256.New()
	size, err := io.Copy(h, r)
	if err != nil {
		_, _ = r.Seek(origin, io.SeekStart)
		return "", 0, err
	}

	if _, err := r.Seek(origin, io.SeekStart); err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(h.Sum(nil)), size, nil
}
