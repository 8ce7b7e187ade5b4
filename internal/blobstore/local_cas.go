package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const casAlgorithmPrefix = "sha256"

// LocalCAS stores blob bytes in a local content-addressed tree. Two
// uploads with identical bytes resolve to the same locator, so a Put that
// loses a rename race simply keeps the existing object.
type LocalCAS struct {
	root string
}

// NewLocalCAS creates a local CAS rooted at root.
func NewLocalCAS(root string) (*LocalCAS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local cas root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, err
	}
	return &LocalCAS{root: abs}, nil
}

// Put streams bytes to a temp file, computes SHA-256, and moves the
// object into place under its digest-derived locator.
func (c *LocalCAS) Put(ctx context.Context, r io.Reader) (PutResult, error) {
	var zero PutResult
	if c == nil {
		return zero, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return zero, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	tmp, err := os.CreateTemp(filepath.Join(c.root, "tmp"), "put-*")
	if err != nil {
		return zero, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		cleanup()
		return zero, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return zero, err
	}

	digest := hex.EncodeToString(h.Sum(nil))
	locator := LocatorForDigest(digest)
	dst := filepath.Join(c.root, filepath.FromSlash(locator))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		cleanup()
		return zero, err
	}

	if _, err := os.Stat(dst); err == nil {
		_ = os.Remove(tmpPath)
		return PutResult{Digest: digest, Size: n, Locator: locator}, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		cleanup()
		return zero, err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		if _, statErr := os.Stat(dst); statErr == nil {
			_ = os.Remove(tmpPath)
			return PutResult{Digest: digest, Size: n, Locator: locator}, nil
		}
		cleanup()
		return zero, err
	}

	return PutResult{Digest: digest, Size: n, Locator: locator}, nil
}

// Open returns a reader for the object at locator.
func (c *LocalCAS) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	if c == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := c.pathFromLocator(locator)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Delete removes the object at locator. Missing objects are ignored.
func (c *LocalCAS) Delete(ctx context.Context, locator string) error {
	if c == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := c.pathFromLocator(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Walk visits every stored object locator. Temp spool files are skipped.
func (c *LocalCAS) Walk(ctx context.Context, fn func(locator string, size int64, modTime time.Time) error) error {
	if c == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if fn == nil {
		return fmt.Errorf("walk callback is required")
	}

	base := filepath.Join(c.root, casAlgorithmPrefix)
	return filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), info.Size(), info.ModTime())
	})
}

// LocatorForDigest returns the canonical locator for a hex digest.
func LocatorForDigest(digest string) string {
	return fmt.Sprintf("%s/%s/%s/%s", casAlgorithmPrefix, digest[0:2], digest[2:4], digest)
}

func (c *LocalCAS) pathFromLocator(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", fmt.Errorf("blob locator is required")
	}
	if strings.HasPrefix(locator, "/") {
		return "", fmt.Errorf("blob locator must be relative")
	}
	clean := filepath.Clean(filepath.FromSlash(locator))
	if clean == "." || strings.HasPrefix(clean, "..") || strings.Contains(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob locator")
	}
	return filepath.Join(c.root, clean), nil
}

var _ Store = (*LocalCAS)(nil)
