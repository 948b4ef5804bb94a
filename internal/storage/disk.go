// Package storage provides the named "disks" media blobs are written to.
//
// A disk is addressed by slash-separated relative paths. Local disks keep
// blobs under a root directory and sign their own temporary URLs; S3 disks
// delegate URL signing to the object store.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

var (
	ErrNotFound         = errors.New("object not found")
	ErrUnknownDisk      = errors.New("unknown disk")
	ErrInvalidPath      = errors.New("invalid storage path")
	ErrNotLocal         = errors.New("disk has no local filesystem path")
	ErrInvalidSignature = errors.New("invalid url signature")
	ErrSignatureExpired = errors.New("url signature expired")
)

// Object describes a stored blob returned by List.
type Object struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Disk is a storage backend addressed by relative paths.
type Disk interface {
	Name() string
	// Put stores r at p, replacing any existing blob, and returns the number of bytes written.
	Put(ctx context.Context, p string, r io.Reader, contentType string) (int64, error)
	Open(ctx context.Context, p string) (io.ReadCloser, error)
	Exists(ctx context.Context, p string) (bool, error)
	// Delete removes p. It reports false with a nil error when p did not exist.
	Delete(ctx context.Context, p string) (bool, error)
	URL(p string) string
	SignedURL(ctx context.Context, p string, expiresAt time.Time) (string, error)
	// Path resolves p to an absolute filesystem path for libraries that need one.
	Path(p string) (string, error)
	List(ctx context.Context, prefix string) ([]Object, error)
}

// CleanPath normalizes a relative storage path and rejects anything that
// would escape the disk root.
func CleanPath(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if p == "" || strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return "", ErrInvalidPath
		}
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}
