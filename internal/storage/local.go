package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const tempPrefix = ".upload-"

// LocalDisk stores blobs under a root directory on the local filesystem.
type LocalDisk struct {
	name    string
	root    string
	baseURL string
	signer  *Signer
}

// NewLocalDisk creates root if needed. baseURL is the public prefix files
// are served under, e.g. "http://localhost:8080/files/public".
func NewLocalDisk(name, root, baseURL string, signer *Signer) (*LocalDisk, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve disk root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create disk root: %w", err)
	}
	return &LocalDisk{
		name:    name,
		root:    abs,
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
	}, nil
}

func (d *LocalDisk) Name() string { return d.name }

// Put writes to a temp file in the target directory and renames it into
// place, so readers never observe a partially written blob.
func (d *LocalDisk) Put(ctx context.Context, p string, r io.Reader, _ string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	abs, err := d.Path(p)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), abs); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("failed to move file into place: %w", err)
	}
	return n, nil
}

func (d *LocalDisk) Open(_ context.Context, p string) (io.ReadCloser, error) {
	abs, err := d.Path(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (d *LocalDisk) Exists(_ context.Context, p string) (bool, error) {
	abs, err := d.Path(p)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (d *LocalDisk) Delete(_ context.Context, p string) (bool, error) {
	abs, err := d.Path(p)
	if err != nil {
		return false, err
	}
	err = os.Remove(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *LocalDisk) URL(p string) string {
	return d.baseURL + "/" + escapePath(p)
}

func (d *LocalDisk) SignedURL(_ context.Context, p string, expiresAt time.Time) (string, error) {
	cleaned, err := CleanPath(p)
	if err != nil {
		return "", err
	}
	expires, signature := d.signer.Sign(d.name, cleaned, expiresAt)
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", signature)
	return d.URL(cleaned) + "?" + q.Encode(), nil
}

func (d *LocalDisk) Path(p string) (string, error) {
	cleaned, err := CleanPath(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(cleaned)), nil
}

func (d *LocalDisk) List(ctx context.Context, prefix string) ([]Object, error) {
	start := d.root
	if prefix != "" {
		abs, err := d.Path(prefix)
		if err != nil {
			return nil, err
		}
		start = abs
	}

	var objects []Object
	err := filepath.WalkDir(start, func(abs string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.root, abs)
		if err != nil {
			return err
		}
		objects = append(objects, Object{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
