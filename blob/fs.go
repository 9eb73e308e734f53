// Package blob stores console uploads and the remember me token on the local
// filesystem.
package blob

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	auth "github.com/goliatone/go-console-auth"
	goerrors "github.com/goliatone/go-errors"
)

// FSStore implements auth.BlobStore on a directory served under a public
// URL prefix.
type FSStore struct {
	dir     string
	baseURL string
}

var _ auth.BlobStore = (*FSStore)(nil)

// NewFSStore creates the root directory when missing.
func NewFSStore(dir, baseURL string) (*FSStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, goerrors.New("blob directory is required", goerrors.CategoryBadInput)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create blob directory")
	}
	return &FSStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Dir returns the root directory.
func (s *FSStore) Dir() string {
	return s.dir
}

// Upload writes r under key. The object is written to a temporary file and
// renamed so readers never see a partial upload.
func (s *FSStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create blob directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create blob")
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write blob")
	}
	if err := tmp.Close(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write blob")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write blob")
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store blob")
	}
	return nil
}

// URL returns the public URL of key.
func (s *FSStore) URL(ctx context.Context, key string) (string, error) {
	if _, err := s.resolve(key); err != nil {
		return "", err
	}
	return s.baseURL + "/" + path.Clean(key), nil
}

// resolve maps key to a path inside dir, rejecting traversal.
func (s *FSStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + strings.TrimSpace(key))
	if key == "" || clean == "/" || clean[1:] != strings.TrimSpace(key) {
		return "", auth.ErrInvalidInput.Clone().WithMetadata(map[string]any{"key": key})
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean[1:])), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
