package blob

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	auth "github.com/goliatone/go-console-auth"
	goerrors "github.com/goliatone/go-errors"
)

// TokenFile implements auth.RefreshTokenStore on a single file readable only
// by its owner.
type TokenFile struct {
	path string
	mu   sync.Mutex
}

var _ auth.RefreshTokenStore = (*TokenFile)(nil)

// NewTokenFile returns a store writing to path.
func NewTokenFile(path string) (*TokenFile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, goerrors.New("refresh token file is required", goerrors.CategoryBadInput)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create token directory")
	}
	return &TokenFile{path: path}, nil
}

// Load returns an empty token when none was saved.
func (f *TokenFile) Load(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read refresh token")
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *TokenFile) Save(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token), 0o600); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write refresh token")
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write refresh token")
	}
	return nil
}

func (f *TokenFile) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear refresh token")
	}
	return nil
}
