package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	auth "github.com/goliatone/go-console-auth"
	"github.com/google/uuid"
)

// Profile store operation names accepted by FailNext.
const (
	OpGet    = "Get"
	OpPut    = "Put"
	OpUpdate = "Update"
	OpQuery  = "Query"
)

// ProfileStore is an in memory auth.ProfileStore.
type ProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*auth.Profile
	failures map[string][]error
	calls    map[string]int
	now      func() time.Time
}

var _ auth.ProfileStore = (*ProfileStore)(nil)

// NewProfileStore returns an empty store using now for UpdatedAt.
func NewProfileStore(now func() time.Time) *ProfileStore {
	if now == nil {
		now = time.Now
	}
	return &ProfileStore{
		profiles: map[string]*auth.Profile{},
		failures: map[string][]error{},
		calls:    map[string]int{},
		now:      now,
	}
}

// FailNext makes the next call to op return err.
func (s *ProfileStore) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// Calls returns how many times op was invoked.
func (s *ProfileStore) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Len returns the number of stored profiles.
func (s *ProfileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}

func (s *ProfileStore) Get(ctx context.Context, uid string) (*auth.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked(OpGet); err != nil {
		return nil, err
	}
	p, ok := s.profiles[uid]
	if !ok {
		return nil, auth.ErrProfileNotFound.Clone().WithMetadata(map[string]any{"uid": uid})
	}
	return p.Clone(), nil
}

func (s *ProfileStore) Put(ctx context.Context, profile *auth.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked(OpPut); err != nil {
		return err
	}
	if profile == nil || profile.UID == "" {
		return auth.ErrInvalidInput.Clone().WithMetadata(map[string]any{"reason": "profile uid is required"})
	}
	if !profile.Role.IsValid() {
		return auth.ErrInvalidRole.Clone().WithMetadata(map[string]any{"role": profile.Role})
	}
	p := profile.Clone()
	if p.ID == uuid.Nil {
		p.ID = auth.ProfileID(p.UID)
	}
	now := s.now()
	if p.CreatedAt == nil {
		p.CreatedAt = &now
	}
	p.UpdatedAt = &now
	s.profiles[p.UID] = p
	return nil
}

func (s *ProfileStore) Update(ctx context.Context, uid string, update auth.ProfileUpdate) (*auth.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked(OpUpdate); err != nil {
		return nil, err
	}
	p, ok := s.profiles[uid]
	if !ok {
		return nil, auth.ErrProfileNotFound.Clone().WithMetadata(map[string]any{"uid": uid})
	}
	if update.Role != nil && !update.Role.IsValid() {
		return nil, auth.ErrInvalidRole.Clone().WithMetadata(map[string]any{"role": *update.Role})
	}
	next := p.Clone()
	update.Apply(next)
	now := s.now()
	next.UpdatedAt = &now
	s.profiles[uid] = next
	return next.Clone(), nil
}

func (s *ProfileStore) Query(ctx context.Context, filter auth.ProfileFilter) ([]*auth.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked(OpQuery); err != nil {
		return nil, err
	}
	out := []*auth.Profile{}
	for _, p := range s.profiles {
		if filter.Match(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Email) < strings.ToLower(out[j].Email)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *ProfileStore) enterLocked(op string) error {
	s.calls[op]++
	if queue := s.failures[op]; len(queue) > 0 {
		err := queue[0]
		s.failures[op] = queue[1:]
		return err
	}
	return nil
}

// Blob is a stored object.
type Blob struct {
	Data        []byte
	ContentType string
}

// BlobStore is an in memory auth.BlobStore.
type BlobStore struct {
	mu      sync.Mutex
	baseURL string
	blobs   map[string]Blob
}

var _ auth.BlobStore = (*BlobStore)(nil)

// NewBlobStore returns a store whose URLs are baseURL + "/" + key.
func NewBlobStore(baseURL string) *BlobStore {
	return &BlobStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		blobs:   map[string]Blob{},
	}
}

func (b *BlobStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[key] = Blob{Data: buf.Bytes(), ContentType: contentType}
	return nil
}

func (b *BlobStore) URL(ctx context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.blobs[key]; !ok {
		return "", auth.ErrProfileNotFound.Clone().WithMetadata(map[string]any{"key": key})
	}
	return b.baseURL + "/" + key, nil
}

// Get returns a stored blob.
func (b *BlobStore) Get(key string) (Blob, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	blob, ok := b.blobs[key]
	return blob, ok
}

// Keys lists stored keys in order.
func (b *BlobStore) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.blobs))
	for k := range b.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TokenStore is an in memory auth.RefreshTokenStore.
type TokenStore struct {
	mu    sync.Mutex
	token string
}

var _ auth.RefreshTokenStore = (*TokenStore)(nil)

func (t *TokenStore) Load(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token, nil
}

func (t *TokenStore) Save(ctx context.Context, token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
	return nil
}

func (t *TokenStore) Clear(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = ""
	return nil
}
