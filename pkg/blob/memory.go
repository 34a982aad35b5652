package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type memObject struct {
	info Info
	body []byte
}

// MemoryStore is a process-local Store. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memObject)}
}

func (s *MemoryStore) Driver() Driver { return DriverMemory }

func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	k, err := CleanKey(key)
	if err != nil {
		return Info{}, err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return Info{}, errors.Wrapf(err, "read %s", k)
	}
	sum := sha256.Sum256(body)
	info := Info{
		Key:          k,
		Size:         int64(len(body)),
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(sum[:]),
		Metadata:     maps.Clone(opts.Metadata),
		LastModified: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[k]; ok {
		return Info{}, errors.Wrap(ErrExists, k)
	}
	s.objects[k] = memObject{info: info, body: body}
	return info, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (Info, io.ReadCloser, error) {
	obj, err := s.lookup(ctx, key)
	if err != nil {
		return Info{}, nil, err
	}
	return obj.info, io.NopCloser(bytes.NewReader(obj.body)), nil
}

func (s *MemoryStore) Head(ctx context.Context, key string) (Info, error) {
	obj, err := s.lookup(ctx, key)
	return obj.info, err
}

func (s *MemoryStore) lookup(ctx context.Context, key string) (memObject, error) {
	if err := ctx.Err(); err != nil {
		return memObject{}, err
	}
	k, err := CleanKey(key)
	if err != nil {
		return memObject{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[k]
	if !ok {
		return memObject{}, errors.Wrap(ErrNotFound, k)
	}
	return obj, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	k, err := CleanKey(key)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[k]
	delete(s.objects, k)
	return ok, nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Info, 0, len(s.objects))
	for k, obj := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, obj.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
