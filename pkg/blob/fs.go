package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const metaSuffix = ".meta"

// FSStore keeps each blob as a file under root with a JSON sidecar holding
// its content type, metadata and etag.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if strings.TrimSpace(root) == "" {
		root = "./data"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create blob root %s", root)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) Driver() Driver { return DriverFilesystem }

type fsMeta struct {
	ContentType string            `json:"contentType,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func (s *FSStore) paths(key string) (string, string, string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", "", "", err
	}
	if strings.HasSuffix(k, metaSuffix) {
		return "", "", "", errors.Wrapf(ErrInvalidKey, "key %q uses reserved suffix", key)
	}
	data := filepath.Join(s.root, filepath.FromSlash(k))
	return k, data, data + metaSuffix, nil
}

func (s *FSStore) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	k, dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return Info{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return Info{}, errors.Wrap(ErrExists, k)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return Info{}, errors.Wrap(err, "create blob dir")
	}

	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".upload-*")
	if err != nil {
		return Info{}, errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Info{}, errors.Wrapf(err, "write %s", k)
	}

	meta := fsMeta{
		ContentType: opts.ContentType,
		Metadata:    opts.Metadata,
		ETag:        hex.EncodeToString(h.Sum(nil)),
		Size:        n,
		CreatedAt:   time.Now().UTC(),
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return Info{}, errors.Wrap(err, "encode blob meta")
	}
	if err := os.WriteFile(metaPath, b, 0o644); err != nil {
		return Info{}, errors.Wrap(err, "write blob meta")
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		_ = os.Remove(metaPath)
		return Info{}, errors.Wrapf(err, "commit %s", k)
	}
	return meta.info(k), nil
}

func (s *FSStore) Get(ctx context.Context, key string) (Info, io.ReadCloser, error) {
	info, err := s.Head(ctx, key)
	if err != nil {
		return Info{}, nil, err
	}
	_, dataPath, _, _ := s.paths(key)
	f, err := os.Open(dataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Info{}, nil, errors.Wrap(ErrNotFound, info.Key)
	}
	if err != nil {
		return Info{}, nil, errors.Wrapf(err, "open %s", info.Key)
	}
	return info, f, nil
}

func (s *FSStore) Head(ctx context.Context, key string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	k, _, metaPath, err := s.paths(key)
	if err != nil {
		return Info{}, err
	}
	return readMeta(metaPath, k)
}

func (s *FSStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	k, dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return false, err
	}
	err = os.Remove(dataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "delete %s", k)
	}
	_ = os.Remove(metaPath)
	return true, nil
}

func (s *FSStore) List(ctx context.Context, prefix string) ([]Info, error) {
	var out []Info
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, strings.TrimSuffix(p, metaSuffix))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := readMeta(p, key)
		if err != nil {
			return err
		}
		out = append(out, info)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list blobs")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func readMeta(metaPath, key string) (Info, error) {
	b, err := os.ReadFile(metaPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Info{}, errors.Wrap(ErrNotFound, key)
	}
	if err != nil {
		return Info{}, errors.Wrapf(err, "read meta %s", key)
	}
	var m fsMeta
	if err := json.Unmarshal(b, &m); err != nil {
		return Info{}, errors.Wrapf(err, "decode meta %s", key)
	}
	return m.info(key), nil
}

func (m fsMeta) info(key string) Info {
	return Info{
		Key:          key,
		Size:         m.Size,
		ContentType:  m.ContentType,
		ETag:         m.ETag,
		Metadata:     m.Metadata,
		LastModified: m.CreatedAt,
	}
}
