package blob

import (
	"path"
	"strings"

	"github.com/pkg/errors"
)

// CleanKey normalizes key and rejects keys that would escape the store root.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.Wrap(ErrInvalidKey, "empty key")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	if strings.HasPrefix(key, "/") {
		return "", errors.Wrapf(ErrInvalidKey, "absolute key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", errors.Wrapf(ErrInvalidKey, "key %q escapes root", key)
		}
	}
	clean := path.Clean(key)
	if clean == "." {
		return "", errors.Wrapf(ErrInvalidKey, "key %q", key)
	}
	return clean, nil
}
