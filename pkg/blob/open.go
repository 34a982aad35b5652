package blob

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Config picks and configures a driver. The zero value opens a filesystem
// store under ./data.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

func ParseDriver(v string) (Driver, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(v))) {
	case "", DriverFilesystem, "filesystem":
		return DriverFilesystem, nil
	case DriverS3, "minio":
		return DriverS3, nil
	case DriverMemory, "mem":
		return DriverMemory, nil
	default:
		return "", errors.Wrapf(ErrUnknownDriver, "%q", v)
	}
}

func Open(ctx context.Context, cfg Config) (Store, error) {
	driver, err := ParseDriver(string(cfg.Driver))
	if err != nil {
		return nil, err
	}
	switch driver {
	case DriverS3:
		s, err := NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		s, err := NewFSStore(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
