// Package snapshot persists parsed records as a flat JSON array so a parse
// can be inspected, diffed and imported later.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/domain/budget"
	"github.com/carlo-ubqty/araw-sub000/pkg/blob"
)

const (
	ContentType = "application/json"
	keyPrefix   = "snapshots/"
)

var ErrInvalidSnapshot = errors.New("invalid snapshot")

// DefaultKey names a snapshot after the run that produced it.
func DefaultKey(at time.Time, runID uuid.UUID) string {
	return fmt.Sprintf("%sccet_%s_%s.json", keyPrefix, at.UTC().Format("20060102T150405Z"), runID)
}

// Encode writes records as an indented JSON array. A nil slice encodes as [].
func Encode(w io.Writer, records []budget.ParsedProjectRecord) error {
	if records == nil {
		records = []budget.ParsedProjectRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(records), "encode snapshot")
}

// Decode reads a snapshot and validates every record. Unknown fields are
// rejected so a renamed column cannot silently drop data.
func Decode(r io.Reader) ([]budget.ParsedProjectRecord, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var records []budget.ParsedProjectRecord
	if err := dec.Decode(&records); err != nil {
		return nil, errors.Wrapf(ErrInvalidSnapshot, "decode: %v", err)
	}
	if dec.More() {
		return nil, errors.Wrap(ErrInvalidSnapshot, "trailing data after array")
	}
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, errors.Wrapf(ErrInvalidSnapshot, "record %d: %v", i, err)
		}
	}
	return records, nil
}

func Write(ctx context.Context, store blob.Store, key string, records []budget.ParsedProjectRecord) (blob.Info, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return blob.Info{}, err
	}
	info, err := store.Put(ctx, key, &buf, blob.PutOptions{
		ContentType: ContentType,
		Metadata:    map[string]string{"records": fmt.Sprint(len(records))},
	})
	return info, errors.Wrapf(err, "store snapshot %s", key)
}

func Read(ctx context.Context, store blob.Store, key string) ([]budget.ParsedProjectRecord, error) {
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "open snapshot %s", key)
	}
	defer func() { _ = rc.Close() }()
	records, err := Decode(rc)
	return records, errors.Wrap(err, key)
}
