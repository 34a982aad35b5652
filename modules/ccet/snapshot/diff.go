package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/pkg/errors"
	"github.com/wI2L/jsondiff"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/domain/budget"
)

// Diff compares two snapshots keyed by PAP, fiscal year and data type.
type Diff struct {
	Patch   jsondiff.Patch `json:"patch"`
	Added   []string       `json:"added"`
	Removed []string       `json:"removed"`
	Changed []string       `json:"changed"`
}

func (d Diff) Empty() bool { return len(d.Patch) == 0 }

func diffKey(r budget.ParsedProjectRecord) string {
	return fmt.Sprintf("%s:%d:%s", r.PapID, r.FiscalYear, r.DataType)
}

// keyed indexes records by their fact key. A later duplicate wins, the same
// way a second upsert of the key would.
func keyed(records []budget.ParsedProjectRecord) map[string]budget.ParsedProjectRecord {
	m := make(map[string]budget.ParsedProjectRecord, len(records))
	for _, r := range records {
		m[diffKey(r)] = r
	}
	return m
}

// Compare returns an RFC 6902 patch from before to after plus the affected
// keys.
func Compare(before, after []budget.ParsedProjectRecord) (Diff, error) {
	patch, err := jsondiff.Compare(keyed(before), keyed(after))
	if err != nil {
		return Diff{}, errors.Wrap(err, "compare snapshots")
	}
	d := Diff{Patch: patch}
	seen := make(map[string]bool)
	for _, op := range patch {
		key, nested := topLevel(op.Path)
		switch {
		case !nested && op.Type == jsondiff.OperationAdd:
			d.Added = append(d.Added, key)
		case !nested && op.Type == jsondiff.OperationRemove:
			d.Removed = append(d.Removed, key)
		case !seen[key]:
			seen[key] = true
			d.Changed = append(d.Changed, key)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	return d, nil
}

// Apply replays a patch produced by Compare on base and returns the records
// sorted by key.
func Apply(base []budget.ParsedProjectRecord, patch []byte) ([]budget.ParsedProjectRecord, error) {
	p, err := jsonpatch.DecodePatch(patch)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSnapshot, "decode patch: %v", err)
	}
	doc, err := json.Marshal(keyed(base))
	if err != nil {
		return nil, errors.Wrap(err, "encode base snapshot")
	}
	out, err := p.Apply(doc)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSnapshot, "apply patch: %v", err)
	}
	var m map[string]budget.ParsedProjectRecord
	if err := json.Unmarshal(out, &m); err != nil {
		return nil, errors.Wrapf(ErrInvalidSnapshot, "decode patched snapshot: %v", err)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	records := make([]budget.ParsedProjectRecord, 0, len(keys))
	for _, k := range keys {
		rec := m[k]
		if err := rec.Validate(); err != nil {
			return nil, errors.Wrapf(ErrInvalidSnapshot, "patched record %s: %v", k, err)
		}
		if got := diffKey(rec); got != k {
			return nil, errors.Wrapf(ErrInvalidSnapshot, "patched record %s now carries key %s", k, got)
		}
		records = append(records, rec)
	}
	return records, nil
}

// topLevel returns the first reference token of a JSON pointer and whether
// the pointer goes deeper than that.
func topLevel(ptr string) (string, bool) {
	tok, _, nested := strings.Cut(strings.TrimPrefix(ptr, "/"), "/")
	tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
	return tok, nested
}
