package services

import (
	"strings"

	"github.com/go-faster/errors"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/domain/budget"
)

const (
	DefaultSectorCode = "NAP_GOVT"
	DefaultSectorName = "National Government (NAP)"
)

// Sector strategies accepted by NewSectorResolver.
const (
	SectorStrategyFixed    = "fixed"
	SectorStrategyExisting = "existing"
	SectorStrategyTypology = "typology"
)

var (
	ErrUnknownSectorStrategy = errors.New("unknown sector strategy")
	// ErrNoSector is returned by the existing-sector strategy on an empty
	// sectors table.
	ErrNoSector = errors.New("no sector available")
)

// SectorResolver decides which sector a record's project is filed under.
// The workbooks carry no sector code of their own, so this is always a
// policy choice.
type SectorResolver interface {
	// Sector returns the sector to find or create by code. ok=false means
	// any existing sector row will do.
	Sector(rec budget.ParsedProjectRecord) (s budget.Sector, ok bool)
}

// FixedSector files every project under one sector, created on first use.
type FixedSector struct {
	Code string
	Name string
}

func (f FixedSector) Sector(budget.ParsedProjectRecord) (budget.Sector, bool) {
	code, name := f.Code, f.Name
	if code == "" {
		code = DefaultSectorCode
	}
	if name == "" {
		name = code
		if code == DefaultSectorCode {
			name = DefaultSectorName
		}
	}
	return budget.Sector{Code: code, Name: name}, true
}

// ExistingSector files every project under an arbitrary existing sector.
type ExistingSector struct{}

func (ExistingSector) Sector(budget.ParsedProjectRecord) (budget.Sector, bool) {
	return budget.Sector{}, false
}

// TypologySector picks the sector of the longest rule prefix matching the
// record's typology code, and Fallback otherwise.
type TypologySector struct {
	Rules    []budget.SectorRule
	Fallback FixedSector
}

func (t TypologySector) Sector(rec budget.ParsedProjectRecord) (budget.Sector, bool) {
	code := strings.TrimSpace(rec.TypologyCode)
	best := -1
	for i, r := range t.Rules {
		if !strings.HasPrefix(code, r.TypologyPrefix) {
			continue
		}
		if best < 0 || len(r.TypologyPrefix) > len(t.Rules[best].TypologyPrefix) {
			best = i
		}
	}
	if best < 0 {
		return t.Fallback.Sector(rec)
	}
	r := t.Rules[best]
	name := r.Name
	if name == "" {
		name = r.Code
	}
	return budget.Sector{Code: r.Code, Name: name}, true
}

// NewSectorResolver builds the resolver named by strategy. code and name
// configure the fixed sector, which is also the typology fallback.
func NewSectorResolver(strategy, code, name string, rules []budget.SectorRule) (SectorResolver, error) {
	fixed := FixedSector{Code: strings.TrimSpace(code), Name: strings.TrimSpace(name)}
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", SectorStrategyFixed:
		return fixed, nil
	case SectorStrategyExisting:
		return ExistingSector{}, nil
	case SectorStrategyTypology:
		if len(rules) == 0 {
			return nil, errors.Errorf("sector strategy %q needs sector rules in the sheet table", SectorStrategyTypology)
		}
		return TypologySector{Rules: rules, Fallback: fixed}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownSectorStrategy, "%q (expected fixed|existing|typology)", strategy)
	}
}
