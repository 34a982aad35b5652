package persistence

import (
	"context"
	"embed"
	"io/fs"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

//go:embed schema
var schemaFS embed.FS

// MigrationStatus is one migration as reported by `migrate status`.
type MigrationStatus struct {
	Version   int64     `json:"version"`
	Path      string    `json:"path"`
	Applied   bool      `json:"applied"`
	AppliedAt time.Time `json:"appliedAt,omitzero"`
}

func newProvider(db *sqlx.DB, dialect Dialect) (*goose.Provider, error) {
	dir, err := fs.Sub(schemaFS, "schema/"+string(dialect))
	if err != nil {
		return nil, errors.Wrapf(err, "schema for %s", dialect)
	}
	p, err := goose.NewProvider(dialect.gooseDialect(), db.DB, dir)
	if err != nil {
		return nil, errors.Wrap(err, "migration provider")
	}
	return p, nil
}

// MigrateUp applies every pending migration and returns the versions applied.
func MigrateUp(ctx context.Context, db *sqlx.DB, dialect Dialect) ([]int64, error) {
	p, err := newProvider(db, dialect)
	if err != nil {
		return nil, err
	}
	results, err := p.Up(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "migrate up")
	}
	applied := make([]int64, 0, len(results))
	for _, r := range results {
		applied = append(applied, r.Source.Version)
	}
	return applied, nil
}

func MigrationsStatus(ctx context.Context, db *sqlx.DB, dialect Dialect) ([]MigrationStatus, error) {
	p, err := newProvider(db, dialect)
	if err != nil {
		return nil, err
	}
	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "migrate status")
	}
	out := make([]MigrationStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationStatus{
			Version:   s.Source.Version,
			Path:      s.Source.Path,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}
