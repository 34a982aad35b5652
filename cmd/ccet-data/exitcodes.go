package main

import (
	"github.com/pkg/errors"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/infrastructure/persistence"
	"github.com/carlo-ubqty/araw-sub000/modules/ccet/parser"
	"github.com/carlo-ubqty/araw-sub000/modules/ccet/services"
	"github.com/carlo-ubqty/araw-sub000/modules/ccet/snapshot"
	"github.com/carlo-ubqty/araw-sub000/pkg/blob"
	"github.com/carlo-ubqty/araw-sub000/pkg/configuration"
	"github.com/carlo-ubqty/araw-sub000/pkg/workbook"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK    = 0
	exitOther = 1
	exitInput = 2
	exitUsage = 3
	exitDB    = 4
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// exitCode maps an error to the process exit status. Per-record import
// failures never reach here; a run that finishes exits 0.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	switch {
	case isAny(err,
		workbook.ErrFileNotFound, workbook.ErrUnreadable,
		snapshot.ErrInvalidSnapshot, blob.ErrNotFound, blob.ErrInvalidKey):
		return exitInput
	case isAny(err,
		configuration.ErrInvalidConfig, parser.ErrInvalidSheetTable,
		services.ErrUnknownSectorStrategy, persistence.ErrUnknownDialect,
		blob.ErrUnknownDriver, blob.ErrExists):
		return exitUsage
	case errors.Is(err, persistence.ErrUnreachable):
		return exitDB
	}
	return exitOther
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
