package main

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/infrastructure/persistence"
	"github.com/carlo-ubqty/araw-sub000/modules/ccet/parser"
	"github.com/carlo-ubqty/araw-sub000/modules/ccet/snapshot"
	"github.com/carlo-ubqty/araw-sub000/pkg/blob"
	"github.com/carlo-ubqty/araw-sub000/pkg/workbook"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		err  error
		want int
	}{
		"nil":               {nil, exitOK},
		"plain":             {errors.New("boom"), exitOther},
		"explicit":          {withCode(exitDB, errors.New("boom")), exitDB},
		"workbook missing":  {errors.Wrap(workbook.ErrFileNotFound, "x.xlsx"), exitInput},
		"bad snapshot":      {errors.Wrap(snapshot.ErrInvalidSnapshot, "decode"), exitInput},
		"snapshot missing":  {errors.Wrap(blob.ErrNotFound, "k"), exitInput},
		"sheet table":       {errors.Wrap(parser.ErrInvalidSheetTable, "yaml"), exitUsage},
		"snapshot exists":   {errors.Wrap(blob.ErrExists, "k"), exitUsage},
		"unknown dialect":   {errors.Wrap(persistence.ErrUnknownDialect, "oracle"), exitUsage},
		"unreachable":       {errors.Wrap(persistence.ErrUnreachable, "ping"), exitDB},
		"code wins over is": {withCode(exitUsage, errors.Wrap(persistence.ErrUnreachable, "ping")), exitUsage},
	}
	for name, tc := range cases {
		require.Equal(t, tc.want, exitCode(tc.err), name)
	}
	require.NoError(t, withCode(exitDB, nil))
}
