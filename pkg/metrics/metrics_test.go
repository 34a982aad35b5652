package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	t.Parallel()

	r := New()
	r.Entity("department", "created")
	r.Entity("department", "cached")
	r.Entity("department", "cached")
	r.Record(true)
	r.Record(false)
	r.Investment("updated")
	r.Rows("2024 (GAA)", "subtotal", 3)
	r.Rows("2024 (GAA)", "emitted", 0)

	require.InDelta(t, 2, testutil.ToFloat64(r.entities.WithLabelValues("department", "cached")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.records.WithLabelValues("error")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.investments.WithLabelValues("updated")), 0)
	require.InDelta(t, 3, testutil.ToFloat64(r.rows.WithLabelValues("2024 (GAA)", "subtotal")), 0)
	// n <= 0 adds no series
	require.Equal(t, 1, testutil.CollectAndCount(r.rows))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.Entity("sector", "found")
	r.Record(true)
	r.Investment("created")
	r.Rows("s", "emitted", 1)
	r.StageDuration("parse", 1)
	require.Nil(t, r.Registry())
	require.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	t.Parallel()

	r := New()
	r.Investment("created")
	r.StageDuration("import", 1.5)

	path := filepath.Join(t.TempDir(), "ccet.prom")
	require.NoError(t, r.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	require.True(t, strings.Contains(out, `ccet_import_investments_total{outcome="created"} 1`), out)
	require.True(t, strings.Contains(out, `ccet_stage_duration_seconds{stage="import"} 1.5`), out)
}
