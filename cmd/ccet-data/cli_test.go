package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type testEnv struct {
	dir     string
	dbPath  string
	sheets  string
	metrics string
}

// newTestEnv points the CLI at a temp sqlite database and snapshot root.
func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:     dir,
		dbPath:  filepath.Join(dir, "ccet.db"),
		sheets:  filepath.Join(dir, "sheets.yaml"),
		metrics: filepath.Join(dir, "ccet.prom"),
	}
	for k, v := range map[string]string{
		"DB_DRIVER":          "sqlite",
		"DB_NAME":            env.dbPath,
		"DB_DSN":             "",
		"DB_CONNECT_TIMEOUT": "5s",
		"SNAPSHOT_DRIVER":    "fs",
		"SNAPSHOT_FS_ROOT":   filepath.Join(dir, "data"),
		"SECTOR_STRATEGY":    "fixed",
		"CCET_SHEETS_CONFIG": "",
		"ERROR_SAMPLE":       "10",
		"RECORD_SAMPLE":      "0",
		"LOG_LEVEL":          "error",
		"LOG_FORMAT":         "text",
		"LOG_PATH":           "",
		"METRICS_TEXTFILE":   env.metrics,
	} {
		t.Setenv(k, v)
	}
	require.NoError(t, os.WriteFile(env.sheets, []byte(`sheets:
  - sheet: "2024 (GAA)"
    fiscal_year: 2024
    data_type: GAA
  - sheet: "2023 (Actual)"
    fiscal_year: 2023
    data_type: Actual
`), 0o644))
	return env
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := execute(context.Background(), &app{}, args, &out)
	return out.String(), err
}

// writeWorkbook saves a one-sheet workbook in thousand pesos with two
// importable rows, a subtotal and an all-zero row.
func writeWorkbook(t *testing.T, path string, pap1MOOE float64) {
	t.Helper()
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })
	const sheet = "2024 (GAA)"
	_, err := f.NewSheet(sheet)
	require.NoError(t, err)

	set := func(row int, values map[int]any) {
		for col, v := range values {
			ref, err := excelize.CoordinatesToCellName(col, row)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, ref, v))
		}
	}
	identity := func(pap, name, typology string) map[int]any {
		return map[int]any{
			1: "DEPT01", 2: "Department One", 3: "AGY01", 4: "Agency One",
			5: pap, 6: name, 7: typology, 8: "Climate works", 18: "Ongoing",
		}
	}
	with := func(row map[int]any, kv map[int]any) map[int]any {
		for k, v := range kv {
			row[k] = v
		}
		return row
	}

	set(3, map[int]any{1: "(Amounts in thousand pesos)"})
	set(7, map[int]any{1: "DEPARTMENT"})
	set(8, with(identity("PAP001", "Build a dike", "A01"), map[int]any{11: pap1MOOE, 14: 50.0, 28: pap1MOOE + 50}))
	set(9, with(identity("PAP002", "Solar rooftops", "M02"), map[int]any{11: 100.0}))
	set(10, with(identity("SUB01", "Sub-Total DEPT01", "A01"), map[int]any{11: 300.0}))
	set(11, identity("PAP003", "Dormant project", "A01"))
	require.NoError(t, f.SaveAs(path))
}

type jsonReport struct {
	Status      string `json:"status"`
	SnapshotKey string `json:"snapshotKey"`
	Parse       struct {
		MissingSheets []string `json:"missingSheets"`
		Skipped       struct {
			MissingIdentity int `json:"missingIdentity"`
			Subtotal        int `json:"subtotal"`
			ZeroValue       int `json:"zeroValue"`
		} `json:"skipped"`
		Summary struct {
			Records    int    `json:"records"`
			Total      string `json:"total"`
			Adaptation string `json:"adaptation"`
			Mitigation string `json:"mitigation"`
		} `json:"summary"`
	} `json:"parse"`
	Import *struct {
		Processed          int      `json:"processed"`
		Failed             int      `json:"failed"`
		ProjectsCreated    int      `json:"projectsCreated"`
		InvestmentsCreated int      `json:"investmentsCreated"`
		InvestmentsUpdated int      `json:"investmentsUpdated"`
		Errors             []string `json:"errors"`
		TableCounts        struct {
			Projects    int `json:"projects"`
			Investments int `json:"investments"`
		} `json:"tableCounts"`
	} `json:"import"`
	Sample []json.RawMessage `json:"sample"`
}

func decodeReport(t *testing.T, out string) jsonReport {
	t.Helper()
	var r jsonReport
	require.NoError(t, json.Unmarshal([]byte(out), &r), out)
	return r
}

func TestRun_ImportTwiceIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	wb := filepath.Join(env.dir, "ccet.xlsx")
	writeWorkbook(t, wb, 200)

	out, err := runCLI(t, "migrate", "up", "--format", "json")
	require.NoError(t, err)
	require.JSONEq(t, `{"action":"up","dialect":"sqlite","applied":[1]}`, out)

	out, err = runCLI(t, "run", wb, "--sheets", env.sheets, "--format", "json", "--sample", "1")
	require.NoError(t, err)
	first := decodeReport(t, out)
	require.Equal(t, statusImported, first.Status)
	require.True(t, strings.HasPrefix(first.SnapshotKey, "snapshots/ccet_"), first.SnapshotKey)
	require.Equal(t, []string{"2023 (Actual)"}, first.Parse.MissingSheets)
	require.Equal(t, 2, first.Parse.Summary.Records)
	require.Equal(t, "350000", first.Parse.Summary.Total)
	require.Equal(t, "250000", first.Parse.Summary.Adaptation)
	require.Equal(t, "100000", first.Parse.Summary.Mitigation)
	require.Equal(t, 1, first.Parse.Skipped.Subtotal)
	require.Equal(t, 1, first.Parse.Skipped.ZeroValue)
	require.Len(t, first.Sample, 1)
	require.NotNil(t, first.Import)
	require.Equal(t, 2, first.Import.Processed)
	require.Zero(t, first.Import.Failed)
	require.Equal(t, 2, first.Import.ProjectsCreated)
	require.Equal(t, 2, first.Import.InvestmentsCreated)
	require.Equal(t, 2, first.Import.TableCounts.Investments)

	_, err = os.Stat(filepath.Join(env.dir, "data", filepath.FromSlash(first.SnapshotKey)))
	require.NoError(t, err)

	out, err = runCLI(t, "import", first.SnapshotKey, "--format", "json")
	require.NoError(t, err)
	second := decodeReport(t, out)
	require.Zero(t, second.Import.InvestmentsCreated)
	require.Equal(t, 2, second.Import.InvestmentsUpdated)
	require.Equal(t, 2, second.Import.TableCounts.Projects)
	require.Equal(t, 2, second.Import.TableCounts.Investments)

	prom, err := os.ReadFile(env.metrics)
	require.NoError(t, err)
	require.Contains(t, string(prom), `ccet_import_investments_total{outcome="updated"} 2`)
}

func TestRun_MigrateFlagAndStatus(t *testing.T) {
	env := newTestEnv(t)
	wb := filepath.Join(env.dir, "ccet.xlsx")
	writeWorkbook(t, wb, 200)

	_, err := runCLI(t, "run", wb, "--sheets", env.sheets, "--migrate", "--no-snapshot")
	require.NoError(t, err)

	out, err := runCLI(t, "migrate", "status")
	require.NoError(t, err)
	require.Contains(t, out, "00001")
	require.Contains(t, out, "applied")
}

func TestRun_DryRunText(t *testing.T) {
	env := newTestEnv(t)
	wb := filepath.Join(env.dir, "ccet.xlsx")
	writeWorkbook(t, wb, 200)

	out, err := runCLI(t, "run", wb, "--sheets", env.sheets, "--dry-run", "--no-snapshot")
	require.NoError(t, err)
	require.Contains(t, out, statusDryRun)
	require.Contains(t, out, "2023 (Actual)")
	require.Contains(t, out, "missing")
	require.Contains(t, out, "Parsed records: 2")
	require.Contains(t, out, "FY2024 GAA")
	require.Contains(t, out, "350,000.00")
	require.Contains(t, out, "Skipped rows: 2 (missing identity 0, subtotal 1, zero value 1)")
	require.NotContains(t, out, "Import:")

	_, err = os.Stat(env.dbPath)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestSnapshot_DiffAndPatch(t *testing.T) {
	env := newTestEnv(t)
	wbA := filepath.Join(env.dir, "a.xlsx")
	wbB := filepath.Join(env.dir, "b.xlsx")
	writeWorkbook(t, wbA, 200)
	writeWorkbook(t, wbB, 300)

	_, err := runCLI(t, "parse", wbA, "--sheets", env.sheets, "--snapshot", "snapshots/a.json")
	require.NoError(t, err)
	_, err = runCLI(t, "parse", wbB, "--sheets", env.sheets, "--snapshot", "snapshots/b.json")
	require.NoError(t, err)

	patchFile := filepath.Join(env.dir, "review", "a-to-b.json")
	out, err := runCLI(t, "snapshot", "diff", "snapshots/a.json", "snapshots/b.json", "--patch-out", patchFile, "--format", "json")
	require.NoError(t, err)
	var d struct {
		Added   []string         `json:"added"`
		Removed []string         `json:"removed"`
		Changed []string         `json:"changed"`
		Patch   []map[string]any `json:"patch"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	require.Empty(t, d.Added)
	require.Empty(t, d.Removed)
	require.Equal(t, []string{"PAP001:2024:GAA"}, d.Changed)
	require.NotEmpty(t, d.Patch)

	_, err = runCLI(t, "snapshot", "patch", "snapshots/a.json", patchFile, "--snapshot", "snapshots/c.json")
	require.NoError(t, err)

	out, err = runCLI(t, "snapshot", "diff", "snapshots/b.json", "snapshots/c.json")
	require.NoError(t, err)
	require.Contains(t, out, "0 added, 0 removed, 0 changed")

	out, err = runCLI(t, "snapshot", "list", "--format", "json")
	require.NoError(t, err)
	var infos []struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 3)
	require.Equal(t, "snapshots/a.json", infos[0].Key)
}

func TestExitCodes(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		env  map[string]string
		args []string
		want int
	}{
		{name: "missing workbook", args: []string{"parse", filepath.Join(env.dir, "nope.xlsx")}, want: exitInput},
		{name: "missing snapshot", args: []string{"import", "snapshots/nope.json"}, want: exitInput},
		{name: "bad format", args: []string{"parse", "x.xlsx", "--format", "xml"}, want: exitUsage},
		{name: "missing argument", args: []string{"parse"}, want: exitUsage},
		{name: "unknown flag", args: []string{"parse", "x.xlsx", "--bogus"}, want: exitUsage},
		{name: "bad sheet table", args: []string{"parse", "x.xlsx", "--sheets", filepath.Join(env.dir, "nope.yaml")}, want: exitUsage},
		{name: "bad migrate action", args: []string{"migrate", "sideways"}, want: exitUsage},
		{name: "invalid config", env: map[string]string{"DB_DRIVER": "oracle"}, args: []string{"migrate"}, want: exitUsage},
		{
			name: "database unreachable",
			env:  map[string]string{"DB_DRIVER": "mysql", "DB_HOST": "127.0.0.1", "DB_PORT": "1", "DB_NAME": "ccet", "DB_CONNECT_TIMEOUT": "2s"},
			args: []string{"migrate"},
			want: exitDB,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := runCLI(t, tc.args...)
			require.Error(t, err)
			require.Equal(t, tc.want, exitCode(err), err.Error())
		})
	}
}
