package budget

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNewRecord_TotalIsMOOEPlusCapitalOutlay(t *testing.T) {
	t.Parallel()

	rec := NewRecord(RecordInput{
		DepartmentID:  "DEPT01",
		PapID:         "PAP001",
		PapName:       "Build a dike",
		FiscalYear:    2024,
		DataType:      DataTypeGAA,
		MOOE:          decimal.RequireFromString("0.1").Mul(decimal.NewFromInt(1000)),
		CapitalOutlay: decimal.RequireFromString("0.2").Mul(decimal.NewFromInt(1000)),
	})

	require.True(t, rec.TotalAmount.Equal(decimal.NewFromInt(300)), "got %s", rec.TotalAmount)
	require.NoError(t, rec.Validate())
}

func TestValidate_RejectsBrokenRecords(t *testing.T) {
	t.Parallel()

	base := NewRecord(RecordInput{
		DepartmentID: "DEPT01",
		PapID:        "PAP001",
		PapName:      "Build a dike",
		FiscalYear:   2024,
		DataType:     DataTypeNEP,
		MOOE:         decimal.NewFromInt(10),
	})
	require.NoError(t, base.Validate())

	tampered := base
	tampered.TotalAmount = decimal.NewFromInt(11)
	require.True(t, errors.Is(tampered.Validate(), ErrInvalidRecord))

	noPap := base
	noPap.PapID = ""
	require.Error(t, noPap.Validate())

	badType := base
	badType.DataType = "Proposed"
	require.Error(t, badType.Validate())

	badYear := base
	badYear.FiscalYear = 24
	require.Error(t, badYear.Validate())
}

func TestParseDataType(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]DataType{"GAA": DataTypeGAA, "actual": DataTypeActual, " nep ": DataTypeNEP} {
		got, err := ParseDataType(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseDataType("budget")
	require.True(t, errors.Is(err, ErrInvalidDataType))
}

func TestDeriveClimateType(t *testing.T) {
	t.Parallel()

	d := decimal.NewFromInt
	cases := []struct {
		adaptation, mitigation decimal.Decimal
		want                   ClimateType
	}{
		{d(100), d(0), ClimateAdaptation},
		{d(0), d(50), ClimateMitigation},
		{d(100), d(50), ClimateBoth},
		{d(0), d(0), ClimateBoth},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, DeriveClimateType(tc.adaptation, tc.mitigation),
			"adaptation=%s mitigation=%s", tc.adaptation, tc.mitigation)
	}
}

func TestMapStatus(t *testing.T) {
	t.Parallel()

	cases := map[string]ProjectStatus{
		"Pending":    StatusPlanned,
		"SUBMITTED":  StatusPlanned,
		"for review": StatusPlanned,
		"Approved":   StatusOngoing,
		"Ongoing":    StatusOngoing,
		"Completed":  StatusCompleted,
		" cancelled": StatusCancelled,
		"Unknown":    StatusOngoing,
		"":           StatusOngoing,
		"On hold":    StatusOngoing,
	}
	for in, want := range cases {
		require.Equal(t, want, MapStatus(in), "status %q", in)
	}
}
