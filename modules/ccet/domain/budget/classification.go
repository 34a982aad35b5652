package budget

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ClimateType classifies an investment fact.
type ClimateType string

const (
	ClimateAdaptation ClimateType = "Adaptation"
	ClimateMitigation ClimateType = "Mitigation"
	// ClimateBoth covers dual-purpose facts and facts with no breakdown at all.
	ClimateBoth ClimateType = "Both"
)

func DeriveClimateType(adaptation, mitigation decimal.Decimal) ClimateType {
	switch {
	case adaptation.IsPositive() && mitigation.IsZero():
		return ClimateAdaptation
	case mitigation.IsPositive() && adaptation.IsZero():
		return ClimateMitigation
	default:
		return ClimateBoth
	}
}

// ProjectStatus is the lifecycle status stored on a project row.
type ProjectStatus string

const (
	StatusPlanned   ProjectStatus = "planned"
	StatusOngoing   ProjectStatus = "ongoing"
	StatusCompleted ProjectStatus = "completed"
	StatusCancelled ProjectStatus = "cancelled"
)

var statusByLabel = map[string]ProjectStatus{
	"PENDING":    StatusPlanned,
	"SUBMITTED":  StatusPlanned,
	"FOR REVIEW": StatusPlanned,
	"APPROVED":   StatusOngoing,
	"ONGOING":    StatusOngoing,
	"COMPLETED":  StatusCompleted,
	"CANCELLED":  StatusCancelled,
}

// MapStatus maps free sheet text to a project status. Unrecognized text,
// including the parser's "Unknown" default, maps to ongoing.
func MapStatus(text string) ProjectStatus {
	if s, ok := statusByLabel[strings.ToUpper(strings.TrimSpace(text))]; ok {
		return s
	}
	return StatusOngoing
}
