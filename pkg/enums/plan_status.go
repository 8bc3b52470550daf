package enums

import "fmt"

// PlanStatus is the catalog state of a billing plan. Deprecated plans keep
// serving existing subscribers but cannot be newly selected; hidden plans are
// admin-only.
type PlanStatus string

const (
	PlanStatusActive     PlanStatus = "active"
	PlanStatusDeprecated PlanStatus = "deprecated"
	PlanStatusHidden     PlanStatus = "hidden"
)

// String implements fmt.Stringer.
func (p PlanStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PlanStatus.
func (p PlanStatus) IsValid() bool {
	switch p {
	case PlanStatusActive, PlanStatusDeprecated, PlanStatusHidden:
		return true
	}
	return false
}

// ParsePlanStatus validates raw input into a PlanStatus.
func ParsePlanStatus(value string) (PlanStatus, error) {
	status := PlanStatus(value)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid plan status %q", value)
	}
	return status, nil
}
