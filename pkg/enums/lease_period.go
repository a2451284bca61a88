package enums

import "fmt"

// LeasePeriod is the billing unit for leased (arrendamiento) lines.
type LeasePeriod string

const (
	LeasePeriodDaily   LeasePeriod = "diario"
	LeasePeriodWeekly  LeasePeriod = "semanal"
	LeasePeriodMonthly LeasePeriod = "mensual"
	LeasePeriodYearly  LeasePeriod = "anual"
)

var validLeasePeriods = []LeasePeriod{
	LeasePeriodDaily,
	LeasePeriodWeekly,
	LeasePeriodMonthly,
	LeasePeriodYearly,
}

// String implements fmt.Stringer.
func (l LeasePeriod) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LeasePeriod.
func (l LeasePeriod) IsValid() bool {
	for _, candidate := range validLeasePeriods {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLeasePeriod converts raw input into a LeasePeriod.
func ParseLeasePeriod(value string) (LeasePeriod, error) {
	for _, candidate := range validLeasePeriods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid lease period %q", value)
}
