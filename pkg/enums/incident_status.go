package enums

import "fmt"

// IncidentStatus is the resolution lifecycle of a fraud incident.
type IncidentStatus string

const (
	IncidentStatusPending       IncidentStatus = "pending"
	IncidentStatusConfirmed     IncidentStatus = "confirmed"
	IncidentStatusFalsePositive IncidentStatus = "false_positive"
)

var validIncidentStatuses = []IncidentStatus{
	IncidentStatusPending,
	IncidentStatusConfirmed,
	IncidentStatusFalsePositive,
}

// String implements fmt.Stringer.
func (s IncidentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known IncidentStatus.
func (s IncidentStatus) IsValid() bool {
	for _, candidate := range validIncidentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseIncidentStatus converts raw input into an IncidentStatus.
func ParseIncidentStatus(value string) (IncidentStatus, error) {
	for _, candidate := range validIncidentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid incident status %q", value)
}
