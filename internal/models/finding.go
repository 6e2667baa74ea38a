package models

import "fmt"

// Severity classifies a doctor finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// IsValid checks if the severity is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeverityInfo:
		return true
	default:
		return false
	}
}

// String returns the string representation of Severity
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity parses a string into a Severity
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.IsValid() {
		return "", fmt.Errorf("invalid severity: %s (must be error, warning, or info)", s)
	}
	return sev, nil
}

// Finding is a single problem reported by the doctor.
type Finding struct {
	Severity Severity `json:"severity"`

	// Check names the audit that produced the finding (e.g., "markers")
	Check string `json:"check"`

	// Module is set when the finding is scoped to one installed module
	Module string `json:"module,omitempty"`

	Message string `json:"message"`

	// File is relative to the project root
	File string `json:"file,omitempty"`

	// Fixable is true when re-running an install step or a cleanup resolves it
	Fixable bool `json:"fixable"`
}
