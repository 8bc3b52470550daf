package enums

import "fmt"

// AuditType classifies an audit log entry.
type AuditType string

const (
	AuditTypeInfo    AuditType = "info"
	AuditTypeSuccess AuditType = "success"
	AuditTypeWarning AuditType = "warning"
	AuditTypeError   AuditType = "error"
)

var validAuditTypes = []AuditType{
	AuditTypeInfo,
	AuditTypeSuccess,
	AuditTypeWarning,
	AuditTypeError,
}

// String implements fmt.Stringer.
func (a AuditType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditType.
func (a AuditType) IsValid() bool {
	for _, candidate := range validAuditTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditType converts raw input into an AuditType.
func ParseAuditType(value string) (AuditType, error) {
	for _, candidate := range validAuditTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit type %q", value)
}
