package enums

// AuditCategory groups audit events by the pipeline stage that emitted them.
type AuditCategory string

const (
	AuditCategoryOrder    AuditCategory = "order"
	AuditCategoryPayment  AuditCategory = "payment"
	AuditCategoryDelivery AuditCategory = "delivery"
	AuditCategoryFraud    AuditCategory = "fraud"
	AuditCategorySecurity AuditCategory = "security"
)

// AuditSeverity ranks an audit event.
type AuditSeverity string

const (
	AuditSeverityInfo     AuditSeverity = "info"
	AuditSeverityWarning  AuditSeverity = "warning"
	AuditSeverityCritical AuditSeverity = "critical"
)

var validAuditSeverities = []AuditSeverity{
	AuditSeverityInfo,
	AuditSeverityWarning,
	AuditSeverityCritical,
}

// String implements fmt.Stringer.
func (s AuditSeverity) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AuditSeverity.
func (s AuditSeverity) IsValid() bool {
	for _, candidate := range validAuditSeverities {
		if candidate == s {
			return true
		}
	}
	return false
}
