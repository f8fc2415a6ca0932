package enums

// AccountStatus reflects whether an actor may transact.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
)

// IsValid reports whether the value is a known AccountStatus.
func (s AccountStatus) IsValid() bool {
	return s == AccountStatusActive || s == AccountStatusSuspended
}
