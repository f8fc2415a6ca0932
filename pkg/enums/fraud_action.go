package enums

// FraudAction is the gate's recommendation for a scored transaction.
type FraudAction string

const (
	FraudActionAllow  FraudAction = "allow"
	FraudActionFlag   FraudAction = "flag"
	FraudActionReview FraudAction = "review"
	FraudActionBlock  FraudAction = "block"
)

var validFraudActions = []FraudAction{
	FraudActionAllow,
	FraudActionFlag,
	FraudActionReview,
	FraudActionBlock,
}

// String implements fmt.Stringer.
func (a FraudAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known FraudAction.
func (a FraudAction) IsValid() bool {
	for _, candidate := range validFraudActions {
		if candidate == a {
			return true
		}
	}
	return false
}
