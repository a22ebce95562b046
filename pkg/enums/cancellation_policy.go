package enums

import "fmt"

// CancellationPolicy selects the refund tier table applied on post-payment cancels.
type CancellationPolicy string

const (
	PolicyFlexible CancellationPolicy = "flexible"
	PolicyModerate CancellationPolicy = "moderate"
	PolicyStrict   CancellationPolicy = "strict"
)

var validCancellationPolicies = []CancellationPolicy{
	PolicyFlexible,
	PolicyModerate,
	PolicyStrict,
}

// IsValid reports whether the value matches the canonical cancellation_policy enum.
func (p CancellationPolicy) IsValid() bool {
	for _, candidate := range validCancellationPolicies {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseCancellationPolicy converts raw input into CancellationPolicy.
func ParseCancellationPolicy(value string) (CancellationPolicy, error) {
	for _, candidate := range validCancellationPolicies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancellation policy %q", value)
}
