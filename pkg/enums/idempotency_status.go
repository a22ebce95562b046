package enums

import "fmt"

// IdempotencyStatus maps to the idempotency_status enum in Postgres.
type IdempotencyStatus string

const (
	IdempotencyInProgress IdempotencyStatus = "in_progress"
	IdempotencyOK         IdempotencyStatus = "ok"
	IdempotencyFailed     IdempotencyStatus = "failed"
)

var validIdempotencyStatuses = []IdempotencyStatus{
	IdempotencyInProgress,
	IdempotencyOK,
	IdempotencyFailed,
}

// IsValid reports whether the value matches the canonical idempotency_status enum.
func (s IdempotencyStatus) IsValid() bool {
	for _, candidate := range validIdempotencyStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseIdempotencyStatus converts raw input into IdempotencyStatus.
func ParseIdempotencyStatus(value string) (IdempotencyStatus, error) {
	for _, candidate := range validIdempotencyStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid idempotency status %q", value)
}
