package utils

import (
	"fmt"
	"regexp"
)

var actorIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._\-]{1,64}$`)

// ValidateActorID validates a staff identifier as used in action requests
func ValidateActorID(actorID string) error {
	if !actorIDPattern.MatchString(actorID) {
		return fmt.Errorf("invalid actor id: %q", actorID)
	}
	return nil
}

// ValidateAmount validates a monetary value
func ValidateAmount(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive: %.2f", amount)
	}
	return nil
}

// SanitizeString removes control characters before a value is logged or stored
func SanitizeString(s string) string {
	return regexp.MustCompile(`[\x00-\x1f\x7f]`).ReplaceAllString(s, "")
}
