package utils

import (
	"strings"
)

// IsRecoverableError checks if an error is recoverable based on predefined criteria.
// Recoverable errors are transient upstream failures that a worker may retry.
func IsRecoverableError(err error) bool {
	recoverableErrors := []string{
		"provider returned status",
		"webhook returned status",
		"failed to connect",
	}

	for _, recoverable := range recoverableErrors {
		if strings.HasPrefix(err.Error(), recoverable) {
			return true
		}
	}
	return false
}
