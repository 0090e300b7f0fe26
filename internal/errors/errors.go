// SPDX-License-Identifier: AGPL-3.0-only
package errors

import (
	"fmt"
)

// InvalidInput creates a formatted "invalid input" error
func InvalidInput(reason string) error {
	return fmt.Errorf("invalid input: %s", reason)
}

// Internal creates a formatted "internal error" error
func Internal(err error) error {
	return fmt.Errorf("internal error: %v", err)
}

// Upstream creates a formatted error for a failed backend provider call
func Upstream(provider string, err error) error {
	return fmt.Errorf("upstream provider %s: %v", provider, err)
}
