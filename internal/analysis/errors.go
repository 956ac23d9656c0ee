// SPDX-License-Identifier: MIT
package analysis

import "fmt"

// ConfigurationError reports invalid analysis geometry detected at construction.
// It is fatal: no component is built when one is returned.
type ConfigurationError struct {
	Field  string // Offending setting, e.g. "fft_size".
	Value  any    // The rejected value.
	Reason string // Short human readable cause.
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("analysis: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func configErr(field string, value any, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}
