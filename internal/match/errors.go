package match

import (
	"fmt"
	"sort"
	"strings"
)

// UnknownAlgorithmError is returned when an algorithm ID is not registered.
type UnknownAlgorithmError struct {
	ID    string
	Known []string
}

// Error returns the error message with the known IDs so the caller can
// correct the request.
func (e *UnknownAlgorithmError) Error() string {
	known := append([]string(nil), e.Known...)
	sort.Strings(known)
	return fmt.Sprintf("unknown algorithm %q (known: %s)", e.ID, strings.Join(known, ", "))
}

// CapabilityError is returned when an algorithm's required backend is not
// available on this installation.
type CapabilityError struct {
	AlgorithmID string
	Capability  Capability
	Err         error
}

// Error names the algorithm, the missing capability, and what to do about it.
func (e *CapabilityError) Error() string {
	msg := fmt.Sprintf("algorithm %q requires capability %s which is not available", e.AlgorithmID, e.Capability)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + " (install the feature model or choose another algorithm)"
}

// Unwrap returns the underlying cause.
func (e *CapabilityError) Unwrap() error {
	return e.Err
}
