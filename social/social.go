// Package social implements the local side of the federation core:
// actor management, follow edges, status composition and the timeline
// views. Everything here acts on behalf of a local actor; remote
// activity arrives through the inbox instead.
package social

import "fmt"

// GateRejection is returned when an eligibility gate refuses an
// operation. Callers can distinguish it from infrastructure errors and
// surface the reason code.
type GateRejection struct {
	Capability string
	Reason     string
}

func (e *GateRejection) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Capability, e.Reason)
}
