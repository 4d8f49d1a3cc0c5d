package diff

import "fmt"

// PersistenceError means the seen store could not be read or written. A
// posting whose write failed is never treated as seen: it is reported here
// and classified new again on the next sweep.
type PersistenceError struct {
	Op           string // "seen", "record" or "has_organization"
	Organization string
	ExternalID   string // empty for batch reads
	Cause        error
}

func (e *PersistenceError) Error() string {
	if e.ExternalID != "" {
		return fmt.Sprintf("seen store %s %s/%s: %v", e.Op, e.Organization, e.ExternalID, e.Cause)
	}
	return fmt.Sprintf("seen store %s %s: %v", e.Op, e.Organization, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }
