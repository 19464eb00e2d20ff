package model

import (
	"fmt"
	"time"
)

// Status is the single authoritative lifecycle field on a Vacancy.
type Status string

const (
	StatusQueued       Status = "queued"        // waiting for or undergoing classification
	StatusInArchive    Status = "in_archive"    // gone from the source; terminal
	StatusAccepted     Status = "accepted"      // classifier said yes
	StatusRejected     Status = "rejected"      // classifier said no; terminal, kept for stats
	StatusSkipped      Status = "skipped"       // transient failure, recoverable within the window
	StatusDelivered    Status = "delivered"     // handed to the notifier
	StatusUserAccepted Status = "user_accepted" // user marked it good; terminal
	StatusUserRejected Status = "user_rejected" // user marked it bad; terminal
)

var terminalStatuses = map[Status]bool{
	StatusInArchive:    true,
	StatusRejected:     true,
	StatusUserAccepted: true,
	StatusUserRejected: true,
}

// skipped → queued is the recovery scanner's re-queue path and the only
// backward edge in the machine.
var validTransitions = map[Status]map[Status]bool{
	StatusQueued: {
		StatusInArchive: true,
		StatusAccepted:  true,
		StatusRejected:  true,
		StatusSkipped:   true,
	},
	StatusAccepted: {
		StatusDelivered: true,
	},
	StatusDelivered: {
		StatusUserAccepted: true,
		StatusUserRejected: true,
	},
	StatusSkipped: {
		StatusQueued: true,
	},
}

// IsTerminal reports whether s allows no further automatic transition.
func IsTerminal(s Status) bool {
	return terminalStatuses[s]
}

// ValidateTransition checks the from → to edge against the legal set.
func ValidateTransition(from, to Status) error {
	if IsTerminal(from) {
		return fmt.Errorf("cannot transition from terminal status %q", from)
	}
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("unknown status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition: %q → %q", from, to)
	}
	return nil
}

// Transition is the only sanctioned way to change a vacancy's status. It
// validates the edge and stamps TransitionedAt.
func (v *Vacancy) Transition(to Status) error {
	if err := ValidateTransition(v.Status, to); err != nil {
		return fmt.Errorf("vacancy %s: %w", v.ID, err)
	}
	v.Status = to
	v.TransitionedAt = time.Now()
	return nil
}
