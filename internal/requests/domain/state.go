// Package domain holds the service request state machine.
package domain

// Request lifecycle statuses. A request starts open, gets assigned to an
// agent, and ends in one of the terminal states. Release moves an assigned
// request back to open so it can circulate again.
const (
	StatusOpen       = "open"
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// ValidStatus reports whether s is a known request status.
func ValidStatus(s string) bool {
	switch s {
	case StatusOpen, StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether a request in status s can no longer change.
func IsTerminal(s string) bool {
	switch s {
	case StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether a request is still in circulation or being worked.
func IsActive(s string) bool {
	return !IsTerminal(s)
}

// CanAssign reports whether a request in status s may receive an agent.
// Only open requests are assignable; anything else is either already held
// by an agent or terminal.
func CanAssign(s string) bool {
	return s == StatusOpen
}

// CanRelease reports whether an agent currently holding the request may
// give it back to the pool.
func CanRelease(s string) bool {
	return s == StatusAssigned || s == StatusInProgress
}

// Held reports whether the request is currently bound to an agent.
func Held(s string) bool {
	return s == StatusAssigned || s == StatusInProgress
}

// CanTransition validates a status change. Terminal states never transition.
func CanTransition(from, to string) bool {
	if !ValidStatus(from) || !ValidStatus(to) || from == to {
		return false
	}
	if IsTerminal(from) {
		return false
	}

	switch from {
	case StatusOpen:
		return to == StatusAssigned || to == StatusCancelled
	case StatusAssigned:
		return to == StatusInProgress || to == StatusCompleted || to == StatusOpen || to == StatusCancelled
	case StatusInProgress:
		return to == StatusCompleted || to == StatusOpen || to == StatusCancelled
	}
	return false
}
