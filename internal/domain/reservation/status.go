package reservation

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a reservation
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// transitions lists every legal status change. ACTIVE is the only non-terminal state.
var transitions = map[Status][]Status{
	StatusActive: {StatusConfirmed, StatusCancelled, StatusExpired},
}

// AllStatuses returns every known status in a stable order
func AllStatuses() []Status {
	return []Status{StatusActive, StatusConfirmed, StatusCancelled, StatusExpired}
}

// ParseStatus parses a status name, case-insensitively
func ParseStatus(s string) (Status, error) {
	candidate := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !candidate.IsValid() {
		return "", fmt.Errorf("unknown reservation status %q", s)
	}
	return candidate, nil
}

// IsValid returns true if s is one of the known statuses
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusConfirmed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// IsTerminal returns true if no transition out of s is permitted
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to target is in the transition table
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// String returns the status name
func (s Status) String() string {
	return string(s)
}
