package directory

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid network status transition")

var transitions = map[NetworkStatus][]NetworkStatus{
	StatusNotStarted: {StatusApplied},
	StatusApplied:    {StatusPending},
	StatusPending:    {StatusInNetwork, StatusDenied},
	StatusDenied:     {StatusApplied},
	StatusInNetwork:  {StatusTerminated},
}

func (s NetworkStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusApplied, StatusPending, StatusInNetwork, StatusDenied, StatusTerminated:
		return true
	}
	return false
}

// CanTransition reports whether a contract may move from one status to another.
func CanTransition(from, to NetworkStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to NetworkStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
