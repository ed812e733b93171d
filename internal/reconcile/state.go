package reconcile

import "fmt"

// State is the client view of one task entry.
type State int

const (
	// Synced entries match the last authoritative list or a confirmed mutation.
	Synced State = iota
	// OptimisticPending entries carry a local mutation awaiting the server.
	OptimisticPending
	// Reverted entries were restored to their pre-mutation value after a rejection.
	Reverted
)

func (s State) String() string {
	switch s {
	case Synced:
		return "synced"
	case OptimisticPending:
		return "pending"
	case Reverted:
		return "reverted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Signal drives a state transition.
type Signal int

const (
	// Mutate is a local change applied before the server answers.
	Mutate Signal = iota
	// Confirm is a successful server response.
	Confirm
	// Reject is a failed server response.
	Reject
	// Reload is an authoritative refresh replacing the entry.
	Reload
)

func (s Signal) String() string {
	switch s {
	case Mutate:
		return "mutate"
	case Confirm:
		return "confirm"
	case Reject:
		return "reject"
	case Reload:
		return "reload"
	}
	return fmt.Sprintf("Signal(%d)", int(s))
}

// Transition is the single authority on entry states. Confirm and Reject are
// only valid while a mutation is pending; any other pair is an error and
// leaves the state unchanged.
func Transition(from State, sig Signal) (State, error) {
	switch sig {
	case Reload:
		return Synced, nil
	case Mutate:
		return OptimisticPending, nil
	case Confirm:
		if from == OptimisticPending {
			return Synced, nil
		}
	case Reject:
		if from == OptimisticPending {
			return Reverted, nil
		}
	}
	return from, fmt.Errorf("invalid transition: %s on %s", sig, from)
}
