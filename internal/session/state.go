package session

import "fmt"

// State is the authentication progress of one Session.
type State int

const (
	Unauthenticated State = iota
	AwaitingCredentials
	AwaitingSecondFactor
	Authenticated
	Failed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AwaitingCredentials:
		return "awaiting-credentials"
	case AwaitingSecondFactor:
		return "awaiting-second-factor"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == Authenticated || s == Failed
}

var transitions = map[State][]State{
	Unauthenticated:      {AwaitingCredentials, Failed},
	AwaitingCredentials:  {AwaitingSecondFactor, Authenticated, Failed},
	AwaitingSecondFactor: {Authenticated, Failed},
}

// Machine validates state changes and keeps their history.
type Machine struct {
	state   State
	history []State
}

func (m *Machine) State() State { return m.state }

// History returns every state entered, starting with Unauthenticated.
func (m *Machine) History() []State {
	return append([]State{Unauthenticated}, m.history...)
}

// Transition moves to next or returns ErrInvalidTransition. Re-entering the
// current state is a no-op.
func (m *Machine) Transition(next State) error {
	if next == m.state {
		return nil
	}
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			m.history = append(m.history, next)
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, next)
}
