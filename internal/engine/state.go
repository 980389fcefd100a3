package engine

import "fmt"

// State is the lifecycle state of a Simulation.
//
//	Initializing → Running ⇄ Paused
//	Initializing | Running | Paused → Ended (terminal)
type State uint8

const (
	Initializing State = iota
	Running
	Paused
	Ended
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// loops reports whether the tick loop keeps going in this state.
func (s State) loops() bool {
	switch s {
	case Initializing, Running:
		return true
	case Paused, Ended:
		return false
	}
	return false
}

// MarshalText lets State render as its name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name as written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{Initializing, Running, Paused, Ended} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}
