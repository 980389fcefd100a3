package engine

import "errors"

var (
	// ErrInvalidParams rejects out-of-range run parameters. Values are never clamped.
	ErrInvalidParams = errors.New("invalid simulation parameters")
	// ErrEnded is returned by any transition attempted after End.
	ErrEnded = errors.New("simulation has ended")
	// ErrAlreadyRunning is returned by Run or Step while the tick loop is active.
	ErrAlreadyRunning = errors.New("simulation is already running")
	// ErrInterruptedWait means the caller gave up waiting for the tick loop
	// to stop. The loop has been signalled and will still stop; retry the wait.
	ErrInterruptedWait = errors.New("interrupted while waiting for tick loop")
	// ErrNoSimulation is returned by Controller commands before the first Start.
	ErrNoSimulation = errors.New("no simulation started")
)
