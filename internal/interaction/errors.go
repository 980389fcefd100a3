package interaction

import "errors"

// ErrOutOfBounds means an agent left the canvas. It breaks the coordinate
// invariant and is fatal for the tick loop.
var ErrOutOfBounds = errors.New("agent out of canvas bounds")

// errStop ends an arena scan early.
var errStop = errors.New("stop")
