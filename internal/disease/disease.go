// Package disease holds the immutable parameters of the simulated disease.
package disease

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfRange is returned when a disease parameter falls outside [0, 1].
var ErrOutOfRange = errors.New("disease parameter out of range")

// Disease is fixed for the lifetime of a run.
type Disease struct {
	spreadingFactor float64
	mortalityRate   float64
}

// New validates and builds a Disease. Both rates must lie in [0, 1].
func New(spreadingFactor, mortalityRate float64) (Disease, error) {
	if !inUnit(spreadingFactor) {
		return Disease{}, fmt.Errorf("spreading factor %v: %w", spreadingFactor, ErrOutOfRange)
	}
	if !inUnit(mortalityRate) {
		return Disease{}, fmt.Errorf("mortality rate %v: %w", mortalityRate, ErrOutOfRange)
	}
	return Disease{spreadingFactor: spreadingFactor, mortalityRate: mortalityRate}, nil
}

// SpreadingFactor is the base transmission factor R.
func (d Disease) SpreadingFactor() float64 { return d.spreadingFactor }

// MortalityRate is Z; higher values shorten survival once infected.
func (d Disease) MortalityRate() float64 { return d.mortalityRate }

// SurvivalTicks is how many ticks an untreated infection lasts before death:
// round(100 × (1 − mortality)).
func (d Disease) SurvivalTicks() int {
	return int(math.Round(100 * (1 - d.mortalityRate)))
}

func (d Disease) String() string {
	return fmt.Sprintf("Disease{spreading=%.2f mortality=%.2f}", d.spreadingFactor, d.mortalityRate)
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
