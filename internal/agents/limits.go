package agents

import (
	"errors"
	"fmt"
)

// Limits holds the canvas geometry and attribute ranges agents are drawn from.
type Limits struct {
	CanvasX            int `yaml:"canvas_x" json:"canvas_x"`
	CanvasY            int `yaml:"canvas_y" json:"canvas_y"`
	Box                int `yaml:"box" json:"box"` // side of the square an agent occupies
	MaxSpeed           int `yaml:"max_speed" json:"max_speed"`
	MaxSocialDistance  int `yaml:"max_social_distance" json:"max_social_distance"`
	MaxInteractionTime int `yaml:"max_interaction_time" json:"max_interaction_time"`
}

// DefaultLimits returns the standard 1000×600 canvas configuration.
func DefaultLimits() Limits {
	return Limits{
		CanvasX:            1000,
		CanvasY:            600,
		Box:                5,
		MaxSpeed:           500,
		MaxSocialDistance:  10,
		MaxInteractionTime: 5,
	}
}

// Validate checks that every range is non-empty.
func (l Limits) Validate() error {
	var errs []error
	if l.CanvasX <= 0 || l.CanvasY <= 0 {
		errs = append(errs, fmt.Errorf("canvas %dx%d must be positive", l.CanvasX, l.CanvasY))
	}
	if l.Box <= 0 {
		errs = append(errs, fmt.Errorf("box %d must be positive", l.Box))
	}
	if l.MaxSpeed < 1 {
		errs = append(errs, fmt.Errorf("max speed %d must be at least 1", l.MaxSpeed))
	}
	if l.MaxSocialDistance < 1 {
		errs = append(errs, fmt.Errorf("max social distance %d must be at least 1", l.MaxSocialDistance))
	}
	if l.MaxInteractionTime < 1 {
		errs = append(errs, fmt.Errorf("max interaction time %d must be at least 1", l.MaxInteractionTime))
	}
	return errors.Join(errs...)
}

// InBounds reports whether (x, y) lies on the canvas.
func (l Limits) InBounds(x, y int) bool {
	return x >= 0 && x < l.CanvasX && y >= 0 && y < l.CanvasY
}
