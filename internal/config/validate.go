package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid value")

// Validate checks values that would otherwise produce degenerate rendering state.
func (c *Config) Validate() error {
	if c.Graphics.Width <= 0 || c.Graphics.Height <= 0 {
		return fmt.Errorf("graphics size %dx%d: %w", c.Graphics.Width, c.Graphics.Height, ErrInvalid)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("camera near/far %g/%g: %w", c.Camera.Near, c.Camera.Far, ErrInvalid)
	}
	if c.Shadow.Resolution <= 0 {
		return fmt.Errorf("shadow resolution %d: %w", c.Shadow.Resolution, ErrInvalid)
	}
	if len(c.Shadow.Cascades) == 0 {
		return fmt.Errorf("shadow cascades empty: %w", ErrInvalid)
	}
	for i, s := range c.Shadow.Cascades {
		if s.Near < 0 || s.Far > 1 || s.Near >= s.Far {
			return fmt.Errorf("cascade %d split [%g, %g]: %w", i, s.Near, s.Far, ErrInvalid)
		}
		if i > 0 && s.Near < c.Shadow.Cascades[i-1].Near {
			return fmt.Errorf("cascade %d starts before cascade %d: %w", i, i-1, ErrInvalid)
		}
	}
	if c.Shadow.MarginXY < 1 || c.Shadow.MarginZ < 1 {
		return fmt.Errorf("shadow margins %g/%g must be >= 1: %w", c.Shadow.MarginXY, c.Shadow.MarginZ, ErrInvalid)
	}
	if c.Shadow.Global {
		for axis := 0; axis < 3; axis++ {
			if c.Shadow.GlobalMin[axis] > c.Shadow.GlobalMax[axis] {
				return fmt.Errorf("global shadow bounds axis %d: %w", axis, ErrInvalid)
			}
		}
	}
	if c.Batch.MaxVerticesPerMesh < 0 {
		return fmt.Errorf("max vertices per mesh %d: %w", c.Batch.MaxVerticesPerMesh, ErrInvalid)
	}
	for i, m := range c.Scene.Models {
		if m.Path == "" {
			return fmt.Errorf("scene model %d has no path: %w", i, ErrInvalid)
		}
	}
	return nil
}
