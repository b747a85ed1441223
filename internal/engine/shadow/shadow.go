// Package shadow provides cascaded directional and omnidirectional shadow maps.
package shadow

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-batch/internal/engine/geom"
)

// DefaultResolution is the default shadow map resolution.
const DefaultResolution = 2048

// ErrNoGlobalCascade is returned when global bounds are set on a shadow created without a global cascade.
var ErrNoGlobalCascade = errors.New("shadow has no global cascade")

// Split is one cascade's share of the camera depth range, as ratios of [near, far].
type Split struct {
	Near, Far float32
}

// DefaultSplits overlap slightly so neighbouring cascades blend without gaps.
func DefaultSplits() []Split {
	return []Split{
		{0, 0.03},
		{0.02, 0.04},
		{0.03, 0.1},
		{0.07, 0.5},
		{0.4, 1},
	}
}

// Options configures a Directional shadow.
type Options struct {
	Resolution int
	Splits     []Split

	// MarginXY scales the fitted light-space box about its center on X and Y.
	MarginXY float32
	// MarginZ pushes the near and far light planes outward multiplicatively,
	// so casters outside the camera frustum still land in the map.
	MarginZ float32

	// Global, when set, adds one cascade over this fixed world box.
	Global *geom.AABB
}

// DefaultOptions returns five moving cascades and no global cascade.
func DefaultOptions() Options {
	return Options{
		Resolution: DefaultResolution,
		Splits:     DefaultSplits(),
		MarginXY:   1.5,
		MarginZ:    10,
	}
}

// Cascade is one fitted slice of the shadow volume.
type Cascade struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
	// Near and Far are camera-space distances. Zero for the global cascade.
	Near, Far float32
	// Bounds is the enlarged light-space box the projection was built from.
	Bounds geom.AABB
}

// ViewProjection returns Projection * View.
func (c Cascade) ViewProjection() mgl32.Mat4 {
	return c.Projection.Mul4(c.View)
}

// OBB returns the cascade volume in world space, for debug drawing.
func (c Cascade) OBB() geom.OBB {
	return geom.OBB{Local: c.Bounds, ToWorld: c.View.Inv()}
}

// Stats counts what the last Update did.
type Stats struct {
	Refit  int
	Reused int
}
