package lighting

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-batch/internal/engine/camera"
	"github.com/Faultbox/midgard-batch/internal/engine/shadow"
)

// ShadowKind selects the shadow variant.
type ShadowKind int

const (
	ShadowDirectional ShadowKind = iota
	ShadowOmnidirectional
)

func (k ShadowKind) String() string {
	switch k {
	case ShadowDirectional:
		return "directional shadow"
	case ShadowOmnidirectional:
		return "omnidirectional shadow"
	default:
		return fmt.Sprintf("ShadowKind(%d)", int(k))
	}
}

// Shadow is a closed set of shadow map variants. Exactly one pointer is set, matching Kind.
type Shadow struct {
	Kind        ShadowKind
	Directional *shadow.Directional
	Omni        *shadow.Omnidirectional
}

// CascadedShadow wraps a directional shadow.
func CascadedShadow(s *shadow.Directional) Shadow {
	return Shadow{Kind: ShadowDirectional, Directional: s}
}

// CubeShadow wraps an omnidirectional shadow.
func CubeShadow(s *shadow.Omnidirectional) Shadow {
	return Shadow{Kind: ShadowOmnidirectional, Omni: s}
}

// Update refits the shadow for the current camera. Cube shadows do not depend on the camera.
func (s Shadow) Update(view camera.View) shadow.Stats {
	switch s.Kind {
	case ShadowDirectional:
		return s.Directional.Update(view)
	default:
		return shadow.Stats{}
	}
}

// Layers returns one view-projection matrix per depth layer.
func (s Shadow) Layers() []mgl32.Mat4 {
	switch s.Kind {
	case ShadowDirectional:
		return s.Directional.ViewProjections()
	case ShadowOmnidirectional:
		return s.Omni.ViewProjections()
	default:
		return nil
	}
}

// DepthPass binds the shadow's depth target around draw.
func (s Shadow) DepthPass(draw func(layers []mgl32.Mat4)) {
	switch s.Kind {
	case ShadowDirectional:
		s.Directional.DepthPass(draw)
	case ShadowOmnidirectional:
		s.Omni.DepthPass(draw)
	}
}

// Handle returns the bindless handle of the shadow map.
func (s Shadow) Handle() uint64 {
	switch s.Kind {
	case ShadowDirectional:
		return s.Directional.Handle()
	case ShadowOmnidirectional:
		return s.Omni.Handle()
	default:
		return 0
	}
}

// Close releases the shadow map.
func (s Shadow) Close() {
	switch s.Kind {
	case ShadowDirectional:
		s.Directional.Close()
	case ShadowOmnidirectional:
		s.Omni.Close()
	}
}
