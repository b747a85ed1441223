package shadow

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-batch/internal/engine/gpu"
)

// Cube face projection planes.
const (
	OmniNear = 1e-2
	OmniFar  = 1e2
)

// cubeFaces lists the look direction and up vector of each cube face in
// +X, -X, +Y, -Y, +Z, -Z order.
var cubeFaces = [6][2]mgl32.Vec3{
	{{1, 0, 0}, {0, -1, 0}},
	{{-1, 0, 0}, {0, -1, 0}},
	{{0, 1, 0}, {0, 0, 1}},
	{{0, -1, 0}, {0, 0, -1}},
	{{0, 0, 1}, {0, -1, 0}},
	{{0, 0, -1}, {0, -1, 0}},
}

// Omnidirectional is a cube shadow map for a point light.
type Omnidirectional struct {
	*depthMap

	Position mgl32.Vec3
	Radius   float32
}

// NewOmnidirectional creates a cube depth map at the given resolution.
func NewOmnidirectional(dev gpu.Device, position mgl32.Vec3, radius float32, resolution int) (*Omnidirectional, error) {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	dm, err := newDepthMap(dev, gpu.DepthCube, resolution, 6)
	if err != nil {
		return nil, fmt.Errorf("creating omnidirectional shadow: %w", err)
	}
	return &Omnidirectional{depthMap: dm, Position: position, Radius: radius}, nil
}

// ViewProjections returns the six face matrices.
func (o *Omnidirectional) ViewProjections() []mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, OmniNear, OmniFar)
	out := make([]mgl32.Mat4, len(cubeFaces))
	for i, f := range cubeFaces {
		out[i] = proj.Mul4(mgl32.LookAtV(o.Position, o.Position.Add(f[0]), f[1]))
	}
	return out
}

// DepthPass renders into all six faces at once.
func (o *Omnidirectional) DepthPass(draw func(layers []mgl32.Mat4)) {
	o.pass(o.ViewProjections(), draw)
}

// Far returns the far plane of every face, used to normalize stored depth.
func (o *Omnidirectional) Far() float32 { return OmniFar }
