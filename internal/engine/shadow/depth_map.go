package shadow

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-batch/internal/engine/gpu"
)

// depthMap is a layered depth target whose texture stays resident for bindless sampling.
type depthMap struct {
	dev    gpu.Device
	target *gpu.DepthTarget
	handle uint64
}

func newDepthMap(dev gpu.Device, kind gpu.DepthKind, resolution, layers int) (*depthMap, error) {
	target, err := gpu.NewDepthTarget(dev, kind, resolution, layers)
	if err != nil {
		return nil, err
	}
	handle := dev.TextureHandle(target.Texture().ID())
	dev.MakeHandleResident(handle)
	return &depthMap{dev: dev, target: target, handle: handle}, nil
}

// Handle returns the resident bindless handle of the depth texture.
func (m *depthMap) Handle() uint64 { return m.handle }

// Texture returns the depth texture.
func (m *depthMap) Texture() *gpu.Texture { return m.target.Texture() }

func (m *depthMap) Resolution() int { return m.target.Resolution() }

// pass binds the target, clears every layer and hands the layer matrices to draw.
func (m *depthMap) pass(layers []mgl32.Mat4, draw func(layers []mgl32.Mat4)) {
	m.target.Begin()
	defer m.target.End()
	draw(layers)
}

// Close drops residency before the texture is deleted. It is safe to call more than once.
func (m *depthMap) Close() {
	if m == nil {
		return
	}
	if m.handle != 0 {
		m.dev.MakeHandleNonResident(m.handle)
		m.handle = 0
	}
	m.target.Close()
}
