package gpu

import "fmt"

// DepthTarget is a depth-only layered framebuffer and the texture it renders into.
type DepthTarget struct {
	dev        Device
	fbo        uint32
	depth      *Texture
	resolution int
}

// NewDepthTarget creates the depth texture and a framebuffer with all its layers attached.
// Nothing is leaked when the framebuffer turns out incomplete.
func NewDepthTarget(dev Device, kind DepthKind, resolution, layers int) (*DepthTarget, error) {
	depth, err := NewDepthTexture(dev, kind, resolution, layers)
	if err != nil {
		return nil, fmt.Errorf("creating depth target: %w", err)
	}
	fbo, err := dev.CreateDepthFramebuffer(depth.ID())
	if err != nil {
		depth.Close()
		return nil, fmt.Errorf("creating depth target: %w", err)
	}
	return &DepthTarget{dev: dev, fbo: fbo, depth: depth, resolution: resolution}, nil
}

// Texture returns the depth texture sampled by later passes.
func (t *DepthTarget) Texture() *Texture { return t.depth }

func (t *DepthTarget) Resolution() int { return t.resolution }

// Begin binds the target for a depth-only pass; End restores the previous state.
func (t *DepthTarget) Begin() {
	t.dev.BeginDepthPass(t.fbo, t.resolution)
}

func (t *DepthTarget) End() {
	t.dev.EndDepthPass()
}

// IsValid reports whether the target still owns its resources.
func (t *DepthTarget) IsValid() bool {
	return t != nil && t.fbo != 0 && t.depth.ID() != 0
}

// Close releases the framebuffer and texture. It is safe to call more than once.
func (t *DepthTarget) Close() {
	if t == nil {
		return
	}
	if t.fbo != 0 {
		t.dev.DeleteFramebuffer(t.fbo)
		t.fbo = 0
	}
	t.depth.Close()
}
