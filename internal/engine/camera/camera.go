// Package camera provides camera implementations for 3D rendering.
package camera

import (
	"github.com/go-gl/mathgl/mgl32"
)

// View is what shadow fitting and the lit pass need from a camera.
type View interface {
	Position() mgl32.Vec3
	ViewMatrix() mgl32.Mat4
	// ProjectionRange returns the camera's projection clipped to [near, far].
	ProjectionRange(near, far float32) mgl32.Mat4
	NearFar() (near, far float32)
}

// Lens holds the perspective parameters shared by every camera type.
type Lens struct {
	FOV    float32 // vertical, degrees
	Aspect float32
	Near   float32
	Far    float32
}

// DefaultLens matches the renderer defaults: 60 degrees, 0.1 to 1000.
func DefaultLens(aspect float32) Lens {
	return Lens{FOV: 60, Aspect: aspect, Near: 0.1, Far: 1000}
}

// ProjectionMatrix returns the full-range perspective projection.
func (l Lens) ProjectionMatrix() mgl32.Mat4 {
	return l.ProjectionRange(l.Near, l.Far)
}

func (l Lens) ProjectionRange(near, far float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(l.FOV), l.Aspect, near, far)
}

func (l Lens) NearFar() (float32, float32) {
	return l.Near, l.Far
}

// FrustumCorners returns the world-space corners of v's frustum clipped to
// [near, far], found by unprojecting the NDC cube. Bit 0 of the index selects
// +x, bit 1 +y, bit 2 the far plane.
func FrustumCorners(v View, near, far float32) [8]mgl32.Vec3 {
	inv := v.ProjectionRange(near, far).Mul4(v.ViewMatrix()).Inv()

	var out [8]mgl32.Vec3
	for i := range out {
		ndc := mgl32.Vec4{-1, -1, -1, 1}
		if i&1 != 0 {
			ndc[0] = 1
		}
		if i&2 != 0 {
			ndc[1] = 1
		}
		if i&4 != 0 {
			ndc[2] = 1
		}
		p := inv.Mul4x1(ndc)
		out[i] = p.Vec3().Mul(1 / p[3])
	}
	return out
}
