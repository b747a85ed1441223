package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxPitch keeps the free camera from flipping over the poles.
const MaxPitch = 5 * math.Pi / 12

var worldUp = mgl32.Vec3{0, 1, 0}

// Camera is a free-look camera driven by yaw and pitch.
type Camera struct {
	Lens
	Pos   mgl32.Vec3
	Yaw   float32 // radians, 0 looks down +x
	Pitch float32 // radians, clamped to [-MaxPitch, MaxPitch]
}

// New creates a free camera at pos.
func New(pos mgl32.Vec3, yaw, pitch float32, lens Lens) *Camera {
	c := &Camera{Lens: lens, Pos: pos, Yaw: yaw}
	c.SetPitch(pitch)
	return c
}

func (c *Camera) Position() mgl32.Vec3 { return c.Pos }

// Front returns the unit view direction.
func (c *Camera) Front() mgl32.Vec3 {
	sy, cy := math.Sincos(float64(c.Yaw))
	sp, cp := math.Sincos(float64(c.Pitch))
	return mgl32.Vec3{float32(cy * cp), float32(sp), float32(sy * cp)}
}

// Right returns the unit right vector on the horizontal plane.
func (c *Camera) Right() mgl32.Vec3 {
	return c.Front().Cross(worldUp).Normalize()
}

func (c *Camera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Pos, c.Pos.Add(c.Front()), worldUp)
}

// SetPitch sets the pitch, clamped to the allowed range.
func (c *Camera) SetPitch(p float32) {
	c.Pitch = mgl32.Clamp(p, -MaxPitch, MaxPitch)
}

// Rotate turns the camera by the given yaw and pitch deltas in radians.
func (c *Camera) Rotate(dYaw, dPitch float32) {
	c.Yaw += dYaw
	c.SetPitch(c.Pitch + dPitch)
}

// Move translates along the view direction, the right vector and world up.
func (c *Camera) Move(forward, right, up float32) {
	c.Pos = c.Pos.
		Add(c.Front().Mul(forward)).
		Add(c.Right().Mul(right)).
		Add(worldUp.Mul(up))
}
