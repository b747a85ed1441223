package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-batch/internal/engine/geom"
)

// OrbitCamera orbits around a center point.
type OrbitCamera struct {
	Lens
	Center mgl32.Vec3

	// Spherical coordinates
	Distance  float32
	RotationX float32 // pitch, radians
	RotationY float32 // yaw, radians

	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	DragSensitivity float32
	ZoomSensitivity float32
}

// NewOrbitCamera creates a new orbit camera with default settings.
func NewOrbitCamera(lens Lens) *OrbitCamera {
	return &OrbitCamera{
		Lens:            lens,
		Distance:        10,
		RotationX:       0.5,
		MinDistance:     0.5,
		MaxDistance:     500,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() mgl32.Vec3 {
	sx, cx := math.Sincos(float64(c.RotationX))
	sy, cy := math.Sincos(float64(c.RotationY))
	offset := mgl32.Vec3{float32(cx * sy), float32(sx), float32(cx * cy)}
	return c.Center.Add(offset.Mul(c.Distance))
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Center, worldUp)
}

// HandleDrag updates rotation based on mouse drag delta.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	c.RotationY -= deltaX * c.DragSensitivity
	c.RotationX = mgl32.Clamp(c.RotationX+deltaY*c.DragSensitivity, c.MinPitch, c.MaxPitch)
}

// HandleZoom updates distance based on scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	d := c.Distance - delta*c.Distance*c.ZoomSensitivity
	c.Distance = mgl32.Clamp(d, c.MinDistance, c.MaxDistance)
}

// FitToBounds centers the camera on box and backs off far enough to see all of it.
func (c *OrbitCamera) FitToBounds(box geom.AABB) {
	if !box.Valid() {
		return
	}
	c.Center = box.Center()
	radius := box.Extents().Len()
	half := mgl32.DegToRad(c.FOV) / 2
	c.Distance = mgl32.Clamp(radius/float32(math.Sin(float64(half))), c.MinDistance, c.MaxDistance)
	c.RotationX = 0.6
	c.RotationY = 0
}
