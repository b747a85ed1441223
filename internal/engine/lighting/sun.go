// Package lighting holds the light and shadow variants fed to the lit pass.
package lighting

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// SunDirection converts longitude/latitude angles to a direction vector.
// Longitude is rotation around Y axis (0-360), latitude is elevation from horizon (0-90).
// Returns a normalized direction vector pointing towards the sun.
func SunDirection(longitude, latitude float64) mgl32.Vec3 {
	lonRad := longitude * math.Pi / 180.0
	latRad := latitude * math.Pi / 180.0

	// Longitude is around Y axis, latitude is elevation from horizon
	x := float32(math.Cos(latRad) * math.Sin(lonRad))
	y := float32(math.Sin(latRad))
	z := float32(math.Cos(latRad) * math.Cos(lonRad))

	return mgl32.Vec3{x, y, z}
}

// SunLight returns the direction sunlight travels, the opposite of SunDirection.
func SunLight(longitude, latitude float64) mgl32.Vec3 {
	return SunDirection(longitude, latitude).Mul(-1)
}
