// Package debug generates and draws wireframes for bounding volumes and
// shadow cascades.
package debug

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-batch/internal/engine/geom"
)

// LineVertex is one endpoint of a colored debug line.
type LineVertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
}

// BoxVertexCount is the number of vertices of a box wireframe (12 edges × 2).
const BoxVertexCount = 24

// DefaultPadding is the default padding for selection boxes.
const DefaultPadding = 0.05

// CascadeColors tint cascades from nearest to farthest. The global cascade
// uses the last entry.
var CascadeColors = []mgl32.Vec3{
	{1, 0.2, 0.2},
	{1, 0.6, 0.1},
	{1, 1, 0.2},
	{0.2, 1, 0.3},
	{0.2, 0.6, 1},
	{0.6, 0.3, 1},
	{1, 0.3, 0.8},
	{1, 1, 1},
}

// AppendBox appends the 12 edges joining corners, given in geom.AABB.Corners
// order, to dst.
func AppendBox(dst []LineVertex, corners [8]mgl32.Vec3, color mgl32.Vec3) []LineVertex {
	for i := 0; i < 8; i++ {
		for bit := 1; bit < 8; bit <<= 1 {
			if i&bit != 0 {
				continue
			}
			dst = append(dst,
				LineVertex{Position: corners[i], Color: color},
				LineVertex{Position: corners[i|bit], Color: color},
			)
		}
	}
	return dst
}

// AABBLines returns the wireframe of b grown by padding on every side.
func AABBLines(b geom.AABB, padding float32, color mgl32.Vec3) []LineVertex {
	pad := mgl32.Vec3{padding, padding, padding}
	b = geom.AABB{Min: b.Min.Sub(pad), Max: b.Max.Add(pad)}
	return AppendBox(make([]LineVertex, 0, BoxVertexCount), b.Corners(), color)
}

// OBBLines returns the wireframe of o.
func OBBLines(o geom.OBB, color mgl32.Vec3) []LineVertex {
	return AppendBox(make([]LineVertex, 0, BoxVertexCount), o.Corners(), color)
}

// CascadeLines returns one colored wireframe per cascade volume.
func CascadeLines(obbs []geom.OBB) []LineVertex {
	out := make([]LineVertex, 0, len(obbs)*BoxVertexCount)
	for i, o := range obbs {
		color := CascadeColors[min(i, len(CascadeColors)-1)]
		out = AppendBox(out, o.Corners(), color)
	}
	return out
}
