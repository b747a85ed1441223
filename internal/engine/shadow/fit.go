package shadow

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-batch/internal/engine/geom"
)

// upFor picks world up unless the light runs parallel to it.
func upFor(dir mgl32.Vec3) mgl32.Vec3 {
	up := mgl32.Vec3{0, 1, 0}
	d := float64(up.Dot(dir.Normalize()))
	if math.Abs(math.Abs(d)-1) < 1e-8 {
		up = mgl32.Vec3{0, 0, 1}
	}
	return up
}

// centroid returns the mean of the points.
func centroid(points []mgl32.Vec3) mgl32.Vec3 {
	var c mgl32.Vec3
	for _, p := range points {
		c = c.Add(p)
	}
	return c.Mul(1 / float32(len(points)))
}

// lightView looks along dir at the centroid of the points.
func lightView(dir mgl32.Vec3, points []mgl32.Vec3) mgl32.Mat4 {
	center := centroid(points)
	return mgl32.LookAtV(center.Sub(dir), center, upFor(dir))
}

// lightBounds returns the box around points in the light space of view.
func lightBounds(view mgl32.Mat4, points []mgl32.Vec3) geom.AABB {
	b := geom.EmptyAABB()
	for _, p := range points {
		b.Extend(mgl32.TransformCoordinate(p, view))
	}
	return b
}

// enlarge grows a light-space box by the margins. Z is scaled away from the
// light plane in both directions, X and Y are scaled about the center.
func enlarge(b geom.AABB, marginXY, marginZ float32) geom.AABB {
	if b.Min[2] < 0 {
		b.Min[2] *= marginZ
	} else {
		b.Min[2] /= marginZ
	}
	if b.Max[2] < 0 {
		b.Max[2] /= marginZ
	} else {
		b.Max[2] *= marginZ
	}

	center := b.Center()
	ext := b.Extents()
	for i := 0; i < 2; i++ {
		b.Min[i] = center[i] - ext[i]*marginXY
		b.Max[i] = center[i] + ext[i]*marginXY
	}
	return b
}

// ortho maps a light-space box to clip space. The light looks down -Z, so
// the near plane sits at -Max.Z.
func ortho(b geom.AABB) mgl32.Mat4 {
	return mgl32.Ortho(b.Min[0], b.Max[0], b.Min[1], b.Max[1], -b.Max[2], -b.Min[2])
}

// fit builds a fresh cascade around points.
func fit(dir mgl32.Vec3, points []mgl32.Vec3, marginXY, marginZ float32) Cascade {
	view := lightView(dir, points)
	bounds := enlarge(lightBounds(view, points), marginXY, marginZ)
	return Cascade{View: view, Projection: ortho(bounds), Bounds: bounds}
}

// covers reports whether the cascade's cached box still holds every point.
func (c Cascade) covers(points []mgl32.Vec3) bool {
	if !c.Bounds.Valid() {
		return false
	}
	b := lightBounds(c.View, points)
	return c.Bounds.Contains(b.Min) && c.Bounds.Contains(b.Max)
}
