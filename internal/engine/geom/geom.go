// Package geom holds bounding volumes shared by the batch registry and shadows.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis-aligned box. The zero value is a box at the origin;
// use EmptyAABB to start accumulating points.
type AABB struct {
	Min, Max mgl32.Vec3
}

// EmptyAABB returns an inverted box that any point extends.
func EmptyAABB() AABB {
	inf := float32(math.Inf(1))
	return AABB{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

// Valid reports whether the box contains at least one point.
func (b AABB) Valid() bool {
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1] && b.Min[2] <= b.Max[2]
}

// Extend grows the box to contain p.
func (b *AABB) Extend(p mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		b.Min[i] = min(b.Min[i], p[i])
		b.Max[i] = max(b.Max[i], p[i])
	}
}

// Union returns the smallest box containing b and o.
func (b AABB) Union(o AABB) AABB {
	if !o.Valid() {
		return b
	}
	b.Extend(o.Min)
	b.Extend(o.Max)
	return b
}

func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Extents returns the half size along each axis.
func (b AABB) Extents() mgl32.Vec3 {
	return b.Max.Sub(b.Min).Mul(0.5)
}

// Contains reports whether p lies inside or on the box.
func (b AABB) Contains(p mgl32.Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// Corners returns the eight corners. Bit 0 of the index selects max x, bit 1 max y, bit 2 max z.
func (b AABB) Corners() [8]mgl32.Vec3 {
	var out [8]mgl32.Vec3
	for i := range out {
		out[i] = mgl32.Vec3{
			pick(i&1 != 0, b.Max[0], b.Min[0]),
			pick(i&2 != 0, b.Max[1], b.Min[1]),
			pick(i&4 != 0, b.Max[2], b.Min[2]),
		}
	}
	return out
}

// Transform returns the axis-aligned box around b's corners after m.
func (b AABB) Transform(m mgl32.Mat4) AABB {
	out := EmptyAABB()
	for _, c := range b.Corners() {
		out.Extend(mgl32.TransformCoordinate(c, m))
	}
	return out
}

func pick(cond bool, a, b float32) float32 {
	if cond {
		return a
	}
	return b
}

// OBB is a box given in a local frame plus the transform from that frame to world space.
type OBB struct {
	Local   AABB
	ToWorld mgl32.Mat4
}

// Corners returns the eight world-space corners in AABB.Corners order.
func (o OBB) Corners() [8]mgl32.Vec3 {
	c := o.Local.Corners()
	for i := range c {
		c[i] = mgl32.TransformCoordinate(c[i], o.ToWorld)
	}
	return c
}

// Center returns the world-space center.
func (o OBB) Center() mgl32.Vec3 {
	return mgl32.TransformCoordinate(o.Local.Center(), o.ToWorld)
}
