package debug

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Grid colors.
var (
	GridColor  = mgl32.Vec3{0.35, 0.35, 0.4}
	AxisXColor = mgl32.Vec3{0.9, 0.2, 0.2}
	AxisZColor = mgl32.Vec3{0.2, 0.4, 0.9}
)

// GridLines returns a ground grid of cells step wide spanning
// [-cells*step, cells*step] on x and z at height y. The lines through the
// origin take the axis colors.
func GridLines(cells int, step, y float32) []LineVertex {
	if cells <= 0 || step <= 0 {
		return nil
	}
	extent := float32(cells) * step
	out := make([]LineVertex, 0, 4*(2*cells+1))
	for i := -cells; i <= cells; i++ {
		d := float32(i) * step

		xColor, zColor := GridColor, GridColor
		if i == 0 {
			xColor, zColor = AxisXColor, AxisZColor
		}
		// Parallel to x at z = d.
		out = append(out,
			LineVertex{Position: mgl32.Vec3{-extent, y, d}, Color: xColor},
			LineVertex{Position: mgl32.Vec3{extent, y, d}, Color: xColor},
		)
		// Parallel to z at x = d.
		out = append(out,
			LineVertex{Position: mgl32.Vec3{d, y, -extent}, Color: zColor},
			LineVertex{Position: mgl32.Vec3{d, y, extent}, Color: zColor},
		)
	}
	return out
}
