package batch

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-batch/internal/engine/geom"
)

// Mesh is one drawable surface ready for submission. It is built once when
// a model loads and never changes after Receive.
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
	Textures [NumTextureSlots]TextureBinding
	Material MaterialParams
	HasBone  bool
	// Transform places the mesh inside its model. Skinned meshes usually keep identity.
	Transform mgl32.Mat4
}

// Bounds returns the box around the mesh's vertex positions.
func (m *Mesh) Bounds() geom.AABB {
	b := geom.EmptyAABB()
	for i := range m.Vertices {
		b.Extend(m.Vertices[i].Position)
	}
	return b
}

// Triangles returns the number of triangles in the index list.
func (m *Mesh) Triangles() int {
	return len(m.Indices) / 3
}
