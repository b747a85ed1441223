package batch

import (
	"errors"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-batch/internal/engine/gpu"
)

// MaxBoneInfluences is the number of bones that may weigh on one vertex.
const MaxBoneInfluences = 12

// ErrTooManyBoneInfluences is returned when a vertex already holds MaxBoneInfluences bones.
var ErrTooManyBoneInfluences = errors.New("too many bone influences on vertex")

// Vertex is the shared vertex format of every batched mesh. Unused bone
// slots hold id -1.
type Vertex struct {
	Position    mgl32.Vec3
	UV          mgl32.Vec2
	Normal      mgl32.Vec3
	Tangent     mgl32.Vec3
	BoneIDs     [MaxBoneInfluences]int32
	BoneWeights [MaxBoneInfluences]float32
}

// NewVertex returns a vertex with no bone influences.
func NewVertex(pos mgl32.Vec3, uv mgl32.Vec2, normal, tangent mgl32.Vec3) Vertex {
	v := Vertex{Position: pos, UV: uv, Normal: normal, Tangent: tangent}
	for i := range v.BoneIDs {
		v.BoneIDs[i] = -1
	}
	return v
}

// AddBone stores a bone influence in the first free slot.
func (v *Vertex) AddBone(id int32, weight float32) error {
	for i := range v.BoneIDs {
		if v.BoneIDs[i] < 0 {
			v.BoneIDs[i] = id
			v.BoneWeights[i] = weight
			return nil
		}
	}
	return ErrTooManyBoneInfluences
}

// NumBones returns how many influence slots are in use.
func (v *Vertex) NumBones() int {
	n := 0
	for _, id := range v.BoneIDs {
		if id >= 0 {
			n++
		}
	}
	return n
}

// Vertex attribute locations read by the batch programs.
const (
	AttribPosition    = 0
	AttribUV          = 1
	AttribNormal      = 2
	AttribTangent     = 3
	AttribBoneIDs     = 4  // three ivec4
	AttribBoneWeights = 7  // three vec4
	AttribModelMatrix = 10 // four vec4 columns, per instance
)

const (
	vertexBinding   = 0
	instanceBinding = 1
)

// vertexLayout describes the shared vertex buffer plus the per-instance model matrices.
func vertexLayout(vertices, elements, modelMatrices uint32) gpu.VertexLayout {
	var v Vertex
	layout := gpu.VertexLayout{
		Bindings: []gpu.VertexBinding{
			{Index: vertexBinding, Buffer: vertices, Stride: int32(unsafe.Sizeof(v))},
			{Index: instanceBinding, Buffer: modelMatrices, Stride: int32(unsafe.Sizeof(mgl32.Mat4{})), Divisor: 1},
		},
		Attribs: []gpu.VertexAttrib{
			{Location: AttribPosition, Binding: vertexBinding, Size: 3, Offset: uint32(unsafe.Offsetof(v.Position))},
			{Location: AttribUV, Binding: vertexBinding, Size: 2, Offset: uint32(unsafe.Offsetof(v.UV))},
			{Location: AttribNormal, Binding: vertexBinding, Size: 3, Offset: uint32(unsafe.Offsetof(v.Normal))},
			{Location: AttribTangent, Binding: vertexBinding, Size: 3, Offset: uint32(unsafe.Offsetof(v.Tangent))},
		},
		Elements: elements,
	}
	for i := uint32(0); i < MaxBoneInfluences/4; i++ {
		layout.Attribs = append(layout.Attribs,
			gpu.VertexAttrib{
				Location: AttribBoneIDs + i, Binding: vertexBinding, Size: 4, Type: gpu.AttribInt,
				Offset: uint32(unsafe.Offsetof(v.BoneIDs)) + i*16,
			},
			gpu.VertexAttrib{
				Location: AttribBoneWeights + i, Binding: vertexBinding, Size: 4,
				Offset: uint32(unsafe.Offsetof(v.BoneWeights)) + i*16,
			})
	}
	for i := uint32(0); i < 4; i++ {
		layout.Attribs = append(layout.Attribs, gpu.VertexAttrib{
			Location: AttribModelMatrix + i, Binding: instanceBinding, Size: 4, Offset: i * 16,
		})
	}
	return layout
}
