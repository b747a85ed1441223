// Package assets imports model files into decoded scene arrays and caches them.
package assets

import (
	"github.com/go-gl/mathgl/mgl32"
)

// TextureKind names a material texture slot.
type TextureKind int

const (
	TextureDiffuse TextureKind = iota
	TextureAmbient
	TextureSpecular
	TextureNormals
	TextureMetalness
	TextureDiffuseRoughness
	TextureAmbientOcclusion
	NumTextureKinds
)

// Image is a texture source. Exactly one of Path and Data is set.
type Image struct {
	Key  string
	Path string
	Data []byte
}

// TextureRef points a material slot at an image.
type TextureRef struct {
	Image int
	// Blend and Op describe how the slot combines with the base color.
	Blend     float32
	Op        int
	BaseColor mgl32.Vec3
}

// Material holds both the classic and the metallic/roughness parameters.
type Material struct {
	Name string

	Ambient, Diffuse, Specular, Emissive mgl32.Vec3
	Shininess                            float32

	Albedo              mgl32.Vec3
	Metallic, Roughness float32
	Emission            mgl32.Vec3

	Textures map[TextureKind]TextureRef
}

// BoneWeight is one vertex influenced by a bone.
type BoneWeight struct {
	Vertex uint32
	Weight float32
}

// Bone is a joint influencing a mesh. Offset maps mesh space to bone space.
type Bone struct {
	Name    string
	Offset  mgl32.Mat4
	Weights []BoneWeight
}

// Mesh is one triangle list with a single material. Normals, Tangents and
// UVs are either empty or as long as Positions.
type Mesh struct {
	Name      string
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Tangents  []mgl32.Vec3
	UVs       []mgl32.Vec2
	Indices   []uint32
	Material  int // -1 when the mesh has none
	Bones     []Bone
}

// Node is one entry of the node hierarchy. Parent is -1 for roots.
type Node struct {
	Name      string
	Parent    int
	Children  []int
	Transform mgl32.Mat4
	Meshes    []int
}

// VectorKey is a translation or scale keyframe.
type VectorKey struct {
	Time  float64
	Value mgl32.Vec3
}

// QuatKey is a rotation keyframe.
type QuatKey struct {
	Time  float64
	Value mgl32.Quat
}

// Channel animates one node. Key times are ticks, sorted ascending.
type Channel struct {
	Node         string
	Translations []VectorKey
	Rotations    []QuatKey
	Scales       []VectorKey
}

// Animation is a named set of channels.
type Animation struct {
	Name           string
	Duration       float64 // ticks
	TicksPerSecond float64
	Channels       []Channel
}

// Scene is a decoded model file.
type Scene struct {
	Name       string
	Meshes     []Mesh
	Materials  []Material
	Images     []Image
	Nodes      []Node
	Root       int
	Animations []Animation
}

// Stats counts what a scene contains.
type Stats struct {
	Meshes, Vertices, Triangles, Bones int
	Materials, Images, Nodes           int
	Animations                         int
}

// Stats counts what the scene contains. Bones counts distinct bone names.
func (s *Scene) Stats() Stats {
	st := Stats{
		Meshes:     len(s.Meshes),
		Materials:  len(s.Materials),
		Images:     len(s.Images),
		Nodes:      len(s.Nodes),
		Animations: len(s.Animations),
	}
	bones := make(map[string]bool)
	for i := range s.Meshes {
		m := &s.Meshes[i]
		st.Vertices += len(m.Positions)
		st.Triangles += len(m.Indices) / 3
		for _, b := range m.Bones {
			bones[b.Name] = true
		}
	}
	st.Bones = len(bones)
	return st
}
