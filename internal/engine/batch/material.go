package batch

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-batch/internal/engine/texture"
)

// TextureSlot names the material texture slots in the order the shader reads them.
type TextureSlot int

const (
	SlotDiffuse TextureSlot = iota
	SlotAmbient
	SlotSpecular
	SlotNormals
	SlotMetalness
	SlotDiffuseRoughness
	SlotAmbientOcclusion

	NumTextureSlots = 7
)

var slotNames = [NumTextureSlots]string{
	"diffuse", "ambient", "specular", "normals", "metalness", "diffuse_roughness", "ambient_occlusion",
}

func (s TextureSlot) String() string {
	if s < 0 || int(s) >= NumTextureSlots {
		return "unknown"
	}
	return slotNames[s]
}

// TextureOp is how a texture combines with the slot's base color.
type TextureOp int32

const (
	OpMultiply TextureOp = iota
	OpAdd
	OpSubtract
	OpDivide
	OpSmoothAdd
	OpSignedAdd
)

// TextureBinding is one material texture slot as read from the asset.
type TextureBinding struct {
	Enabled   bool
	Texture   *texture.Texture
	Op        TextureOp
	Blend     float32
	BaseColor mgl32.Vec3
}

// MaterialParams carries both the Phong and the metallic/roughness inputs;
// the shader picks a path per render mode.
type MaterialParams struct {
	Ambient, Diffuse, Specular, Emissive mgl32.Vec3
	Shininess                            float32

	Albedo              mgl32.Vec3
	Metallic, Roughness float32
	Emission            mgl32.Vec3
}

// DefaultMaterial is a plain white diffuse surface.
func DefaultMaterial() MaterialParams {
	return MaterialParams{
		Diffuse:   mgl32.Vec3{1, 1, 1},
		Shininess: 1,
		Albedo:    mgl32.Vec3{1, 1, 1},
		Roughness: 1,
	}
}

// Material is the std430 layout of one entry in the material storage buffer.
// Textures index the texture handle buffer, -1 when the slot is empty.
type Material struct {
	Textures [NumTextureSlots]int32
	_        int32

	Ambient  [4]float32
	Diffuse  [4]float32
	Specular [4]float32
	Emissive [4]float32
	Albedo   [4]float32
	Emission [4]float32

	Shininess float32
	Metallic  float32
	Roughness float32
	// BindMetalnessAndDiffuseRoughness is 1 when both slots share one packed texture.
	BindMetalnessAndDiffuseRoughness int32
}

func vec4(v mgl32.Vec3) [4]float32 {
	return [4]float32{v[0], v[1], v[2], 0}
}
