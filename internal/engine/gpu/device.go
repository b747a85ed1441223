// Package gpu wraps the graphics device behind a small interface so the batch
// registry and shadow code can run against OpenGL or an in-memory recorder.
package gpu

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrIncompleteFramebuffer is returned when a framebuffer attachment check fails.
var ErrIncompleteFramebuffer = errors.New("framebuffer incomplete")

// ErrOutOfRange is returned when a buffer update would write past the end.
var ErrOutOfRange = errors.New("write out of buffer range")

// ShaderStage identifies one stage of a program.
type ShaderStage int

const (
	StageVertex ShaderStage = iota
	StageGeometry
	StageFragment
	StageCompute
)

func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageGeometry:
		return "geometry"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	}
	return "unknown"
}

// DepthKind selects the shape of a depth texture.
type DepthKind int

const (
	// DepthArray is a 2D array texture, one layer per cascade.
	DepthArray DepthKind = iota
	// DepthCube is a cube map with six faces.
	DepthCube
)

// Device is the set of GPU operations the engine needs. Ids are opaque to callers.
type Device interface {
	CreateBuffer(data []byte, size int) (uint32, error)
	UpdateBuffer(id uint32, offset int, data []byte)
	BindStorage(index uint32, id uint32)
	DeleteBuffer(id uint32)

	CreateVertexArray(layout VertexLayout) (uint32, error)
	DeleteVertexArray(id uint32)

	CreateTexture2D(width, height int, rgba []byte) (uint32, error)
	CreateDepthTexture(kind DepthKind, resolution, layers int) (uint32, error)
	DeleteTexture(id uint32)
	TextureHandle(texture uint32) uint64
	MakeHandleResident(handle uint64)
	MakeHandleNonResident(handle uint64)
	HandleResident(handle uint64) bool

	CreateDepthFramebuffer(depth uint32) (uint32, error)
	DeleteFramebuffer(id uint32)
	BeginDepthPass(framebuffer uint32, resolution int)
	EndDepthPass()

	CompileProgram(sources map[ShaderStage]string) (uint32, error)
	DeleteProgram(id uint32)
	UseProgram(id uint32)
	UniformLocation(program uint32, name string) int32
	UniformMat4(location int32, values []mgl32.Mat4)
	UniformVec3(location int32, values []mgl32.Vec3)
	UniformFloat(location int32, values []float32)
	UniformInt(location int32, value int32)
	UniformHandle(location int32, handle uint64)

	MultiDrawIndirect(vertexArray, commands uint32, count int)
	DrawLines(vertexArray uint32, count int)
	// SetClipDistance turns user clip distance 0 on or off.
	SetClipDistance(enabled bool)

	// BeginFrame binds the default framebuffer and clears it.
	BeginFrame(width, height int, clear mgl32.Vec3)
	// ReadPixels returns the default framebuffer as bottom-up RGBA rows.
	ReadPixels(width, height int) []byte
}
