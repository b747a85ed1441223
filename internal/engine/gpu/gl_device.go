package gpu

import (
	"fmt"
	"math/bits"
	"unsafe"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-batch/internal/logger"
)

// GLDevice implements Device on an OpenGL 4.6 core context with ARB_bindless_texture.
// It must be created and used on the thread that owns the context.
type GLDevice struct {
	prevViewport [4]int32
	cullEnabled  bool
}

// NewGLDevice loads the GL function pointers for the current context.
func NewGLDevice() (*GLDevice, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("initializing OpenGL: %w", err)
	}

	logger.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	if !hasExtension("GL_ARB_bindless_texture") {
		return nil, fmt.Errorf("GL_ARB_bindless_texture not supported")
	}

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.BACK)
	gl.ClearColor(0.1, 0.1, 0.15, 1.0)

	return &GLDevice{}, nil
}

func hasExtension(name string) bool {
	var n int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &n)
	for i := int32(0); i < n; i++ {
		if gl.GoStr(gl.GetStringi(gl.EXTENSIONS, uint32(i))) == name {
			return true
		}
	}
	return false
}

func ptr(data []byte) unsafe.Pointer {
	if len(data) == 0 {
		return nil
	}
	return gl.Ptr(data)
}

// CreateBuffer allocates immutable storage that can still be updated with UpdateBuffer.
func (d *GLDevice) CreateBuffer(data []byte, size int) (uint32, error) {
	if size <= 0 || len(data) > size {
		return 0, fmt.Errorf("buffer size %d for %d bytes of data", size, len(data))
	}
	var id uint32
	gl.CreateBuffers(1, &id)
	if len(data) == size {
		gl.NamedBufferStorage(id, size, ptr(data), gl.DYNAMIC_STORAGE_BIT)
	} else {
		gl.NamedBufferStorage(id, size, nil, gl.DYNAMIC_STORAGE_BIT)
		if len(data) > 0 {
			gl.NamedBufferSubData(id, 0, len(data), ptr(data))
		}
	}
	return id, nil
}

func (d *GLDevice) UpdateBuffer(id uint32, offset int, data []byte) {
	if len(data) == 0 {
		return
	}
	gl.NamedBufferSubData(id, offset, len(data), ptr(data))
}

func (d *GLDevice) BindStorage(index uint32, id uint32) {
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, index, id)
}

func (d *GLDevice) DeleteBuffer(id uint32) {
	gl.DeleteBuffers(1, &id)
}

func (d *GLDevice) CreateVertexArray(layout VertexLayout) (uint32, error) {
	var vao uint32
	gl.CreateVertexArrays(1, &vao)

	for _, b := range layout.Bindings {
		gl.VertexArrayVertexBuffer(vao, b.Index, b.Buffer, 0, b.Stride)
		if b.Divisor > 0 {
			gl.VertexArrayBindingDivisor(vao, b.Index, b.Divisor)
		}
	}
	for _, a := range layout.Attribs {
		gl.EnableVertexArrayAttrib(vao, a.Location)
		switch a.Type {
		case AttribInt:
			gl.VertexArrayAttribIFormat(vao, a.Location, a.Size, gl.INT, a.Offset)
		default:
			gl.VertexArrayAttribFormat(vao, a.Location, a.Size, gl.FLOAT, false, a.Offset)
		}
		gl.VertexArrayAttribBinding(vao, a.Location, a.Binding)
	}
	if layout.Elements != 0 {
		gl.VertexArrayElementBuffer(vao, layout.Elements)
	}
	return vao, nil
}

func (d *GLDevice) DeleteVertexArray(id uint32) {
	gl.DeleteVertexArrays(1, &id)
}

func (d *GLDevice) CreateTexture2D(width, height int, rgba []byte) (uint32, error) {
	if width <= 0 || height <= 0 || len(rgba) < width*height*4 {
		return 0, fmt.Errorf("texture %dx%d with %d bytes", width, height, len(rgba))
	}
	levels := int32(bits.Len(uint(max(width, height))))

	var id uint32
	gl.CreateTextures(gl.TEXTURE_2D, 1, &id)
	gl.TextureStorage2D(id, levels, gl.RGBA8, int32(width), int32(height))
	gl.TextureSubImage2D(id, 0, 0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, ptr(rgba))
	gl.TextureParameteri(id, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TextureParameteri(id, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.TextureParameteri(id, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TextureParameteri(id, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.GenerateTextureMipmap(id)
	return id, nil
}

// CreateDepthTexture allocates a comparison-sampled depth texture.
// Texels outside a 2D array layer read as fully lit.
func (d *GLDevice) CreateDepthTexture(kind DepthKind, resolution, layers int) (uint32, error) {
	if resolution <= 0 {
		return 0, fmt.Errorf("depth texture resolution %d", resolution)
	}
	res := int32(resolution)

	var id uint32
	switch kind {
	case DepthCube:
		gl.CreateTextures(gl.TEXTURE_CUBE_MAP, 1, &id)
		gl.TextureStorage2D(id, 1, gl.DEPTH_COMPONENT32F, res, res)
		gl.TextureParameteri(id, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
		gl.TextureParameteri(id, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
		gl.TextureParameteri(id, gl.TEXTURE_WRAP_R, gl.CLAMP_TO_EDGE)
	default:
		if layers <= 0 {
			return 0, fmt.Errorf("depth array with %d layers", layers)
		}
		gl.CreateTextures(gl.TEXTURE_2D_ARRAY, 1, &id)
		gl.TextureStorage3D(id, 1, gl.DEPTH_COMPONENT32F, res, res, int32(layers))
		gl.TextureParameteri(id, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_BORDER)
		gl.TextureParameteri(id, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_BORDER)
		border := [4]float32{1, 1, 1, 1}
		gl.TextureParameterfv(id, gl.TEXTURE_BORDER_COLOR, &border[0])
	}
	gl.TextureParameteri(id, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TextureParameteri(id, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TextureParameteri(id, gl.TEXTURE_COMPARE_MODE, gl.COMPARE_REF_TO_TEXTURE)
	gl.TextureParameteri(id, gl.TEXTURE_COMPARE_FUNC, gl.LEQUAL)
	return id, nil
}

func (d *GLDevice) DeleteTexture(id uint32) {
	gl.DeleteTextures(1, &id)
}

func (d *GLDevice) TextureHandle(texture uint32) uint64 {
	return gl.GetTextureHandleARB(texture)
}

func (d *GLDevice) MakeHandleResident(handle uint64) {
	gl.MakeTextureHandleResidentARB(handle)
}

func (d *GLDevice) MakeHandleNonResident(handle uint64) {
	gl.MakeTextureHandleNonResidentARB(handle)
}

func (d *GLDevice) HandleResident(handle uint64) bool {
	return gl.IsTextureHandleResidentARB(handle)
}

// CreateDepthFramebuffer attaches every layer of depth so a geometry shader can pick the layer.
func (d *GLDevice) CreateDepthFramebuffer(depth uint32) (uint32, error) {
	var fbo uint32
	gl.CreateFramebuffers(1, &fbo)
	gl.NamedFramebufferTexture(fbo, gl.DEPTH_ATTACHMENT, depth, 0)
	gl.NamedFramebufferDrawBuffer(fbo, gl.NONE)
	gl.NamedFramebufferReadBuffer(fbo, gl.NONE)

	if status := gl.CheckNamedFramebufferStatus(fbo, gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		gl.DeleteFramebuffers(1, &fbo)
		return 0, fmt.Errorf("status 0x%x: %w", status, ErrIncompleteFramebuffer)
	}
	return fbo, nil
}

func (d *GLDevice) DeleteFramebuffer(id uint32) {
	gl.DeleteFramebuffers(1, &id)
}

// BeginDepthPass binds a depth target, clears it and disables face culling
// so thin geometry still casts from both sides.
func (d *GLDevice) BeginDepthPass(framebuffer uint32, resolution int) {
	gl.GetIntegerv(gl.VIEWPORT, &d.prevViewport[0])
	d.cullEnabled = gl.IsEnabled(gl.CULL_FACE)

	gl.BindFramebuffer(gl.FRAMEBUFFER, framebuffer)
	gl.Viewport(0, 0, int32(resolution), int32(resolution))
	gl.Clear(gl.DEPTH_BUFFER_BIT)
	gl.Enable(gl.DEPTH_TEST)
	gl.Disable(gl.CULL_FACE)
}

func (d *GLDevice) EndDepthPass() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(d.prevViewport[0], d.prevViewport[1], d.prevViewport[2], d.prevViewport[3])
	if d.cullEnabled {
		gl.Enable(gl.CULL_FACE)
	}
}

func (d *GLDevice) DeleteProgram(id uint32) {
	gl.DeleteProgram(id)
}

func (d *GLDevice) UseProgram(id uint32) {
	gl.UseProgram(id)
}

func (d *GLDevice) UniformLocation(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}

func (d *GLDevice) UniformMat4(location int32, values []mgl32.Mat4) {
	if location < 0 || len(values) == 0 {
		return
	}
	gl.UniformMatrix4fv(location, int32(len(values)), false, &values[0][0])
}

func (d *GLDevice) UniformVec3(location int32, values []mgl32.Vec3) {
	if location < 0 || len(values) == 0 {
		return
	}
	gl.Uniform3fv(location, int32(len(values)), &values[0][0])
}

func (d *GLDevice) UniformFloat(location int32, values []float32) {
	if location < 0 || len(values) == 0 {
		return
	}
	gl.Uniform1fv(location, int32(len(values)), &values[0])
}

func (d *GLDevice) UniformInt(location int32, value int32) {
	if location < 0 {
		return
	}
	gl.Uniform1i(location, value)
}

func (d *GLDevice) UniformHandle(location int32, handle uint64) {
	if location < 0 {
		return
	}
	gl.UniformHandleui64ARB(location, handle)
}

func (d *GLDevice) SetClipDistance(enabled bool) {
	if enabled {
		gl.Enable(gl.CLIP_DISTANCE0)
	} else {
		gl.Disable(gl.CLIP_DISTANCE0)
	}
}

// MultiDrawIndirect issues count indexed draws described by the commands buffer.
func (d *GLDevice) MultiDrawIndirect(vertexArray, commands uint32, count int) {
	if count == 0 {
		return
	}
	gl.BindVertexArray(vertexArray)
	gl.BindBuffer(gl.DRAW_INDIRECT_BUFFER, commands)
	gl.MultiDrawElementsIndirect(gl.TRIANGLES, gl.UNSIGNED_INT, nil, int32(count), 0)
	gl.BindBuffer(gl.DRAW_INDIRECT_BUFFER, 0)
	gl.BindVertexArray(0)
}

// DrawLines draws count vertices of vertexArray as a line list.
func (d *GLDevice) DrawLines(vertexArray uint32, count int) {
	if count == 0 {
		return
	}
	gl.BindVertexArray(vertexArray)
	gl.DrawArrays(gl.LINES, 0, int32(count))
	gl.BindVertexArray(0)
}

func (d *GLDevice) BeginFrame(width, height int, clear mgl32.Vec3) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(width), int32(height))
	gl.ClearColor(clear[0], clear[1], clear[2], 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

func (d *GLDevice) ReadPixels(width, height int) []byte {
	pixels := make([]byte, width*height*4)
	if len(pixels) == 0 {
		return pixels
	}
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels
}
