package gpu

import (
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// Event is one state-changing call captured by a Recorder.
type Event struct {
	Op          string
	ID          uint32
	Count       int
	Framebuffer uint32
	Program     uint32
}

// TextureInfo describes a texture allocated on a Recorder.
type TextureInfo struct {
	Width, Height int
	Layers        int
	Depth         bool
	Kind          DepthKind
}

// Recorder is an in-memory Device. It keeps buffer contents, residency and
// uniform values so callers can run the engine headless and inspect the result.
type Recorder struct {
	next uint32

	Buffers      map[uint32][]byte
	Storage      map[uint32]uint32
	VertexArrays map[uint32]VertexLayout
	Textures     map[uint32]TextureInfo
	Framebuffers map[uint32]uint32
	Programs     map[uint32]map[ShaderStage]string

	// Uniforms holds the last value written per program and uniform name.
	Uniforms map[uint32]map[string]any

	// ResidencyChanges counts actual transitions, not calls.
	ResidencyChanges int

	Events []Event

	// FailFramebuffer makes the next CreateDepthFramebuffer call fail.
	FailFramebuffer bool

	// ClipDistance is the last state passed to SetClipDistance.
	ClipDistance bool
	// ClippedDraws counts indirect draws issued with clip distance on.
	ClippedDraws int

	resident    map[uint64]bool
	locations   map[int32]uniformRef
	program     uint32
	framebuffer uint32
}

type uniformRef struct {
	program uint32
	name    string
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		Buffers:      make(map[uint32][]byte),
		Storage:      make(map[uint32]uint32),
		VertexArrays: make(map[uint32]VertexLayout),
		Textures:     make(map[uint32]TextureInfo),
		Framebuffers: make(map[uint32]uint32),
		Programs:     make(map[uint32]map[ShaderStage]string),
		Uniforms:     make(map[uint32]map[string]any),
		resident:     make(map[uint64]bool),
		locations:    make(map[int32]uniformRef),
	}
}

func (r *Recorder) id() uint32 {
	r.next++
	return r.next
}

func (r *Recorder) record(e Event) {
	e.Framebuffer = r.framebuffer
	e.Program = r.program
	r.Events = append(r.Events, e)
}

func (r *Recorder) CreateBuffer(data []byte, size int) (uint32, error) {
	if size <= 0 || len(data) > size {
		return 0, fmt.Errorf("buffer size %d for %d bytes of data", size, len(data))
	}
	id := r.id()
	buf := make([]byte, size)
	copy(buf, data)
	r.Buffers[id] = buf
	r.record(Event{Op: "CreateBuffer", ID: id, Count: size})
	return id, nil
}

func (r *Recorder) UpdateBuffer(id uint32, offset int, data []byte) {
	buf, ok := r.Buffers[id]
	if !ok || offset < 0 || offset+len(data) > len(buf) {
		panic(fmt.Sprintf("recorder: update of buffer %d [%d, %d) out of range", id, offset, offset+len(data)))
	}
	copy(buf[offset:], data)
	r.record(Event{Op: "UpdateBuffer", ID: id, Count: len(data)})
}

func (r *Recorder) BindStorage(index uint32, id uint32) {
	r.Storage[index] = id
}

func (r *Recorder) DeleteBuffer(id uint32) {
	delete(r.Buffers, id)
	r.record(Event{Op: "DeleteBuffer", ID: id})
}

func (r *Recorder) CreateVertexArray(layout VertexLayout) (uint32, error) {
	id := r.id()
	r.VertexArrays[id] = layout
	return id, nil
}

func (r *Recorder) DeleteVertexArray(id uint32) {
	delete(r.VertexArrays, id)
}

func (r *Recorder) CreateTexture2D(width, height int, rgba []byte) (uint32, error) {
	if width <= 0 || height <= 0 || len(rgba) < width*height*4 {
		return 0, fmt.Errorf("texture %dx%d with %d bytes", width, height, len(rgba))
	}
	id := r.id()
	r.Textures[id] = TextureInfo{Width: width, Height: height, Layers: 1}
	return id, nil
}

func (r *Recorder) CreateDepthTexture(kind DepthKind, resolution, layers int) (uint32, error) {
	if resolution <= 0 {
		return 0, fmt.Errorf("depth texture resolution %d", resolution)
	}
	if kind == DepthCube {
		layers = 6
	} else if layers <= 0 {
		return 0, fmt.Errorf("depth array with %d layers", layers)
	}
	id := r.id()
	r.Textures[id] = TextureInfo{Width: resolution, Height: resolution, Layers: layers, Depth: true, Kind: kind}
	return id, nil
}

func (r *Recorder) DeleteTexture(id uint32) {
	delete(r.Textures, id)
	delete(r.resident, r.TextureHandle(id))
	r.record(Event{Op: "DeleteTexture", ID: id})
}

// TextureHandle derives a stable fake handle from the texture id.
func (r *Recorder) TextureHandle(texture uint32) uint64 {
	return 0x1_0000_0000 | uint64(texture)
}

func (r *Recorder) MakeHandleResident(handle uint64) {
	if r.resident[handle] {
		panic(fmt.Sprintf("recorder: handle 0x%x made resident twice", handle))
	}
	r.resident[handle] = true
	r.ResidencyChanges++
}

func (r *Recorder) MakeHandleNonResident(handle uint64) {
	if !r.resident[handle] {
		panic(fmt.Sprintf("recorder: handle 0x%x is not resident", handle))
	}
	delete(r.resident, handle)
	r.ResidencyChanges++
}

func (r *Recorder) HandleResident(handle uint64) bool {
	return r.resident[handle]
}

func (r *Recorder) CreateDepthFramebuffer(depth uint32) (uint32, error) {
	if r.FailFramebuffer {
		r.FailFramebuffer = false
		return 0, fmt.Errorf("depth %d: %w", depth, ErrIncompleteFramebuffer)
	}
	if _, ok := r.Textures[depth]; !ok {
		return 0, fmt.Errorf("unknown depth texture %d: %w", depth, ErrIncompleteFramebuffer)
	}
	id := r.id()
	r.Framebuffers[id] = depth
	return id, nil
}

func (r *Recorder) DeleteFramebuffer(id uint32) {
	delete(r.Framebuffers, id)
	r.record(Event{Op: "DeleteFramebuffer", ID: id})
}

func (r *Recorder) BeginDepthPass(framebuffer uint32, resolution int) {
	r.framebuffer = framebuffer
	r.record(Event{Op: "BeginDepthPass", ID: framebuffer, Count: resolution})
}

func (r *Recorder) EndDepthPass() {
	r.record(Event{Op: "EndDepthPass"})
	r.framebuffer = 0
}

func (r *Recorder) CompileProgram(sources map[ShaderStage]string) (uint32, error) {
	if len(sources) == 0 {
		return 0, fmt.Errorf("program without shader stages")
	}
	id := r.id()
	r.Programs[id] = sources
	r.Uniforms[id] = make(map[string]any)
	return id, nil
}

func (r *Recorder) DeleteProgram(id uint32) {
	delete(r.Programs, id)
	r.record(Event{Op: "DeleteProgram", ID: id})
}

func (r *Recorder) UseProgram(id uint32) {
	r.program = id
}

func (r *Recorder) UniformLocation(program uint32, name string) int32 {
	loc := int32(len(r.locations))
	r.locations[loc] = uniformRef{program: program, name: name}
	return loc
}

func (r *Recorder) setUniform(location int32, v any) {
	ref, ok := r.locations[location]
	if !ok {
		return
	}
	if ref.program != r.program {
		panic(fmt.Sprintf("recorder: uniform %q of program %d set while program %d is bound", ref.name, ref.program, r.program))
	}
	r.Uniforms[ref.program][ref.name] = v
}

func (r *Recorder) UniformMat4(location int32, values []mgl32.Mat4) {
	r.setUniform(location, slices.Clone(values))
}

func (r *Recorder) UniformVec3(location int32, values []mgl32.Vec3) {
	r.setUniform(location, slices.Clone(values))
}

func (r *Recorder) UniformFloat(location int32, values []float32) {
	r.setUniform(location, slices.Clone(values))
}

func (r *Recorder) UniformInt(location int32, value int32) {
	r.setUniform(location, value)
}

func (r *Recorder) UniformHandle(location int32, handle uint64) {
	r.setUniform(location, handle)
}

func (r *Recorder) MultiDrawIndirect(vertexArray, commands uint32, count int) {
	if _, ok := r.VertexArrays[vertexArray]; !ok {
		panic(fmt.Sprintf("recorder: draw with unknown vertex array %d", vertexArray))
	}
	if _, ok := r.Buffers[commands]; !ok {
		panic(fmt.Sprintf("recorder: draw with unknown command buffer %d", commands))
	}
	if r.ClipDistance {
		r.ClippedDraws++
	}
	r.record(Event{Op: "MultiDrawIndirect", ID: commands, Count: count})
}

func (r *Recorder) SetClipDistance(enabled bool) {
	r.ClipDistance = enabled
}

func (r *Recorder) DrawLines(vertexArray uint32, count int) {
	if _, ok := r.VertexArrays[vertexArray]; !ok {
		panic(fmt.Sprintf("recorder: line draw with unknown vertex array %d", vertexArray))
	}
	r.record(Event{Op: "DrawLines", ID: vertexArray, Count: count})
}

func (r *Recorder) BeginFrame(width, height int, clear mgl32.Vec3) {
	r.record(Event{Op: "BeginFrame", Count: width * height})
}

// ReadPixels returns a black frame of the requested size.
func (r *Recorder) ReadPixels(width, height int) []byte {
	return make([]byte, width*height*4)
}

// Draws returns every recorded indirect draw in issue order.
func (r *Recorder) Draws() []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Op == "MultiDrawIndirect" {
			out = append(out, e)
		}
	}
	return out
}

// StorageData returns the contents of the buffer bound at a storage index.
func (r *Recorder) StorageData(index uint32) []byte {
	return r.Buffers[r.Storage[index]]
}

// Live reports how many buffers, textures and framebuffers are still allocated.
func (r *Recorder) Live() (buffers, textures, framebuffers int) {
	return len(r.Buffers), len(r.Textures), len(r.Framebuffers)
}
