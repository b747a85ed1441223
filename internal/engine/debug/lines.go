package debug

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-batch/internal/engine/gpu"
)

// Lines draws batches of LineVertex with a line program. The vertex buffer
// grows to the largest batch drawn so far.
type Lines struct {
	dev     gpu.Device
	program *gpu.Program
	buf     *gpu.Buffer
	vao     *gpu.VertexArray
}

// NewLines uses program, which must take positions at location 0, colors
// at location 1 and a uViewProjection matrix.
func NewLines(dev gpu.Device, program *gpu.Program) *Lines {
	return &Lines{dev: dev, program: program}
}

func (l *Lines) reserve(size int) error {
	if l.buf != nil && l.buf.Size() >= size {
		return nil
	}
	l.release()

	buf, err := gpu.NewBuffer(l.dev, nil, size)
	if err != nil {
		return fmt.Errorf("line buffer: %w", err)
	}
	var v LineVertex
	vao, err := gpu.NewVertexArray(l.dev, gpu.VertexLayout{
		Bindings: []gpu.VertexBinding{{Index: 0, Buffer: buf.ID(), Stride: int32(unsafe.Sizeof(v))}},
		Attribs: []gpu.VertexAttrib{
			{Location: 0, Binding: 0, Size: 3, Offset: uint32(unsafe.Offsetof(v.Position))},
			{Location: 1, Binding: 0, Size: 3, Offset: uint32(unsafe.Offsetof(v.Color))},
		},
	})
	if err != nil {
		buf.Close()
		return fmt.Errorf("line vertex array: %w", err)
	}
	l.buf, l.vao = buf, vao
	return nil
}

// Draw uploads vertices and draws them as a line list.
func (l *Lines) Draw(viewProjection mgl32.Mat4, vertices []LineVertex) error {
	if len(vertices) == 0 {
		return nil
	}
	data := gpu.Bytes(vertices)
	if err := l.reserve(len(data)); err != nil {
		return err
	}
	if err := l.buf.Update(0, data); err != nil {
		return err
	}
	l.program.Use()
	l.program.SetMat4("uViewProjection", viewProjection)
	l.dev.DrawLines(l.vao.ID(), len(vertices))
	return nil
}

func (l *Lines) release() {
	if l.vao != nil {
		l.vao.Close()
		l.vao = nil
	}
	if l.buf != nil {
		l.buf.Close()
		l.buf = nil
	}
}

// Close releases the buffers. The program belongs to the caller.
func (l *Lines) Close() {
	l.release()
}
