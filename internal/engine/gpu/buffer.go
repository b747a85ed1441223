package gpu

import "fmt"

// minBufferSize keeps zero-length arrays bindable; GL rejects empty storage.
const minBufferSize = 16

// Buffer owns one device buffer.
type Buffer struct {
	dev  Device
	id   uint32
	size int
}

// NewBuffer creates a buffer of at least size bytes holding data at offset 0.
func NewBuffer(dev Device, data []byte, size int) (*Buffer, error) {
	size = max(size, len(data), minBufferSize)
	id, err := dev.CreateBuffer(data, size)
	if err != nil {
		return nil, fmt.Errorf("creating buffer: %w", err)
	}
	return &Buffer{dev: dev, id: id, size: size}, nil
}

// NewBufferFrom creates a buffer sized to hold all of values.
func NewBufferFrom[T any](dev Device, values []T) (*Buffer, error) {
	return NewBuffer(dev, Bytes(values), len(values)*SizeOf[T]())
}

// ID returns the device id, or 0 once closed.
func (b *Buffer) ID() uint32 { return b.id }

// Size returns the allocated size in bytes.
func (b *Buffer) Size() int { return b.size }

// Update writes data at offset.
func (b *Buffer) Update(offset int, data []byte) error {
	if b.id == 0 {
		return fmt.Errorf("update of closed buffer")
	}
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("[%d, %d) in %d bytes: %w", offset, offset+len(data), b.size, ErrOutOfRange)
	}
	b.dev.UpdateBuffer(b.id, offset, data)
	return nil
}

// BindStorage binds the buffer to a shader storage block index.
func (b *Buffer) BindStorage(index uint32) {
	b.dev.BindStorage(index, b.id)
}

// Close releases the buffer. It is safe to call more than once.
func (b *Buffer) Close() {
	if b == nil || b.id == 0 {
		return
	}
	b.dev.DeleteBuffer(b.id)
	b.id = 0
}

// VertexArray owns one vertex array object.
type VertexArray struct {
	dev Device
	id  uint32
}

// NewVertexArray builds a vertex array from layout.
func NewVertexArray(dev Device, layout VertexLayout) (*VertexArray, error) {
	id, err := dev.CreateVertexArray(layout)
	if err != nil {
		return nil, fmt.Errorf("creating vertex array: %w", err)
	}
	return &VertexArray{dev: dev, id: id}, nil
}

func (v *VertexArray) ID() uint32 { return v.id }

// Close releases the vertex array. It is safe to call more than once.
func (v *VertexArray) Close() {
	if v == nil || v.id == 0 {
		return
	}
	v.dev.DeleteVertexArray(v.id)
	v.id = 0
}
