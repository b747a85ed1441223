package gpu

// AttribType is the shader-side type of a vertex attribute.
type AttribType int

const (
	AttribFloat AttribType = iota
	AttribInt
)

// VertexBinding attaches a buffer to a binding slot of a vertex array.
// Divisor 0 advances per vertex, 1 per instance.
type VertexBinding struct {
	Index   uint32
	Buffer  uint32
	Stride  int32
	Divisor uint32
}

// VertexAttrib describes one attribute location read from a binding.
type VertexAttrib struct {
	Location uint32
	Binding  uint32
	Size     int32
	Type     AttribType
	Offset   uint32
}

// VertexLayout is everything needed to build a vertex array.
type VertexLayout struct {
	Bindings []VertexBinding
	Attribs  []VertexAttrib
	Elements uint32
}
