package gpu

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Program owns a linked shader program and caches its uniform locations.
type Program struct {
	dev       Device
	id        uint32
	locations map[string]int32
}

// NewProgram compiles and links the given stages.
func NewProgram(dev Device, sources map[ShaderStage]string) (*Program, error) {
	id, err := dev.CompileProgram(sources)
	if err != nil {
		return nil, fmt.Errorf("compiling program: %w", err)
	}
	return &Program{dev: dev, id: id, locations: make(map[string]int32)}, nil
}

func (p *Program) ID() uint32 { return p.id }

// Use makes the program current.
func (p *Program) Use() {
	p.dev.UseProgram(p.id)
}

// Location returns the cached location of a uniform, -1 when inactive.
func (p *Program) Location(name string) int32 {
	if loc, ok := p.locations[name]; ok {
		return loc
	}
	loc := p.dev.UniformLocation(p.id, name)
	p.locations[name] = loc
	return loc
}

func (p *Program) SetMat4(name string, values ...mgl32.Mat4) {
	p.dev.UniformMat4(p.Location(name), values)
}

func (p *Program) SetVec3(name string, values ...mgl32.Vec3) {
	p.dev.UniformVec3(p.Location(name), values)
}

func (p *Program) SetFloat(name string, values ...float32) {
	p.dev.UniformFloat(p.Location(name), values)
}

func (p *Program) SetInt(name string, value int32) {
	p.dev.UniformInt(p.Location(name), value)
}

func (p *Program) SetHandle(name string, handle uint64) {
	p.dev.UniformHandle(p.Location(name), handle)
}

// Close deletes the program. It is safe to call more than once.
func (p *Program) Close() {
	if p == nil || p.id == 0 {
		return
	}
	p.dev.DeleteProgram(p.id)
	p.id = 0
}
