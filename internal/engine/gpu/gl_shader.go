package gpu

import (
	"fmt"

	"github.com/go-gl/gl/v4.6-core/gl"
)

var glStages = map[ShaderStage]uint32{
	StageVertex:   gl.VERTEX_SHADER,
	StageGeometry: gl.GEOMETRY_SHADER,
	StageFragment: gl.FRAGMENT_SHADER,
	StageCompute:  gl.COMPUTE_SHADER,
}

// CompileProgram compiles every stage and links them into a program.
func (d *GLDevice) CompileProgram(sources map[ShaderStage]string) (uint32, error) {
	if len(sources) == 0 {
		return 0, fmt.Errorf("program without shader stages")
	}

	program := gl.CreateProgram()
	var shaders []uint32
	defer func() {
		for _, s := range shaders {
			gl.DeleteShader(s)
		}
	}()

	for _, stage := range []ShaderStage{StageVertex, StageGeometry, StageFragment, StageCompute} {
		src, ok := sources[stage]
		if !ok {
			continue
		}
		s, err := compileShader(src, glStages[stage], stage.String())
		if err != nil {
			gl.DeleteProgram(program)
			return 0, err
		}
		shaders = append(shaders, s)
		gl.AttachShader(program, s)
	}
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetProgramInfoLog(program, logLen, nil, &log[0])
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("link: %s", string(log))
	}

	return program, nil
}

// compileShader compiles a single shader of the given type.
func compileShader(source string, shaderType uint32, name string) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetShaderInfoLog(shader, logLen, nil, &log[0])
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("%s shader: %s", name, string(log))
	}

	return shader, nil
}
