package shader

import (
	"fmt"

	"github.com/Faultbox/midgard-batch/internal/engine/batch"
	"github.com/Faultbox/midgard-batch/internal/engine/gpu"
)

// Sources returns the stages of the lit, depth and depth cube programs.
func Sources() (lit, depth, depthCube map[gpu.ShaderStage]string) {
	lit = map[gpu.ShaderStage]string{
		gpu.StageVertex:   LitVertexShader,
		gpu.StageFragment: LitFragmentShader,
	}
	depth = map[gpu.ShaderStage]string{
		gpu.StageVertex:   DepthVertexShader,
		gpu.StageGeometry: DepthGeometryShader,
		gpu.StageFragment: DepthFragmentShader,
	}
	depthCube = map[gpu.ShaderStage]string{
		gpu.StageVertex:   DepthVertexShader,
		gpu.StageGeometry: DepthCubeGeometryShader,
		gpu.StageFragment: DepthCubeFragmentShader,
	}
	return lit, depth, depthCube
}

// Compile builds the programs the batch registry draws with. On failure
// the programs compiled so far are deleted.
func Compile(dev gpu.Device) (batch.Programs, error) {
	lit, depth, depthCube := Sources()

	var progs batch.Programs
	for _, p := range []struct {
		name    string
		sources map[gpu.ShaderStage]string
		dst     **gpu.Program
	}{
		{"lit", lit, &progs.Lit},
		{"depth", depth, &progs.Depth},
		{"depth cube", depthCube, &progs.DepthCube},
	} {
		prog, err := gpu.NewProgram(dev, p.sources)
		if err != nil {
			Close(progs)
			return batch.Programs{}, fmt.Errorf("%s program: %w", p.name, err)
		}
		*p.dst = prog
	}
	return progs, nil
}

// Close deletes every program in progs.
func Close(progs batch.Programs) {
	progs.Lit.Close()
	progs.Depth.Close()
	progs.DepthCube.Close()
}

// CompileLines builds the debug line program.
func CompileLines(dev gpu.Device) (*gpu.Program, error) {
	p, err := gpu.NewProgram(dev, map[gpu.ShaderStage]string{
		gpu.StageVertex:   LineVertexShader,
		gpu.StageFragment: LineFragmentShader,
	})
	if err != nil {
		return nil, fmt.Errorf("line program: %w", err)
	}
	return p, nil
}
