// Package renderer dispatches a frame: shadow updates, one layered depth
// pass per shadow, then the lit pass over every registered model.
package renderer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-batch/internal/engine/batch"
	"github.com/Faultbox/midgard-batch/internal/engine/camera"
	"github.com/Faultbox/midgard-batch/internal/engine/debug"
	"github.com/Faultbox/midgard-batch/internal/engine/gpu"
	"github.com/Faultbox/midgard-batch/internal/engine/lighting"
	"github.com/Faultbox/midgard-batch/internal/engine/shader"
	"github.com/Faultbox/midgard-batch/internal/engine/shadow"
	"github.com/Faultbox/midgard-batch/internal/logger"
)

// Config holds renderer configuration.
type Config struct {
	Width      int
	Height     int
	ClearColor mgl32.Vec3
}

// DefaultClearColor is a dark blue-gray background.
var DefaultClearColor = mgl32.Vec3{0.1, 0.1, 0.15}

// Resources are the programs every frame draws with. Create them once
// after the GL context exists and close them at shutdown, after the
// registry that uses them.
type Resources struct {
	Programs batch.Programs
	Lines    *gpu.Program
}

// NewResources compiles the batch and debug line programs.
func NewResources(dev gpu.Device) (*Resources, error) {
	progs, err := shader.Compile(dev)
	if err != nil {
		return nil, err
	}
	lines, err := shader.CompileLines(dev)
	if err != nil {
		shader.Close(progs)
		return nil, err
	}
	logger.Debug("render resources created",
		zap.Uint32("lit", progs.Lit.ID()),
		zap.Uint32("depth", progs.Depth.ID()),
		zap.Uint32("depthCube", progs.DepthCube.ID()))
	return &Resources{Programs: progs, Lines: lines}, nil
}

// Close deletes the programs.
func (r *Resources) Close() {
	if r == nil {
		return
	}
	shader.Close(r.Programs)
	r.Lines.Close()
}

// Frame is everything drawn in one frame.
type Frame struct {
	View    camera.View
	Lights  []lighting.Light
	Shadows []lighting.Shadow
	Mode    batch.RenderMode
	Targets []batch.RenderTargetParameter

	// Debug lines are drawn after the lit pass.
	Debug []debug.LineVertex
	// ShowCascades adds the volumes of every directional shadow to Debug.
	ShowCascades bool
}

// FrameStats summarizes one dispatched frame.
type FrameStats struct {
	Frame       uint64
	DepthPasses int
	Shadow      shadow.Stats
	DebugLines  int
}

// Renderer issues frames on a device through a batch registry.
type Renderer struct {
	dev    gpu.Device
	reg    *batch.Registry
	config Config
	lines  *debug.Lines
	frames uint64
	log    *zap.Logger
}

// New creates a renderer drawing reg. The registry must be prepared
// before the first frame.
func New(dev gpu.Device, reg *batch.Registry, res *Resources, cfg Config) *Renderer {
	if cfg.ClearColor == (mgl32.Vec3{}) {
		cfg.ClearColor = DefaultClearColor
	}
	return &Renderer{
		dev:    dev,
		reg:    reg,
		config: cfg,
		lines:  debug.NewLines(dev, res.Lines),
		log:    logger.Named("renderer"),
	}
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	r.log.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// Size returns the current framebuffer size.
func (r *Renderer) Size() (int, int) { return r.config.Width, r.config.Height }

// Render updates every shadow from the frame's view, fills each shadow map
// and then draws the lit pass. All depth passes finish before the lit pass
// samples them.
func (r *Renderer) Render(f Frame) (FrameStats, error) {
	if !r.reg.Prepared() {
		return FrameStats{}, batch.ErrNotPrepared
	}
	r.frames++
	stats := FrameStats{Frame: r.frames}

	for _, s := range f.Shadows {
		st := s.Update(f.View)
		stats.Shadow.Reused += st.Reused
		stats.Shadow.Refit += st.Refit
	}
	for _, s := range f.Shadows {
		r.reg.DrawDepthForShadow(s, f.Targets)
		stats.DepthPasses++
	}

	r.dev.BeginFrame(r.config.Width, r.config.Height, r.config.ClearColor)
	r.reg.Draw(f.View, f.Lights, f.Shadows, f.Mode, f.Targets)

	lines := f.Debug
	if f.ShowCascades {
		for _, s := range f.Shadows {
			if s.Kind == lighting.ShadowDirectional {
				lines = append(lines, debug.CascadeLines(s.Directional.OBBs())...)
			}
		}
	}
	if len(lines) > 0 {
		near, far := f.View.NearFar()
		vp := f.View.ProjectionRange(near, far).Mul4(f.View.ViewMatrix())
		if err := r.lines.Draw(vp, lines); err != nil {
			return stats, fmt.Errorf("debug lines: %w", err)
		}
		stats.DebugLines = len(lines) / 2
	}

	r.log.Debug("frame",
		zap.Uint64("frame", stats.Frame),
		zap.Int("depthPasses", stats.DepthPasses),
		zap.Int("cascadesReused", stats.Shadow.Reused),
		zap.Int("cascadesRefit", stats.Shadow.Refit))
	return stats, nil
}

// Close releases the debug line buffers.
func (r *Renderer) Close() {
	r.log.Info("closing renderer", zap.Uint64("frames", r.frames))
	r.lines.Close()
}
