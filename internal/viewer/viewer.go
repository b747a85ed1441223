// Package viewer runs the interactive batch viewer: it loads the configured
// models into one registry and renders them with a free-look camera.
package viewer

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-batch/internal/assets"
	"github.com/Faultbox/midgard-batch/internal/config"
	"github.com/Faultbox/midgard-batch/internal/engine/batch"
	"github.com/Faultbox/midgard-batch/internal/engine/camera"
	"github.com/Faultbox/midgard-batch/internal/engine/debug"
	"github.com/Faultbox/midgard-batch/internal/engine/gpu"
	"github.com/Faultbox/midgard-batch/internal/engine/input"
	"github.com/Faultbox/midgard-batch/internal/engine/lighting"
	"github.com/Faultbox/midgard-batch/internal/engine/picking"
	"github.com/Faultbox/midgard-batch/internal/engine/renderer"
	"github.com/Faultbox/midgard-batch/internal/engine/shadow"
	"github.com/Faultbox/midgard-batch/internal/engine/texture"
	"github.com/Faultbox/midgard-batch/internal/engine/window"
	"github.com/Faultbox/midgard-batch/internal/logger"
)

const gridCells = 20

var selectionColor = mgl32.Vec3{1, 1, 0}

// Viewer owns the window, the GPU resources and the loaded scene.
type Viewer struct {
	cfg *config.Config

	window   *window.Window
	input    *input.Input
	dev      gpu.Device
	textures *texture.Registry
	res      *renderer.Resources
	reg      *batch.Registry
	assets   *assets.Manager
	scene    *Scene
	sun      *shadow.Directional
	renderer *renderer.Renderer
	shots    *debug.Screenshots

	camera  *camera.Camera
	lights  []lighting.Light
	shadows []lighting.Shadow

	mode         batch.RenderMode
	showCascades bool
	showGrid     bool
	captured     bool
	grid         []debug.LineVertex
	selected     *Selection
	running      bool
}

// New opens the window and loads the configured scene.
func New(cfg *config.Config) (*Viewer, error) {
	v := &Viewer{cfg: cfg, showGrid: true}
	if err := v.init(); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

func (v *Viewer) init() error {
	cfg := v.cfg
	var err error

	// Window first, since it creates the OpenGL context
	v.window, err = window.New(window.Config{
		Title:      "Midgard Batch",
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
		Debug:      cfg.Logging.Level == "debug",
	})
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}

	v.dev, err = gpu.NewGLDevice()
	if err != nil {
		return err
	}
	v.textures = texture.NewRegistry(v.dev)

	v.res, err = renderer.NewResources(v.dev)
	if err != nil {
		return err
	}
	v.reg = batch.NewRegistry(v.dev, v.textures, batch.Options{Programs: v.res.Programs})

	v.assets = assets.NewManager()
	v.scene, err = LoadScene(v.assets, v.reg, v.textures, cfg.Scene, cfg.Batch.MaxVerticesPerMesh)
	if err != nil {
		return err
	}
	if err := v.reg.PrepareForDraw(); err != nil {
		return err
	}

	v.lights = Lights(cfg.Scene)
	v.sun, err = shadow.NewDirectional(v.dev, v.lights[1].Direction, ShadowOptions(cfg.Shadow))
	if err != nil {
		return err
	}
	v.shadows = []lighting.Shadow{lighting.CascadedShadow(v.sun)}
	// A global cascade without configured bounds covers the whole scene.
	if cfg.Shadow.Global && cfg.Shadow.GlobalMin == cfg.Shadow.GlobalMax && v.scene.Bounds.Valid() {
		if err := v.sun.SetGlobalBounds(v.scene.Bounds); err != nil {
			return err
		}
	}

	width, height := v.window.DrawableSize()
	v.renderer = renderer.New(v.dev, v.reg, v.res, renderer.Config{Width: width, Height: height})
	v.shots = debug.NewScreenshots(v.dev, "screenshots", "batch")

	cc := cfg.Camera
	v.camera = camera.New(mgl32.Vec3(cc.Position), cc.Yaw, cc.Pitch, camera.Lens{
		FOV:    cc.FOV,
		Aspect: float32(width) / float32(height),
		Near:   cc.Near,
		Far:    cc.Far,
	})
	v.grid = debug.GridLines(gridCells, 1, 0)
	v.input = input.New()

	stats := v.reg.Stats()
	logger.Info("scene ready",
		zap.Int("models", stats.Models),
		zap.Int("commands", stats.Commands),
		zap.Int("instances", stats.Instances),
		zap.Int("triangles", stats.Triangles),
		zap.Int("textures", stats.Textures))
	return nil
}

// Run drives the frame loop until the window closes or Escape is pressed.
func (v *Viewer) Run() error {
	v.running = true

	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()
	var minFrame time.Duration
	if v.cfg.Graphics.FPSLimit > 0 {
		minFrame = time.Second / time.Duration(v.cfg.Graphics.FPSLimit)
	}

	logger.Info("starting render loop")

	for v.running {
		now := time.Now()
		dt := now.Sub(lastTime).Seconds()
		lastTime = now

		// 1. Process input
		if v.input.Update() {
			break
		}
		v.handleInput(v.input.State(), float32(dt))

		// 2. Update animation state
		v.scene.Advance(dt)

		// 3. Render
		stats, err := v.renderer.Render(v.frame())
		if err != nil {
			return fmt.Errorf("render error: %w", err)
		}
		if v.input.State().Pressed(sdl.SCANCODE_F12) {
			w, h := v.renderer.Size()
			if path, err := v.shots.Capture(w, h); err != nil {
				logger.Warn("screenshot failed", zap.Error(err))
			} else {
				logger.Info("screenshot saved", zap.String("path", path))
			}
		}

		// 4. Present
		v.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			logger.Debug("fps",
				zap.Int("count", frameCount),
				zap.Float64("dtMs", dt*1000),
				zap.Int("cascadesRefit", stats.Shadow.Refit),
				zap.Int("cascadesReused", stats.Shadow.Reused))
			v.window.SetTitle(fmt.Sprintf("Midgard Batch - %d fps", frameCount))
			frameCount = 0
			fpsTimer = time.Now()
		}

		if minFrame > 0 {
			if elapsed := time.Since(now); elapsed < minFrame {
				time.Sleep(minFrame - elapsed)
			}
		}
	}
	return nil
}

func (v *Viewer) handleInput(s *input.State, dt float32) {
	if s.Pressed(sdl.SCANCODE_ESCAPE) {
		v.running = false
	}
	if width, height, ok := s.Resized(); ok && height > 0 {
		width, height = v.window.DrawableSize()
		v.renderer.Resize(width, height)
		v.camera.Aspect = float32(width) / float32(height)
	}
	if s.Pressed(sdl.SCANCODE_TAB) {
		v.captured = !v.captured
		v.window.SetMouseCaptured(v.captured)
	}
	if s.Pressed(sdl.SCANCODE_F1) {
		v.showCascades = !v.showCascades
	}
	if s.Pressed(sdl.SCANCODE_F2) {
		v.mode = NextMode(v.mode)
		logger.Info("render mode", zap.Int32("mode", int32(v.mode)))
	}
	if s.Pressed(sdl.SCANCODE_F3) {
		v.showGrid = !v.showGrid
	}

	if v.captured || s.Button(sdl.BUTTON_RIGHT) {
		dx, dy := s.MouseDelta()
		sens := v.cfg.Camera.Sensitivity
		v.camera.Rotate(float32(dx)*sens, -float32(dy)*sens)
	}
	if s.Clicked(sdl.BUTTON_LEFT) {
		v.pick(s)
	}

	forward, right, up := s.Movement()
	speed := v.cfg.Camera.MoveSpeed * dt
	if s.Held(sdl.SCANCODE_LSHIFT) {
		speed *= 4
	}
	v.camera.Move(forward*speed, right*speed, up*speed)
}

// pick selects the instance under the cursor, or under the screen center
// while the mouse is captured.
func (v *Viewer) pick(s *input.State) {
	width, height := v.renderer.Size()
	winW, winH := v.window.GetSize()
	x, y := float32(width)/2, float32(height)/2
	if !v.captured && winW > 0 && winH > 0 {
		mx, my := s.MousePosition()
		x = float32(mx) * float32(width) / float32(winW)
		y = float32(my) * float32(height) / float32(winH)
	}

	viewProj := v.camera.ProjectionMatrix().Mul4(v.camera.ViewMatrix())
	ray := picking.ScreenToRay(x, y, float32(width), float32(height), viewProj.Inv())
	sel, ok := v.scene.Pick(ray)
	if !ok {
		v.selected = nil
		return
	}
	v.selected = &sel
	p := v.scene.Models[sel.Model]
	logger.Info("instance selected",
		zap.String("model", p.Model.Name),
		zap.Int("item", sel.Item),
		zap.Int("animation", p.Items[sel.Item].AnimationID))
}

// NextMode cycles material, forced PBR and default shading.
func NextMode(m batch.RenderMode) batch.RenderMode {
	switch m {
	case batch.ModeMaterial:
		return batch.ModeForcePBR
	case batch.ModeForcePBR:
		return batch.ModeDefaultShading
	default:
		return batch.ModeMaterial
	}
}

func (v *Viewer) frame() renderer.Frame {
	f := renderer.Frame{
		View:         v.camera,
		Lights:       v.lights,
		Shadows:      v.shadows,
		Mode:         v.mode,
		Targets:      v.scene.Targets(),
		ShowCascades: v.showCascades,
	}
	if v.showGrid {
		f.Debug = v.grid
	}
	if v.selected != nil {
		box := debug.AABBLines(v.scene.ItemBounds(*v.selected), debug.DefaultPadding, selectionColor)
		f.Debug = append(append([]debug.LineVertex(nil), f.Debug...), box...)
	}
	return f
}

// Close releases everything in reverse creation order. It is safe on a
// partially initialized viewer.
func (v *Viewer) Close() {
	if v.renderer != nil {
		v.renderer.Close()
	}
	for _, s := range v.shadows {
		s.Close()
	}
	if v.scene != nil {
		v.scene.Close()
	}
	if v.assets != nil {
		v.assets.Close()
	}
	if v.reg != nil {
		v.reg.Close()
	}
	v.res.Close()
	if v.textures != nil {
		v.textures.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}
