package shadow

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-batch/internal/engine/camera"
	"github.com/Faultbox/midgard-batch/internal/engine/geom"
	"github.com/Faultbox/midgard-batch/internal/engine/gpu"
	"github.com/Faultbox/midgard-batch/internal/logger"
)

// ErrInvalidOptions is returned for options that cannot produce a usable shadow.
var ErrInvalidOptions = errors.New("invalid shadow options")

const (
	// directionEpsilon is how far the light may turn before every cached fit is dropped.
	directionEpsilon = 1e-5
	// minSplitSpan keeps a cascade's far plane strictly behind its near plane.
	minSplitSpan = 1e-3
	// MaxCascades is the number of layers the depth programs can fill in one pass.
	MaxCascades = 8
)

// Directional is a cascaded shadow map for a directional light. Each moving
// cascade covers a slice of the camera frustum and keeps its fit until the
// camera leaves the cached light-space box. An optional global cascade covers
// a fixed world box and only changes with the box or the light direction.
type Directional struct {
	*depthMap

	opts      Options
	dir       mgl32.Vec3
	cascades  []Cascade
	hasGlobal bool

	globalBounds geom.AABB
	global       Cascade
	globalDirty  bool

	stats Stats
	log   *zap.Logger
}

// NewDirectional creates the shadow and its layered depth map, one layer per cascade.
func NewDirectional(dev gpu.Device, dir mgl32.Vec3, opts Options) (*Directional, error) {
	if opts.Resolution <= 0 {
		opts.Resolution = DefaultResolution
	}
	if len(opts.Splits) == 0 {
		return nil, fmt.Errorf("%w: no cascades", ErrInvalidOptions)
	}
	if opts.MarginXY < 1 || opts.MarginZ < 1 {
		return nil, fmt.Errorf("%w: margins must be at least 1, got %v and %v", ErrInvalidOptions, opts.MarginXY, opts.MarginZ)
	}
	if opts.Global != nil && !opts.Global.Valid() {
		return nil, fmt.Errorf("%w: empty global bounds", ErrInvalidOptions)
	}
	opts.Splits = append([]Split(nil), opts.Splits...)

	layers := len(opts.Splits)
	if opts.Global != nil {
		layers++
	}
	if layers > MaxCascades {
		return nil, fmt.Errorf("%w: %d cascades, at most %d", ErrInvalidOptions, layers, MaxCascades)
	}
	dm, err := newDepthMap(dev, gpu.DepthArray, opts.Resolution, layers)
	if err != nil {
		return nil, fmt.Errorf("creating directional shadow: %w", err)
	}

	s := &Directional{
		depthMap: dm,
		opts:     opts,
		cascades: make([]Cascade, len(opts.Splits)),
		log:      logger.Named("shadow"),
	}
	if opts.Global != nil {
		s.hasGlobal = true
		s.globalBounds = *opts.Global
	}
	s.invalidate()
	s.SetDirection(dir)

	s.log.Info("directional shadow created",
		zap.Int("resolution", opts.Resolution),
		zap.Int("cascades", len(opts.Splits)),
		zap.Bool("global", s.hasGlobal))
	return s, nil
}

func (s *Directional) invalidate() {
	for i := range s.cascades {
		s.cascades[i].Bounds = geom.EmptyAABB()
	}
	s.globalDirty = true
}

// Direction returns the normalized light direction.
func (s *Directional) Direction() mgl32.Vec3 { return s.dir }

// SetDirection changes the light direction. Moving it by more than a tiny
// epsilon drops every cached fit. A zero vector is ignored.
func (s *Directional) SetDirection(dir mgl32.Vec3) {
	if dir.Len() == 0 {
		s.log.Warn("ignoring zero light direction")
		return
	}
	dir = dir.Normalize()
	if dir.Sub(s.dir).Len() > directionEpsilon {
		s.invalidate()
	}
	s.dir = dir
}

// HasGlobal reports whether the shadow carries a global cascade.
func (s *Directional) HasGlobal() bool { return s.hasGlobal }

// SetGlobalBounds replaces the world box covered by the global cascade.
func (s *Directional) SetGlobalBounds(b geom.AABB) error {
	if !s.hasGlobal {
		return ErrNoGlobalCascade
	}
	if !b.Valid() {
		return fmt.Errorf("%w: empty global bounds", ErrInvalidOptions)
	}
	if b != s.globalBounds {
		s.globalBounds = b
		s.globalDirty = true
	}
	return nil
}

// splitRange returns the camera-space depth range of cascade i.
func (s *Directional) splitRange(i int, near, far float32) (float32, float32) {
	span := far - near
	zn := near + span*s.opts.Splits[i].Near
	zf := near + span*s.opts.Splits[i].Far
	if zf-zn < minSplitSpan {
		zf = zn + minSplitSpan
	}
	return zn, zf
}

// Update refits every cascade the camera has escaped and reuses the rest.
func (s *Directional) Update(view camera.View) Stats {
	near, far := view.NearFar()
	var stats Stats

	for i := range s.cascades {
		zn, zf := s.splitRange(i, near, far)
		corners := camera.FrustumCorners(view, zn, zf)
		if s.cascades[i].covers(corners[:]) {
			// The fit is kept but the split follows the camera range.
			s.cascades[i].Near, s.cascades[i].Far = zn, zf
			stats.Reused++
			continue
		}
		c := fit(s.dir, corners[:], s.opts.MarginXY, s.opts.MarginZ)
		c.Near, c.Far = zn, zf
		s.cascades[i] = c
		stats.Refit++
		s.log.Debug("cascade refit", zap.Int("cascade", i), zap.Float32("near", zn), zap.Float32("far", zf))
	}

	if s.hasGlobal {
		if s.globalDirty {
			corners := s.globalBounds.Corners()
			s.global = fit(s.dir, corners[:], s.opts.MarginXY, s.opts.MarginZ)
			s.globalDirty = false
			stats.Refit++
			s.log.Debug("global cascade refit")
		} else {
			stats.Reused++
		}
	}

	s.stats = stats
	return stats
}

// Stats returns what the last Update did.
func (s *Directional) Stats() Stats { return s.stats }

// NumCascades returns the number of cascades in use, global included.
func (s *Directional) NumCascades() int {
	if s.hasGlobal {
		return len(s.cascades) + 1
	}
	return len(s.cascades)
}

// Cascade returns cascade i. The global cascade, if any, comes last.
func (s *Directional) Cascade(i int) Cascade {
	if i == len(s.cascades) && s.hasGlobal {
		return s.global
	}
	return s.cascades[i]
}

// ViewProjections returns one matrix per depth layer.
func (s *Directional) ViewProjections() []mgl32.Mat4 {
	out := make([]mgl32.Mat4, s.NumCascades())
	for i := range out {
		out[i] = s.Cascade(i).ViewProjection()
	}
	return out
}

// PlaneDistances returns near and far for each moving cascade, interleaved.
func (s *Directional) PlaneDistances() []float32 {
	out := make([]float32, 0, 2*len(s.cascades))
	for _, c := range s.cascades {
		out = append(out, c.Near, c.Far)
	}
	return out
}

// OBBs returns the world-space volume of every cascade for debug drawing.
func (s *Directional) OBBs() []geom.OBB {
	out := make([]geom.OBB, s.NumCascades())
	for i := range out {
		out[i] = s.Cascade(i).OBB()
	}
	return out
}

// DepthPass renders into every cascade layer at once. draw receives the
// layer matrices and is expected to issue a layered draw.
func (s *Directional) DepthPass(draw func(layers []mgl32.Mat4)) {
	s.pass(s.ViewProjections(), draw)
}
