package viewer

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-batch/internal/assets"
	"github.com/Faultbox/midgard-batch/internal/config"
	"github.com/Faultbox/midgard-batch/internal/engine/batch"
	"github.com/Faultbox/midgard-batch/internal/engine/geom"
	"github.com/Faultbox/midgard-batch/internal/engine/lighting"
	"github.com/Faultbox/midgard-batch/internal/engine/model"
	"github.com/Faultbox/midgard-batch/internal/engine/picking"
	"github.com/Faultbox/midgard-batch/internal/engine/shadow"
	"github.com/Faultbox/midgard-batch/internal/engine/texture"
	"github.com/Faultbox/midgard-batch/internal/logger"
)

// Placed is one loaded model and the per-frame state of its instances.
type Placed struct {
	Model  *model.Model
	Items  []batch.Item
	speeds []float64
}

// Scene holds every configured model, submitted to one registry.
type Scene struct {
	Models []*Placed
	// Bounds is the world box of every instance.
	Bounds geom.AABB
}

// InstanceMatrix places an instance: scale, then rotation about Y, then translation.
// A zero scale counts as one.
func InstanceMatrix(inst config.InstanceConfig) mgl32.Mat4 {
	scale := inst.Scale
	if scale == 0 {
		scale = 1
	}
	return mgl32.Translate3D(inst.Position[0], inst.Position[1], inst.Position[2]).
		Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(inst.RotationY))).
		Mul4(mgl32.Scale3D(scale, scale, scale))
}

// LoadScene imports each configured model through mgr and submits it to reg
// with one item per configured instance. The registry is left unprepared.
func LoadScene(mgr *assets.Manager, reg *batch.Registry, textures *texture.Registry, cfg config.SceneConfig, maxVertices int) (*Scene, error) {
	s := &Scene{Bounds: geom.EmptyAABB()}
	for _, mc := range cfg.Models {
		data, err := mgr.Load(mc.Path)
		if err != nil {
			s.Close()
			return nil, err
		}
		p, err := place(data, reg, textures, mc, maxVertices)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%s: %w", mc.Path, err)
		}
		s.Models = append(s.Models, p)
		for _, item := range p.Items {
			s.Bounds = s.Bounds.Union(p.Model.Bounds().Transform(item.ModelMatrix))
		}
		logger.Info("model loaded",
			zap.String("path", mc.Path),
			zap.Int("instances", len(p.Items)),
			zap.Int("meshes", p.Model.NumMeshes()),
			zap.Int("bones", p.Model.NumBones()),
			zap.Int("animations", p.Model.NumAnimations()))
	}
	return s, nil
}

func place(data *assets.Scene, reg *batch.Registry, textures *texture.Registry, mc config.ModelConfig, maxVertices int) (*Placed, error) {
	instances := mc.Instances
	if len(instances) == 0 {
		instances = []config.InstanceConfig{{Scale: 1, Speed: 1}}
	}
	m, err := model.Load(data, reg, textures, model.Options{
		Items:              len(instances),
		MaxVerticesPerMesh: maxVertices,
	})
	if err != nil {
		return nil, err
	}
	p := &Placed{
		Model:  m,
		Items:  make([]batch.Item, len(instances)),
		speeds: make([]float64, len(instances)),
	}
	for i, inst := range instances {
		p.Items[i] = batch.Item{
			AnimationID: inst.Animation,
			ModelMatrix: InstanceMatrix(inst),
		}
		p.speeds[i] = float64(inst.Speed)
	}
	return p, nil
}

// Advance moves every animated item forward by dt seconds, wrapping at the
// end of its animation.
func (s *Scene) Advance(dt float64) {
	for _, p := range s.Models {
		for i := range p.Items {
			item := &p.Items[i]
			d := p.Model.AnimationDurationInSeconds(item.AnimationID)
			if d <= 0 {
				continue
			}
			item.Time = math.Mod(item.Time+dt*p.speeds[i], d)
			if item.Time < 0 {
				item.Time += d
			}
		}
	}
}

// Targets returns the render target of every model, in load order.
func (s *Scene) Targets() []batch.RenderTargetParameter {
	targets := make([]batch.RenderTargetParameter, len(s.Models))
	for i, p := range s.Models {
		targets[i] = batch.RenderTargetParameter{Model: p.Model, Items: p.Items}
	}
	return targets
}

// Selection names one instance of one loaded model.
type Selection struct {
	Model, Item int
}

// ItemBounds returns the world box of one instance.
func (s *Scene) ItemBounds(sel Selection) geom.AABB {
	p := s.Models[sel.Model]
	return p.Model.Bounds().Transform(p.Items[sel.Item].ModelMatrix)
}

// Pick returns the instance whose world box the ray enters first.
func (s *Scene) Pick(r picking.Ray) (Selection, bool) {
	var boxes []geom.AABB
	var refs []Selection
	for mi, p := range s.Models {
		for ii := range p.Items {
			sel := Selection{Model: mi, Item: ii}
			boxes = append(boxes, s.ItemBounds(sel))
			refs = append(refs, sel)
		}
	}
	i, _ := r.Nearest(boxes)
	if i < 0 {
		return Selection{}, false
	}
	return refs[i], true
}

// Close releases the textures every model holds.
func (s *Scene) Close() {
	for _, p := range s.Models {
		p.Model.Close()
	}
	s.Models = nil
}

// ShadowOptions converts the shadow section of the config.
func ShadowOptions(cfg config.ShadowConfig) shadow.Options {
	opts := shadow.Options{
		Resolution: cfg.Resolution,
		MarginXY:   cfg.MarginXY,
		MarginZ:    cfg.MarginZ,
	}
	for _, c := range cfg.Cascades {
		opts.Splits = append(opts.Splits, shadow.Split{Near: c.Near, Far: c.Far})
	}
	if cfg.Global {
		opts.Global = &geom.AABB{
			Min: mgl32.Vec3(cfg.GlobalMin),
			Max: mgl32.Vec3(cfg.GlobalMax),
		}
	}
	return opts
}

// Lights returns the ambient term and the sun, which casts shadow 0.
func Lights(cfg config.SceneConfig) []lighting.Light {
	return []lighting.Light{
		lighting.Ambient(mgl32.Vec3(cfg.AmbientColor)),
		lighting.Directional(lighting.SunLight(cfg.SunLongitude, cfg.SunLatitude), mgl32.Vec3(cfg.SunColor), 0),
	}
}
