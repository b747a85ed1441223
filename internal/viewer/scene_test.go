package viewer

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/midgard-batch/internal/assets"
	"github.com/Faultbox/midgard-batch/internal/config"
	"github.com/Faultbox/midgard-batch/internal/engine/batch"
	"github.com/Faultbox/midgard-batch/internal/engine/gpu"
	"github.com/Faultbox/midgard-batch/internal/engine/lighting"
	"github.com/Faultbox/midgard-batch/internal/engine/picking"
	"github.com/Faultbox/midgard-batch/internal/engine/texture"
)

func newRegistry(t *testing.T) (*batch.Registry, *texture.Registry) {
	t.Helper()
	dev := gpu.NewRecorder()
	textures := texture.NewRegistry(dev)
	var progs batch.Programs
	for _, p := range []**gpu.Program{&progs.Lit, &progs.Depth, &progs.DepthCube} {
		prog, err := gpu.NewProgram(dev, map[gpu.ShaderStage]string{gpu.StageVertex: "void main() {}"})
		if err != nil {
			t.Fatal(err)
		}
		*p = prog
	}
	reg := batch.NewRegistry(dev, textures, batch.Options{Programs: progs})
	t.Cleanup(reg.Close)
	return reg, textures
}

// writeTriangle saves a one-triangle binary glTF and returns its path.
func writeTriangle(t *testing.T) string {
	t.Helper()
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2})
	doc.Meshes = []*gltf.Mesh{{
		Name: "tri",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idx),
			Attributes: map[string]int{gltf.POSITION: pos},
		}},
	}}
	doc.Nodes = []*gltf.Node{{Name: "tri", Mesh: gltf.Index(0)}}
	doc.Scenes = []*gltf.Scene{{Nodes: []int{0}}}
	doc.Scene = gltf.Index(0)

	path := filepath.Join(t.TempDir(), "tri.glb")
	if err := gltf.SaveBinary(doc, path); err != nil {
		t.Fatal(err)
	}
	return path
}

// animatedScene is one triangle with a two second animation.
func animatedScene() *assets.Scene {
	return &assets.Scene{
		Name: "spin",
		Meshes: []assets.Mesh{{
			Name:      "tri",
			Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
			Indices:   []uint32{0, 1, 2},
			Material:  -1,
		}},
		Nodes: []assets.Node{{Name: "root", Parent: -1, Transform: mgl32.Ident4(), Meshes: []int{0}}},
		Animations: []assets.Animation{{
			Name:           "move",
			Duration:       2,
			TicksPerSecond: 1,
			Channels: []assets.Channel{{
				Node:         "root",
				Translations: []assets.VectorKey{{Time: 0, Value: mgl32.Vec3{}}, {Time: 2, Value: mgl32.Vec3{0, 1, 0}}},
			}},
		}},
	}
}

func TestInstanceMatrix(t *testing.T) {
	m := InstanceMatrix(config.InstanceConfig{Position: [3]float32{1, 2, 3}, RotationY: 90, Scale: 2})
	got := mgl32.TransformCoordinate(mgl32.Vec3{1, 0, 0}, m)
	if !got.ApproxEqualThreshold(mgl32.Vec3{1, 2, 1}, 1e-5) {
		t.Errorf("scaled, rotated, translated x axis landed at %v", got)
	}

	unit := InstanceMatrix(config.InstanceConfig{})
	if !unit.ApproxEqual(mgl32.Ident4()) {
		t.Errorf("zero scale should count as one, got %v", unit)
	}
}

func TestLoadScene(t *testing.T) {
	reg, textures := newRegistry(t)
	mgr := assets.NewManager()
	defer mgr.Close()
	path := writeTriangle(t)

	s, err := LoadScene(mgr, reg, textures, config.SceneConfig{
		Models: []config.ModelConfig{{
			Path: path,
			Instances: []config.InstanceConfig{
				{Scale: 1, Animation: -1},
				{Position: [3]float32{10, 0, 0}, Scale: 1, Animation: -1},
			},
		}},
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if len(s.Models) != 1 || len(s.Models[0].Items) != 2 {
		t.Fatalf("expected one model with two items, got %+v", s.Models)
	}
	if !s.Bounds.Min.ApproxEqual(mgl32.Vec3{0, 0, 0}) || !s.Bounds.Max.ApproxEqual(mgl32.Vec3{11, 1, 0}) {
		t.Errorf("scene bounds %v", s.Bounds)
	}
	span, ok := reg.Span(s.Models[0].Model)
	if !ok || span.Items != 2 {
		t.Errorf("model not submitted with two items: %+v %v", span, ok)
	}

	targets := s.Targets()
	if len(targets) != 1 || targets[0].Model != s.Models[0].Model || len(targets[0].Items) != 2 {
		t.Errorf("unexpected targets %+v", targets)
	}
	if err := reg.PrepareForDraw(); err != nil {
		t.Fatal(err)
	}

	ray := picking.Ray{Origin: mgl32.Vec3{10.2, 0.2, 5}, Direction: mgl32.Vec3{0, 0, -1}}
	sel, ok := s.Pick(ray)
	if !ok || sel != (Selection{Model: 0, Item: 1}) {
		t.Errorf("picked %+v %v, want the second instance", sel, ok)
	}
	if b := s.ItemBounds(sel); !b.Min.ApproxEqual(mgl32.Vec3{10, 0, 0}) {
		t.Errorf("selected bounds %v", b)
	}
	ray.Origin = mgl32.Vec3{5, 0.2, 5}
	if _, ok := s.Pick(ray); ok {
		t.Error("ray between instances should miss")
	}
}

func TestLoadSceneDefaultsToOneInstance(t *testing.T) {
	reg, textures := newRegistry(t)
	mgr := assets.NewManager()
	defer mgr.Close()

	s, err := LoadScene(mgr, reg, textures, config.SceneConfig{
		Models: []config.ModelConfig{{Path: writeTriangle(t)}},
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if len(s.Models[0].Items) != 1 {
		t.Errorf("expected one default item, got %d", len(s.Models[0].Items))
	}
}

func TestLoadSceneMissingFile(t *testing.T) {
	reg, textures := newRegistry(t)
	mgr := assets.NewManager()
	defer mgr.Close()

	_, err := LoadScene(mgr, reg, textures, config.SceneConfig{
		Models: []config.ModelConfig{{Path: filepath.Join(t.TempDir(), "missing.glb")}},
	}, 0)
	if err == nil {
		t.Fatal("expected error for a missing model")
	}
	if len(reg.Models()) != 0 {
		t.Error("nothing should be registered")
	}
}

func TestAdvanceWrapsAnimationTime(t *testing.T) {
	reg, textures := newRegistry(t)
	p, err := place(animatedScene(), reg, textures, config.ModelConfig{
		Instances: []config.InstanceConfig{
			{Animation: 0, Speed: 1},
			{Animation: 0, Speed: -1},
			{Animation: -1, Speed: 1},
		},
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	s := &Scene{Models: []*Placed{p}}
	defer s.Close()

	s.Advance(1.5)
	s.Advance(1)
	items := p.Items
	if math.Abs(items[0].Time-0.5) > 1e-9 {
		t.Errorf("forward item time %v, want 0.5", items[0].Time)
	}
	if math.Abs(items[1].Time-1.5) > 1e-9 {
		t.Errorf("reversed item time %v, want 1.5", items[1].Time)
	}
	if items[2].Time != 0 {
		t.Errorf("bind pose item should not advance, got %v", items[2].Time)
	}
}

func TestShadowOptions(t *testing.T) {
	cfg := config.Default().Shadow
	opts := ShadowOptions(cfg)
	if opts.Resolution != cfg.Resolution || len(opts.Splits) != len(cfg.Cascades) {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.Splits[1].Near != cfg.Cascades[1].Near || opts.Splits[1].Far != cfg.Cascades[1].Far {
		t.Errorf("split 1 = %+v", opts.Splits[1])
	}
	if opts.Global != nil {
		t.Error("global cascade should be off by default")
	}

	cfg.Global = true
	cfg.GlobalMin = [3]float32{-5, 0, -5}
	cfg.GlobalMax = [3]float32{5, 3, 5}
	opts = ShadowOptions(cfg)
	if opts.Global == nil || opts.Global.Max != (mgl32.Vec3{5, 3, 5}) {
		t.Errorf("global bounds not converted: %+v", opts.Global)
	}
}

func TestLights(t *testing.T) {
	cfg := config.Default().Scene
	lights := Lights(cfg)
	if len(lights) != 2 || lights[0].Kind != lighting.KindAmbient || lights[1].Kind != lighting.KindDirectional {
		t.Fatalf("unexpected lights %+v", lights)
	}
	if lights[1].Shadow != 0 {
		t.Errorf("sun should cast shadow 0, got %d", lights[1].Shadow)
	}
	if lights[1].Direction[1] >= 0 {
		t.Errorf("sunlight should travel downward, got %v", lights[1].Direction)
	}
}

func TestNextMode(t *testing.T) {
	m := batch.ModeMaterial
	seen := []batch.RenderMode{m}
	for range 3 {
		m = NextMode(m)
		seen = append(seen, m)
	}
	want := []batch.RenderMode{batch.ModeMaterial, batch.ModeForcePBR, batch.ModeDefaultShading, batch.ModeMaterial}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("mode cycle %v, want %v", seen, want)
		}
	}
}
