package shadow

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-batch/internal/engine/camera"
	"github.com/Faultbox/midgard-batch/internal/engine/geom"
	"github.com/Faultbox/midgard-batch/internal/engine/gpu"
)

var sunDir = mgl32.Vec3{-0.3, -1, -0.2}

func testCamera() *camera.Camera {
	return camera.New(mgl32.Vec3{0, 2, 8}, -math.Pi/2, -0.2,
		camera.Lens{FOV: 60, Aspect: 16.0 / 9.0, Near: 0.1, Far: 1000})
}

func newTestShadow(t *testing.T, dev gpu.Device, global *geom.AABB) *Directional {
	t.Helper()
	opts := DefaultOptions()
	opts.Resolution = 256
	opts.Global = global
	s, err := NewDirectional(dev, sunDir, opts)
	if err != nil {
		t.Fatalf("NewDirectional: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSamePoseReusesEveryCascade(t *testing.T) {
	s := newTestShadow(t, gpu.NewRecorder(), nil)
	cam := testCamera()

	first := s.Update(cam)
	if first.Refit != 5 || first.Reused != 0 {
		t.Fatalf("first update: expected 5 refits, got %+v", first)
	}
	before := make([]Cascade, s.NumCascades())
	for i := range before {
		before[i] = s.Cascade(i)
	}

	second := s.Update(cam)
	if second.Refit != 0 || second.Reused != 5 {
		t.Fatalf("second update: expected 5 reuses, got %+v", second)
	}
	for i := range before {
		if s.Cascade(i) != before[i] {
			t.Errorf("cascade %d changed without camera movement", i)
		}
	}
}

func TestSmallMoveReusesFit(t *testing.T) {
	s := newTestShadow(t, gpu.NewRecorder(), nil)
	cam := testCamera()
	s.Update(cam)
	before := s.Cascade(2)

	cam.Pos = cam.Pos.Add(mgl32.Vec3{1e-3, 0, 0})
	stats := s.Update(cam)
	if stats.Refit != 0 {
		t.Errorf("expected no refit for a tiny move, got %+v", stats)
	}
	if s.Cascade(2) != before {
		t.Error("cascade 2 should be bit-identical after a tiny move")
	}
}

func TestReusedCascadeTracksSplit(t *testing.T) {
	s := newTestShadow(t, gpu.NewRecorder(), nil)
	cam := testCamera()
	s.Update(cam)
	before := s.Cascade(4)

	cam.Far = 995
	stats := s.Update(cam)
	if stats.Reused == 0 {
		t.Fatalf("expected the shortened frustum to reuse fits, got %+v", stats)
	}
	planes := s.PlaneDistances()
	for i := 0; i < len(planes)/2; i++ {
		zn, zf := s.splitRange(i, cam.Near, cam.Far)
		if planes[2*i] != zn || planes[2*i+1] != zf {
			t.Errorf("cascade %d planes [%v %v], want [%v %v]", i, planes[2*i], planes[2*i+1], zn, zf)
		}
	}
	if after := s.Cascade(4); after.View != before.View || after.Projection != before.Projection || after.Bounds != before.Bounds {
		t.Error("a reused cascade should keep its fitted volume")
	}
}

func TestLargeMoveRefitsAndCovers(t *testing.T) {
	s := newTestShadow(t, gpu.NewRecorder(), nil)
	cam := testCamera()
	s.Update(cam)
	before := s.Cascade(0)

	cam.Pos = cam.Pos.Add(mgl32.Vec3{5000, 0, 0})
	stats := s.Update(cam)
	if stats.Refit != 5 {
		t.Fatalf("expected every cascade to refit, got %+v", stats)
	}
	if s.Cascade(0).View == before.View {
		t.Error("cascade 0 view should follow the camera")
	}

	near, far := cam.NearFar()
	for i := 0; i < len(s.cascades); i++ {
		zn, zf := s.splitRange(i, near, far)
		corners := camera.FrustumCorners(cam, zn, zf)
		if !s.Cascade(i).covers(corners[:]) {
			t.Errorf("cascade %d does not contain the current frustum slice", i)
		}
	}
}

func TestDirectionChangeInvalidates(t *testing.T) {
	s := newTestShadow(t, gpu.NewRecorder(), nil)
	cam := testCamera()
	s.Update(cam)

	s.SetDirection(sunDir.Mul(3))
	if stats := s.Update(cam); stats.Refit != 0 {
		t.Errorf("rescaled direction should not invalidate, got %+v", stats)
	}

	s.SetDirection(mgl32.Vec3{0.5, -1, 0})
	if stats := s.Update(cam); stats.Refit != 5 {
		t.Errorf("expected all cascades refit after turning the light, got %+v", stats)
	}

	s.SetDirection(mgl32.Vec3{})
	if !s.Direction().ApproxEqual(mgl32.Vec3{0.5, -1, 0}.Normalize()) {
		t.Error("zero direction should be ignored")
	}
}

func TestGlobalCascadeIgnoresCamera(t *testing.T) {
	world := geom.AABB{Min: mgl32.Vec3{-50, 0, -50}, Max: mgl32.Vec3{50, 20, 50}}
	s := newTestShadow(t, gpu.NewRecorder(), &world)
	if s.NumCascades() != 6 {
		t.Fatalf("expected 6 cascades, got %d", s.NumCascades())
	}

	cam := testCamera()
	if stats := s.Update(cam); stats.Refit != 6 {
		t.Fatalf("expected 6 refits, got %+v", stats)
	}
	global := s.Cascade(5)
	if global.Near != 0 || global.Far != 0 {
		t.Error("global cascade should not carry plane distances")
	}

	for _, step := range []mgl32.Vec3{{3, 0, 0}, {0, 100, 0}, {-5000, 0, 20}} {
		cam.Pos = cam.Pos.Add(step)
		s.Update(cam)
		if s.Cascade(5) != global {
			t.Fatalf("global cascade changed after camera moved by %v", step)
		}
	}

	if err := s.SetGlobalBounds(world); err != nil {
		t.Fatal(err)
	}
	if stats := s.Update(cam); stats.Reused < 1 {
		t.Errorf("unchanged global bounds should be reused, got %+v", stats)
	}

	bigger := world.Union(geom.AABB{Min: mgl32.Vec3{-100, 0, -100}, Max: mgl32.Vec3{100, 40, 100}})
	if err := s.SetGlobalBounds(bigger); err != nil {
		t.Fatal(err)
	}
	s.Update(cam)
	if s.Cascade(5) == global {
		t.Error("global cascade should refit for new bounds")
	}

	corners := bigger.Corners()
	if !s.Cascade(5).covers(corners[:]) {
		t.Error("global cascade should contain its world box")
	}
}

func TestSetGlobalBoundsWithoutGlobal(t *testing.T) {
	s := newTestShadow(t, gpu.NewRecorder(), nil)
	err := s.SetGlobalBounds(geom.AABB{Max: mgl32.Vec3{1, 1, 1}})
	if !errors.Is(err, ErrNoGlobalCascade) {
		t.Errorf("expected ErrNoGlobalCascade, got %v", err)
	}
}

func TestUpVectorFallback(t *testing.T) {
	if up := upFor(mgl32.Vec3{0, -1, 0}); up != (mgl32.Vec3{0, 0, 1}) {
		t.Errorf("straight-down light: expected +Z up, got %v", up)
	}
	if up := upFor(mgl32.Vec3{0, 5, 0}); up != (mgl32.Vec3{0, 0, 1}) {
		t.Errorf("straight-up light: expected +Z up, got %v", up)
	}
	if up := upFor(sunDir); up != (mgl32.Vec3{0, 1, 0}) {
		t.Errorf("oblique light: expected +Y up, got %v", up)
	}

	s := newTestShadow(t, gpu.NewRecorder(), nil)
	s.SetDirection(mgl32.Vec3{0, -1, 0})
	s.Update(testCamera())
	for i := 0; i < s.NumCascades(); i++ {
		for _, v := range s.Cascade(i).ViewProjection() {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				t.Fatalf("cascade %d has non-finite matrix", i)
			}
		}
	}
}

func TestSplitRangeClampsCollapsedSlices(t *testing.T) {
	opts := DefaultOptions()
	opts.Splits = []Split{{0.5, 0.5}, {0, 1}}
	s, err := NewDirectional(gpu.NewRecorder(), sunDir, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	zn, zf := s.splitRange(0, 1, 101)
	if zn != 51 || zf <= zn {
		t.Errorf("expected near 51 and far beyond it, got %f %f", zn, zf)
	}
	zn, zf = s.splitRange(1, 1, 101)
	if zn != 1 || zf != 101 {
		t.Errorf("full split: got %f %f", zn, zf)
	}

	s.Update(testCamera())
	d := s.PlaneDistances()
	if len(d) != 4 || d[1] <= d[0] {
		t.Errorf("unexpected plane distances %v", d)
	}
}

func TestEnlarge(t *testing.T) {
	b := geom.AABB{Min: mgl32.Vec3{-1, 0, -3}, Max: mgl32.Vec3{1, 2, -2}}
	got := enlarge(b, 1.5, 10)
	want := geom.AABB{Min: mgl32.Vec3{-1.5, -0.5, -30}, Max: mgl32.Vec3{1.5, 2.5, -0.2}}
	if !got.Min.ApproxEqual(want.Min) || !got.Max.ApproxEqual(want.Max) {
		t.Errorf("expected %v, got %v", want, got)
	}

	b = geom.AABB{Min: mgl32.Vec3{0, 0, 2}, Max: mgl32.Vec3{0, 0, 4}}
	got = enlarge(b, 1, 10)
	if !mgl32.FloatEqual(got.Min[2], 0.2) || !mgl32.FloatEqual(got.Max[2], 40) {
		t.Errorf("positive z: got %v", got)
	}
}

func TestOrthoMapsBoundsToClipCube(t *testing.T) {
	b := geom.AABB{Min: mgl32.Vec3{-4, -2, -30}, Max: mgl32.Vec3{6, 8, -1}}
	p := ortho(b)
	lo := mgl32.TransformCoordinate(mgl32.Vec3{b.Min[0], b.Min[1], b.Max[2]}, p)
	hi := mgl32.TransformCoordinate(mgl32.Vec3{b.Max[0], b.Max[1], b.Min[2]}, p)
	if !lo.ApproxEqualThreshold(mgl32.Vec3{-1, -1, -1}, 1e-5) {
		t.Errorf("near corner: got %v", lo)
	}
	if !hi.ApproxEqualThreshold(mgl32.Vec3{1, 1, 1}, 1e-5) {
		t.Errorf("far corner: got %v", hi)
	}
}

func TestFitCoversItsOwnPoints(t *testing.T) {
	corners := camera.FrustumCorners(testCamera(), 0.1, 30)
	c := fit(sunDir.Normalize(), corners[:], 1.5, 10)
	if !c.covers(corners[:]) {
		t.Error("fresh fit should contain its points")
	}

	for i, wc := range c.OBB().Corners() {
		local := mgl32.TransformCoordinate(wc, c.View)
		want := c.Bounds.Corners()[i]
		if !local.ApproxEqualThreshold(want, 1e-3*max(1, want.Len())) {
			t.Errorf("obb corner %d: expected %v in light space, got %v", i, want, local)
		}
	}
}

func TestEmptyCascadeNeverCovers(t *testing.T) {
	c := Cascade{Bounds: geom.EmptyAABB()}
	if c.covers([]mgl32.Vec3{{0, 0, 0}}) {
		t.Error("invalidated cascade must not be reused")
	}
}

func TestNewDirectionalRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"no cascades", func(o *Options) { o.Splits = nil }},
		{"small xy margin", func(o *Options) { o.MarginXY = 0.5 }},
		{"zero z margin", func(o *Options) { o.MarginZ = 0 }},
		{"empty global", func(o *Options) { g := geom.EmptyAABB(); o.Global = &g }},
		{"too many cascades", func(o *Options) {
			for len(o.Splits) < MaxCascades {
				o.Splits = append(o.Splits, o.Splits[len(o.Splits)-1])
			}
			g := geom.AABB{Max: mgl32.Vec3{1, 1, 1}}
			o.Global = &g
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := gpu.NewRecorder()
			opts := DefaultOptions()
			tt.modify(&opts)
			if _, err := NewDirectional(dev, sunDir, opts); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("expected ErrInvalidOptions, got %v", err)
			}
			if b, tex, fb := dev.Live(); b+tex+fb != 0 {
				t.Errorf("leaked resources: %d buffers, %d textures, %d framebuffers", b, tex, fb)
			}
		})
	}
}

func TestDirectionalDepthTarget(t *testing.T) {
	dev := gpu.NewRecorder()
	world := geom.AABB{Max: mgl32.Vec3{10, 10, 10}}
	s := newTestShadow(t, dev, &world)

	info := dev.Textures[s.Texture().ID()]
	if !info.Depth || info.Layers != 6 || info.Width != 256 {
		t.Errorf("unexpected depth texture %+v", info)
	}
	if !dev.HandleResident(s.Handle()) {
		t.Error("shadow map should be resident after creation")
	}

	s.Update(testCamera())
	var got []mgl32.Mat4
	s.DepthPass(func(layers []mgl32.Mat4) { got = layers })
	if len(got) != 6 {
		t.Fatalf("expected 6 layer matrices, got %d", len(got))
	}
	if got[0] != s.Cascade(0).ViewProjection() {
		t.Error("layer 0 should carry cascade 0's view-projection")
	}

	n := len(dev.Events)
	if dev.Events[n-2].Op != "BeginDepthPass" || dev.Events[n-1].Op != "EndDepthPass" {
		t.Errorf("expected depth pass events, got %v", dev.Events[n-2:])
	}

	handle := s.Handle()
	s.Close()
	s.Close()
	if dev.HandleResident(handle) {
		t.Error("handle should be non-resident after Close")
	}
	if _, tex, fb := dev.Live(); tex != 0 || fb != 0 {
		t.Errorf("leaked %d textures, %d framebuffers", tex, fb)
	}
}

func TestDirectionalFramebufferFailure(t *testing.T) {
	dev := gpu.NewRecorder()
	dev.FailFramebuffer = true
	if _, err := NewDirectional(dev, sunDir, DefaultOptions()); !errors.Is(err, gpu.ErrIncompleteFramebuffer) {
		t.Errorf("expected ErrIncompleteFramebuffer, got %v", err)
	}
	if dev.ResidencyChanges != 0 {
		t.Error("failed shadow should not touch residency")
	}
}

func TestOmnidirectional(t *testing.T) {
	dev := gpu.NewRecorder()
	o, err := NewOmnidirectional(dev, mgl32.Vec3{1, 2, 3}, 25, 128)
	if err != nil {
		t.Fatal(err)
	}

	info := dev.Textures[o.Texture().ID()]
	if info.Kind != gpu.DepthCube || info.Layers != 6 {
		t.Errorf("unexpected cube texture %+v", info)
	}

	faces := o.ViewProjections()
	if len(faces) != 6 {
		t.Fatalf("expected 6 faces, got %d", len(faces))
	}
	for i, f := range cubeFaces {
		p := o.Position.Add(f[0].Mul(5))
		clip := faces[i].Mul4x1(p.Vec4(1))
		if clip[3] <= 0 {
			t.Errorf("face %d: point ahead of the light is behind the camera", i)
			continue
		}
		ndc := clip.Vec3().Mul(1 / clip[3])
		if math.Abs(float64(ndc[0])) > 1e-4 || math.Abs(float64(ndc[1])) > 1e-4 {
			t.Errorf("face %d: expected point on the axis at the face center, got %v", i, ndc)
		}
	}

	calls := 0
	o.DepthPass(func(layers []mgl32.Mat4) {
		calls++
		if len(layers) != 6 {
			t.Errorf("expected 6 layers, got %d", len(layers))
		}
	})
	if calls != 1 {
		t.Errorf("expected one draw callback, got %d", calls)
	}

	o.Close()
	if _, tex, fb := dev.Live(); tex != 0 || fb != 0 {
		t.Errorf("leaked %d textures, %d framebuffers", tex, fb)
	}
}
