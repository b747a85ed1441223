package model

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-batch/internal/assets"
	"github.com/Faultbox/midgard-batch/internal/engine/batch"
	"github.com/Faultbox/midgard-batch/internal/engine/camera"
	"github.com/Faultbox/midgard-batch/internal/engine/gpu"
	"github.com/Faultbox/midgard-batch/internal/engine/lighting"
	"github.com/Faultbox/midgard-batch/internal/engine/texture"
)

func matNear(a, b mgl32.Mat4, tol float32) bool {
	for i := range a {
		if d := a[i] - b[i]; d > tol || d < -tol {
			return false
		}
	}
	return true
}

func quatNear(a, b mgl32.Quat) bool {
	return matNear(a.Mat4(), b.Mat4(), 1e-5)
}

func triangle(name string, x float32) assets.Mesh {
	return assets.Mesh{
		Name:      name,
		Positions: []mgl32.Vec3{{x, 0, 0}, {x + 1, 0, 0}, {x, 1, 0}},
		UVs:       []mgl32.Vec2{{0, 0}, {1, 0}, {0, 1}},
		Indices:   []uint32{0, 1, 2},
		Material:  -1,
	}
}

// riggedScene is a triangle skinned to a hip/knee chain plus a static
// triangle instanced by two nodes.
//
//	root
//	├── hip (0,1,0)
//	│   └── knee (0,1,0)
//	├── body       mesh 0
//	├── prop (5,0,0) mesh 1
//	└── prop2 (0,0,5) mesh 1
func riggedScene() *assets.Scene {
	body := triangle("body", 0)
	body.Bones = []assets.Bone{
		{Name: "hip", Offset: mgl32.Translate3D(0, -1, 0), Weights: []assets.BoneWeight{{Vertex: 0, Weight: 1}, {Vertex: 1, Weight: 0.5}}},
		{Name: "knee", Offset: mgl32.Translate3D(0, -2, 0), Weights: []assets.BoneWeight{{Vertex: 1, Weight: 0.5}, {Vertex: 2, Weight: 1}}},
	}
	return &assets.Scene{
		Name:   "rigged",
		Meshes: []assets.Mesh{body, triangle("prop", 0)},
		Nodes: []assets.Node{
			{Name: "root", Parent: -1, Children: []int{1, 3, 4, 5}, Transform: mgl32.Ident4()},
			{Name: "hip", Parent: 0, Children: []int{2}, Transform: mgl32.Translate3D(0, 1, 0)},
			{Name: "knee", Parent: 1, Transform: mgl32.Translate3D(0, 1, 0)},
			{Name: "body", Parent: 0, Transform: mgl32.Ident4(), Meshes: []int{0}},
			{Name: "prop", Parent: 0, Transform: mgl32.Translate3D(5, 0, 0), Meshes: []int{1}},
			{Name: "prop2", Parent: 0, Transform: mgl32.Translate3D(0, 0, 5), Meshes: []int{1}},
		},
		Root: 0,
		Animations: []assets.Animation{{
			Name:           "lift",
			Duration:       10,
			TicksPerSecond: 10,
			Channels: []assets.Channel{{
				Node:         "hip",
				Translations: []assets.VectorKey{{Time: 0, Value: mgl32.Vec3{0, 1, 0}}, {Time: 10, Value: mgl32.Vec3{0, 3, 0}}},
			}},
		}},
	}
}

type env struct {
	dev        *gpu.Recorder
	textures   *texture.Registry
	reg        *batch.Registry
	violations []error
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{dev: gpu.NewRecorder()}
	e.textures = texture.NewRegistry(e.dev)
	var progs batch.Programs
	for _, p := range []**gpu.Program{&progs.Lit, &progs.Depth, &progs.DepthCube} {
		prog, err := gpu.NewProgram(e.dev, map[gpu.ShaderStage]string{gpu.StageVertex: "void main() {}"})
		if err != nil {
			t.Fatal(err)
		}
		*p = prog
	}
	e.reg = batch.NewRegistry(e.dev, e.textures, batch.Options{
		Programs:    progs,
		OnViolation: func(err error) { e.violations = append(e.violations, err) },
	})
	t.Cleanup(e.reg.Close)
	return e
}

func TestNamer(t *testing.T) {
	var n Namer
	if n.Name("hip") != 0 || n.Name("knee") != 1 || n.Name("hip") != 0 {
		t.Error("names should get dense first-seen ids")
	}
	if _, ok := n.Lookup("spine"); ok {
		t.Error("lookup must not assign ids")
	}
	if n.Len() != 2 {
		t.Errorf("expected 2 names, got %d", n.Len())
	}
	if names := n.Names(); names[0] != "hip" || names[1] != "knee" {
		t.Errorf("unexpected names %v", names)
	}
}

func TestInterpolateVector(t *testing.T) {
	keys := []assets.VectorKey{
		{Time: 0, Value: mgl32.Vec3{0, 0, 0}},
		{Time: 2, Value: mgl32.Vec3{2, 0, 0}},
		{Time: 4, Value: mgl32.Vec3{2, 4, 0}},
		{Time: 8, Value: mgl32.Vec3{2, 4, 8}},
	}
	fallback := mgl32.Vec3{1, 1, 1}

	tests := []struct {
		name  string
		keys  []assets.VectorKey
		ticks float64
		want  mgl32.Vec3
	}{
		{"no keys", nil, 3, fallback},
		{"single key", keys[2:3], 100, mgl32.Vec3{2, 4, 0}},
		{"before first", keys, -1, mgl32.Vec3{0, 0, 0}},
		{"after last", keys, 9, mgl32.Vec3{2, 4, 8}},
		{"on a key", keys, 2, mgl32.Vec3{2, 0, 0}},
		{"first span", keys, 1, mgl32.Vec3{1, 0, 0}},
		{"middle span", keys, 3, mgl32.Vec3{2, 2, 0}},
		{"last span", keys, 6, mgl32.Vec3{2, 4, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := interpolateVector(tt.keys, tt.ticks, fallback); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInterpolateRotation(t *testing.T) {
	if got := interpolateRotation(nil, 1); got != mgl32.QuatIdent() {
		t.Errorf("no keys should be identity, got %v", got)
	}

	quarter := mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 0, 1})
	keys := []assets.QuatKey{{Time: 0, Value: mgl32.QuatIdent()}, {Time: 1, Value: quarter}}
	half := interpolateRotation(keys, 0.5)
	want := mgl32.QuatRotate(math.Pi/4, mgl32.Vec3{0, 0, 1})
	if !quatNear(half, want) {
		t.Errorf("halfway rotation %v, want %v", half, want)
	}

	// The same rotation with the opposite sign must still take the short way.
	keys[1].Value = quarter.Scale(-1)
	flipped := interpolateRotation(keys, 0.5)
	if !quatNear(flipped, want) {
		t.Errorf("flipped halfway rotation %v, want %v", flipped, want)
	}
}

func TestLoadSubmitsEveryNodeInstance(t *testing.T) {
	e := newEnv(t)
	m, err := Load(riggedScene(), e.reg, e.textures, Options{Items: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if m.NumMeshes() != 3 {
		t.Fatalf("expected 3 mesh records, got %d", m.NumMeshes())
	}
	span := m.Span()
	if span.Meshes != 3 || span.Items != 2 || span.BonesPerItem != 2 {
		t.Errorf("unexpected span %+v", span)
	}
	if got, ok := e.reg.Span(m); !ok || got != span {
		t.Error("registry does not know the model's span")
	}
	if m.meshes[1].Transform != mgl32.Translate3D(5, 0, 0) || m.meshes[2].Transform != mgl32.Translate3D(0, 0, 5) {
		t.Error("instanced meshes should carry their node transforms")
	}
	if !m.meshes[0].HasBone || m.meshes[1].HasBone {
		t.Error("only the skinned mesh has bones")
	}

	b := m.Bounds()
	if b.Min != (mgl32.Vec3{0, 0, 0}) || b.Max != (mgl32.Vec3{6, 1, 5}) {
		t.Errorf("unexpected bounds %v", b)
	}
	if names := m.BoneNames(); len(names) != 2 || names[0] != "hip" {
		t.Errorf("unexpected bones %v", names)
	}
}

func TestAnimationMetadata(t *testing.T) {
	e := newEnv(t)
	m, err := Load(riggedScene(), e.reg, e.textures, Options{Items: 1})
	if err != nil {
		t.Fatal(err)
	}
	if m.NumAnimations() != 1 || m.AnimationName(0) != "lift" {
		t.Errorf("unexpected animations %d %q", m.NumAnimations(), m.AnimationName(0))
	}
	if d := m.AnimationDurationInSeconds(0); d != 1 {
		t.Errorf("expected 1 second, got %v", d)
	}
	if m.AnimationDurationInSeconds(3) != 0 || m.AnimationName(-1) != "" {
		t.Error("out of range animations should report zero values")
	}
	if !m.HasAnimation() {
		t.Error("two translation keys count as animation")
	}
}

func TestBoneMatrices(t *testing.T) {
	e := newEnv(t)
	m, err := Load(riggedScene(), e.reg, e.textures, Options{Items: 1})
	if err != nil {
		t.Fatal(err)
	}

	dst := make([]mgl32.Mat4, m.NumBones())
	m.BoneMatrices(-1, 0, dst)
	for i, got := range dst {
		if !matNear(got, mgl32.Ident4(), 1e-6) {
			t.Errorf("bind pose bone %d should be identity, got %v", i, got)
		}
	}

	m.BoneMatrices(0, 0.5, dst)
	want := mgl32.Translate3D(0, 1, 0)
	for i, got := range dst {
		if !matNear(got, want, 1e-6) {
			t.Errorf("bone %d at half time: got %v, want %v", i, got, want)
		}
	}

	m.BoneMatrices(0, 5, dst)
	want = mgl32.Translate3D(0, 2, 0)
	if !matNear(dst[1], want, 1e-6) {
		t.Errorf("time past the end should clamp to the last key, got %v", dst[1])
	}

	short := []mgl32.Mat4{{}}
	m.BoneMatrices(0, 0, short)
	if !matNear(short[0], mgl32.Ident4(), 1e-6) {
		t.Errorf("bones beyond dst must be skipped, got %v", short[0])
	}
}

func TestDrawPosesLoadedModel(t *testing.T) {
	e := newEnv(t)
	m, err := Load(riggedScene(), e.reg, e.textures, Options{Items: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.reg.PrepareForDraw(); err != nil {
		t.Fatal(err)
	}

	params := []batch.RenderTargetParameter{{Model: m, Items: []batch.Item{
		{AnimationID: 0, Time: 0.5, ModelMatrix: mgl32.Ident4()},
		{AnimationID: -1, ModelMatrix: mgl32.Translate3D(3, 0, 0)},
	}}}
	view := camera.New(mgl32.Vec3{0, 1, 5}, -1.57, 0, camera.DefaultLens(1))
	e.reg.Draw(view, []lighting.Light{lighting.Ambient(mgl32.Vec3{1, 1, 1})}, nil, batch.ModeMaterial, params)
	if len(e.violations) != 0 {
		t.Fatalf("unexpected violations %v", e.violations)
	}
	if draws := e.dev.Draws(); len(draws) != 1 || draws[0].Count != m.NumMeshes() {
		t.Fatalf("expected one draw of %d commands, got %+v", m.NumMeshes(), draws)
	}

	bones := gpu.Cast[mgl32.Mat4](e.dev.StorageData(batch.BindingBoneMatrices))
	span := m.Span()
	for b := 0; b < span.BonesPerItem; b++ {
		if got := bones[span.BoneOffset(0)+b]; !matNear(got, mgl32.Translate3D(0, 1, 0), 1e-6) {
			t.Errorf("item 0 bone %d: %v", b, got)
		}
	}

	animated := gpu.Cast[uint32](e.dev.StorageData(batch.BindingAnimated))
	if animated[span.Slot(0, 0)] != 1 || animated[span.Slot(0, 1)] != 0 || animated[span.Slot(1, 0)] != 0 {
		t.Errorf("unexpected animated flags %v", animated)
	}
}

func TestTooManyBones(t *testing.T) {
	e := newEnv(t)
	scene := riggedScene()
	body := &scene.Meshes[0]
	body.Bones = nil
	for i := 0; i <= MaxBones; i++ {
		body.Bones = append(body.Bones, assets.Bone{Name: fmt.Sprintf("b%d", i), Offset: mgl32.Ident4()})
	}
	if _, err := Load(scene, e.reg, e.textures, Options{Items: 1}); !errors.Is(err, ErrTooManyBones) {
		t.Fatalf("expected ErrTooManyBones, got %v", err)
	}
	if e.reg.Stats().Commands != 0 {
		t.Error("a failed load must not leave commands behind")
	}
	if _, err := Load(riggedScene(), e.reg, e.textures, Options{Items: 1}); err != nil {
		t.Errorf("registry should accept models after a failed load: %v", err)
	}
}

func TestTooManyBoneInfluences(t *testing.T) {
	e := newEnv(t)
	scene := riggedScene()
	body := &scene.Meshes[0]
	body.Bones = nil
	for i := 0; i <= batch.MaxBoneInfluences; i++ {
		body.Bones = append(body.Bones, assets.Bone{
			Name:    fmt.Sprintf("b%d", i),
			Offset:  mgl32.Ident4(),
			Weights: []assets.BoneWeight{{Vertex: 0, Weight: 0.1}},
		})
	}
	if _, err := Load(scene, e.reg, e.textures, Options{Items: 1}); !errors.Is(err, ErrTooManyBoneInfluences) {
		t.Fatalf("expected ErrTooManyBoneInfluences, got %v", err)
	}
}

func TestLoadRejectsBadScenes(t *testing.T) {
	e := newEnv(t)
	if _, err := Load(nil, e.reg, e.textures, Options{}); !errors.Is(err, ErrNilScene) {
		t.Errorf("nil scene: %v", err)
	}
	if _, err := Load(&assets.Scene{Name: "empty"}, e.reg, e.textures, Options{}); !errors.Is(err, ErrNoMeshes) {
		t.Errorf("empty scene: %v", err)
	}

	bad := riggedScene()
	bad.Meshes[1].Indices = []uint32{0, 1, 7}
	if _, err := Load(bad, e.reg, e.textures, Options{}); !errors.Is(err, batch.ErrIndexOutOfRange) {
		t.Errorf("bad index: %v", err)
	}

	cyclic := riggedScene()
	cyclic.Nodes[2].Children = []int{1}
	if _, err := Load(cyclic, e.reg, e.textures, Options{}); err == nil {
		t.Error("expected a cycle error")
	}
}

func TestGeneratedNormalsAndTangents(t *testing.T) {
	src := triangle("tri", 0)
	vertices := buildVertices(&src, false)
	for i, v := range vertices {
		if v.Normal != (mgl32.Vec3{0, 0, 1}) {
			t.Errorf("vertex %d normal %v", i, v.Normal)
		}
		if v.Tangent != (mgl32.Vec3{1, 0, 0}) {
			t.Errorf("vertex %d tangent %v", i, v.Tangent)
		}
		if v.NumBones() != 0 {
			t.Errorf("vertex %d should start without bones", i)
		}
	}

	flipped := buildVertices(&src, true)
	if flipped[2].UV != (mgl32.Vec2{0, 0}) || flipped[0].UV != (mgl32.Vec2{0, 1}) {
		t.Errorf("flipped uvs %v %v", flipped[0].UV, flipped[2].UV)
	}

	src.UVs = nil
	noUV := buildVertices(&src, false)
	if n := noUV[0].Tangent; n.Dot(noUV[0].Normal) != 0 || n.Len() < 0.99 {
		t.Errorf("fallback tangent %v should be a unit vector orthogonal to the normal", n)
	}
}

func TestSplitTriangles(t *testing.T) {
	var vertices []batch.Vertex
	for i := 0; i < 6; i++ {
		vertices = append(vertices, batch.NewVertex(mgl32.Vec3{float32(i), 0, 0}, mgl32.Vec2{}, mgl32.Vec3{}, mgl32.Vec3{}))
	}
	// A strip of four triangles over six vertices.
	indices := []uint32{0, 1, 2, 1, 3, 2, 2, 3, 4, 3, 5, 4}

	if parts := splitTriangles(vertices, indices, 0); len(parts) != 1 {
		t.Fatalf("no limit should keep one part, got %d", len(parts))
	}

	parts := splitTriangles(vertices, indices, 4)
	if len(parts) < 2 {
		t.Fatalf("expected the strip to split, got %d parts", len(parts))
	}
	var tris []mgl32.Vec3
	for _, p := range parts {
		if len(p.vertices) > 4 {
			t.Errorf("part has %d vertices", len(p.vertices))
		}
		for _, idx := range p.indices {
			tris = append(tris, p.vertices[idx].Position)
		}
	}
	if len(tris) != len(indices) {
		t.Fatalf("split lost triangles: %d of %d corners", len(tris), len(indices))
	}
	for i, idx := range indices {
		if tris[i] != vertices[idx].Position {
			t.Errorf("corner %d moved: %v vs %v", i, tris[i], vertices[idx].Position)
		}
	}
}

func TestSplitMeshSubmitsParts(t *testing.T) {
	e := newEnv(t)
	scene := riggedScene()
	quad := &scene.Meshes[1]
	quad.Positions = append(quad.Positions, mgl32.Vec3{1, 1, 0})
	quad.UVs = append(quad.UVs, mgl32.Vec2{1, 1})
	quad.Indices = append(quad.Indices, 1, 3, 2)

	m, err := Load(scene, e.reg, e.textures, Options{Items: 1, MaxVerticesPerMesh: 3})
	if err != nil {
		t.Fatal(err)
	}
	// body fits; the quad splits in two and is instanced by two nodes.
	if m.NumMeshes() != 5 {
		t.Errorf("expected 5 records, got %d", m.NumMeshes())
	}
	if names := m.MeshNames(); names[2] != "prop#1" {
		t.Errorf("split parts should be numbered, got %q", names)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestMaterialTextures(t *testing.T) {
	e := newEnv(t)
	scene := riggedScene()
	scene.Images = []assets.Image{
		{Key: "albedo", Data: pngBytes(t)},
		{Key: "broken", Data: []byte("not an image")},
		{Key: "unused", Data: pngBytes(t)},
	}
	scene.Materials = []assets.Material{{
		Name:      "skin",
		Diffuse:   mgl32.Vec3{1, 0, 0},
		Albedo:    mgl32.Vec3{1, 0, 0},
		Roughness: 0.5,
		Textures: map[assets.TextureKind]assets.TextureRef{
			assets.TextureDiffuse: {Image: 0},
			assets.TextureNormals: {Image: 1},
		},
	}}
	scene.Meshes[0].Material = 0

	m, err := Load(scene, e.reg, e.textures, Options{Items: 1})
	if err != nil {
		t.Fatal(err)
	}
	body := m.meshes[0]
	if !body.Textures[batch.SlotDiffuse].Enabled || body.Textures[batch.SlotDiffuse].Texture.Key() != "rigged/albedo" {
		t.Errorf("diffuse slot not bound: %+v", body.Textures[batch.SlotDiffuse])
	}
	if body.Textures[batch.SlotNormals].Enabled {
		t.Error("an image that fails to decode should disable its slot")
	}
	if body.Material.Roughness != 0.5 || body.Material.Diffuse != (mgl32.Vec3{1, 0, 0}) {
		t.Errorf("material parameters not copied: %+v", body.Material)
	}
	if m.meshes[1].Material != batch.DefaultMaterial() {
		t.Error("meshes without a material should use the default")
	}
	if e.textures.Len() != 1 {
		t.Errorf("only referenced images should load, got %d", e.textures.Len())
	}

	m.Close()
	if e.textures.Len() != 0 {
		t.Error("Close should release the model's textures")
	}
}
