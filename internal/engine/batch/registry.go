// Package batch compiles the meshes of many models into shared GPU buffers
// and draws all of them with a single indirect multi-draw.
//
// A Registry has two phases. During submission each model calls
// BeginSubmission, Receive once per mesh and EndSubmission, which reserves a
// fixed range of instance slots and bone matrices for it. PrepareForDraw then
// uploads everything once. From then on Draw and DrawDepthForShadow rewrite
// the per-instance data of every registered model and issue one draw.
package batch

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-batch/internal/engine/geom"
	"github.com/Faultbox/midgard-batch/internal/engine/gpu"
	"github.com/Faultbox/midgard-batch/internal/engine/texture"
	"github.com/Faultbox/midgard-batch/internal/logger"
)

var (
	ErrAlreadyPrepared  = errors.New("registry already prepared for draw")
	ErrNotPrepared      = errors.New("registry not prepared for draw")
	ErrNotSubmitting    = errors.New("no model submission in progress")
	ErrSubmissionOpen   = errors.New("model submission still in progress")
	ErrNilModel         = errors.New("nil model")
	ErrModelRegistered  = errors.New("model already registered")
	ErrInvalidItemCount = errors.New("item count must be positive")
	ErrInvalidBoneCount = errors.New("bone count must not be negative")
	ErrEmptyMesh        = errors.New("mesh has no triangles")
	ErrIndexOutOfRange  = errors.New("mesh index out of range")
	ErrMissingTexture   = errors.New("enabled texture slot without texture")
)

// Storage buffer bindings shared with the batch programs.
const (
	BindingModelMatrices uint32 = iota
	BindingBoneMatrices
	BindingBoneOffsets
	BindingAnimated
	BindingTransforms
	BindingClipPlanes
	BindingMaterials
	BindingTextureHandles
)

// Model is what the registry needs from a submitted model at draw time.
// Implementations must be comparable, typically a pointer.
type Model interface {
	NumAnimations() int
	// BoneMatrices writes the pose at seconds into dst, one matrix per bone.
	BoneMatrices(animationID int, seconds float64, dst []mgl32.Mat4)
}

// Span is the fixed range a model owns in the registry's arrays.
// Mesh j of item i lives in instance slot FirstInstance + j*Items + i.
type Span struct {
	FirstCommand int
	Meshes       int
	Items        int

	FirstInstance int
	FirstBone     int
	BonesPerItem  int
}

// Instances returns the number of instance slots the model owns.
func (s Span) Instances() int { return s.Meshes * s.Items }

// Slot returns the instance slot of mesh for item.
func (s Span) Slot(mesh, item int) int {
	return s.FirstInstance + mesh*s.Items + item
}

// BoneOffset returns the first bone matrix of item.
func (s Span) BoneOffset(item int) int {
	return s.FirstBone + s.BonesPerItem*item
}

// DrawCommand is the layout of one indirect indexed draw.
type DrawCommand struct {
	Count         uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	BaseInstance  uint32
}

// ViolationHandler receives caller bugs found at draw time. The default logs
// the error and terminates the process.
type ViolationHandler func(err error)

// Programs are the GPU programs the registry draws with. The caller owns them.
type Programs struct {
	Lit       *gpu.Program
	Depth     *gpu.Program
	DepthCube *gpu.Program
}

// Options configures a Registry.
type Options struct {
	Programs    Programs
	OnViolation ViolationHandler
}

// Stats summarizes the registry contents.
type Stats struct {
	Models       int
	Commands     int
	Vertices     int
	Indices      int
	Triangles    int
	Instances    int
	BoneMatrices int
	Textures     int
}

type submission struct {
	model Model
	span  Span

	vertices, indices, bound int
}

type buffers struct {
	vertices, indices, commands *gpu.Buffer

	modelMatrices, boneMatrices, boneOffsets, animated *gpu.Buffer
	transforms, clipPlanes, materials, handles         *gpu.Buffer

	vao *gpu.VertexArray
}

func (b *buffers) close() {
	b.vao.Close()
	for _, buf := range []*gpu.Buffer{
		b.vertices, b.indices, b.commands,
		b.modelMatrices, b.boneMatrices, b.boneOffsets, b.animated,
		b.transforms, b.clipPlanes, b.materials, b.handles,
	} {
		buf.Close()
	}
}

// Registry owns every batched mesh and instance. It is not safe for concurrent use.
type Registry struct {
	dev         gpu.Device
	textures    *texture.Registry
	programs    Programs
	onViolation ViolationHandler
	log         *zap.Logger

	vertices   []Vertex
	indices    []uint32
	commands   []DrawCommand
	meshBounds []geom.AABB

	// Per instance slot.
	modelMatrices []mgl32.Mat4
	boneOffsets   []uint32
	hasBone       []uint32
	animated      []uint32
	transforms    []mgl32.Mat4
	clipPlanes    []mgl32.Vec4
	materials     []Material
	instanceMesh  []int

	boneMatrices []mgl32.Mat4
	numBones     int

	bound      []*texture.Texture
	boundIndex map[*texture.Texture]int32
	handles    []uint64

	models  map[Model]Span
	order   []Model
	current *submission

	prepared bool
	gpu      buffers

	// clipping is set when an item of the last draw carries a clip plane.
	clipping bool
}

// NewRegistry creates an empty registry. textures must be the registry the
// submitted meshes loaded their textures from.
func NewRegistry(dev gpu.Device, textures *texture.Registry, opts Options) *Registry {
	r := &Registry{
		dev:         dev,
		textures:    textures,
		programs:    opts.Programs,
		onViolation: opts.OnViolation,
		log:         logger.Named("batch"),
		boundIndex:  make(map[*texture.Texture]int32),
		models:      make(map[Model]Span),
	}
	if r.onViolation == nil {
		r.onViolation = func(err error) {
			logger.Fatal("render target violation", zap.Error(err))
		}
	}
	return r
}

// BeginSubmission opens the submission of model with items instances and
// bones bone matrices per instance.
func (r *Registry) BeginSubmission(model Model, items, bones int) error {
	switch {
	case r.prepared:
		return ErrAlreadyPrepared
	case r.current != nil:
		return ErrSubmissionOpen
	case model == nil:
		return ErrNilModel
	case items <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidItemCount, items)
	case bones < 0:
		return fmt.Errorf("%w: %d", ErrInvalidBoneCount, bones)
	}
	if _, ok := r.models[model]; ok {
		return ErrModelRegistered
	}

	r.current = &submission{
		model: model,
		span: Span{
			FirstCommand:  len(r.commands),
			Items:         items,
			FirstInstance: len(r.modelMatrices),
			FirstBone:     r.numBones,
			BonesPerItem:  bones,
		},
		vertices: len(r.vertices),
		indices:  len(r.indices),
		bound:    len(r.bound),
	}
	return nil
}

// CancelSubmission drops everything received since BeginSubmission.
func (r *Registry) CancelSubmission() {
	sub := r.current
	if sub == nil {
		return
	}
	r.current = nil

	for _, t := range r.bound[sub.bound:] {
		delete(r.boundIndex, t)
	}
	r.bound = r.bound[:sub.bound]
	r.handles = r.handles[:sub.bound]

	r.vertices = r.vertices[:sub.vertices]
	r.indices = r.indices[:sub.indices]
	r.commands = r.commands[:sub.span.FirstCommand]
	r.meshBounds = r.meshBounds[:sub.span.FirstCommand]

	n := sub.span.FirstInstance
	r.modelMatrices = r.modelMatrices[:n]
	r.boneOffsets = r.boneOffsets[:n]
	r.hasBone = r.hasBone[:n]
	r.animated = r.animated[:n]
	r.transforms = r.transforms[:n]
	r.clipPlanes = r.clipPlanes[:n]
	r.materials = r.materials[:n]
	r.instanceMesh = r.instanceMesh[:n]
}

// Receive appends one mesh of the model being submitted and emits its draw command.
func (r *Registry) Receive(mesh *Mesh) error {
	if r.current == nil {
		return ErrNotSubmitting
	}
	if len(mesh.Indices) == 0 || len(mesh.Indices)%3 != 0 {
		return fmt.Errorf("mesh %q with %d indices: %w", mesh.Name, len(mesh.Indices), ErrEmptyMesh)
	}
	for _, idx := range mesh.Indices {
		if int(idx) >= len(mesh.Vertices) {
			return fmt.Errorf("mesh %q: index %d of %d vertices: %w", mesh.Name, idx, len(mesh.Vertices), ErrIndexOutOfRange)
		}
	}
	material, err := r.material(mesh)
	if err != nil {
		return fmt.Errorf("mesh %q: %w", mesh.Name, err)
	}

	span := &r.current.span
	meshIndex := len(r.commands)
	r.commands = append(r.commands, DrawCommand{
		Count:         uint32(len(mesh.Indices)),
		InstanceCount: uint32(span.Items),
		FirstIndex:    uint32(len(r.indices)),
		BaseVertex:    int32(len(r.vertices)),
		BaseInstance:  uint32(span.Slot(span.Meshes, 0)),
	})
	r.indices = append(r.indices, mesh.Indices...)
	r.vertices = append(r.vertices, mesh.Vertices...)
	r.meshBounds = append(r.meshBounds, mesh.Bounds())

	transform := mesh.Transform
	if transform == (mgl32.Mat4{}) {
		transform = mgl32.Ident4()
	}
	var hasBone uint32
	if mesh.HasBone {
		hasBone = 1
	}
	for i := 0; i < span.Items; i++ {
		r.modelMatrices = append(r.modelMatrices, mgl32.Ident4())
		r.boneOffsets = append(r.boneOffsets, uint32(span.BoneOffset(i)))
		r.hasBone = append(r.hasBone, hasBone)
		r.animated = append(r.animated, 0)
		r.transforms = append(r.transforms, transform)
		r.clipPlanes = append(r.clipPlanes, mgl32.Vec4{})
		r.materials = append(r.materials, material)
		r.instanceMesh = append(r.instanceMesh, meshIndex)
	}
	span.Meshes++
	return nil
}

// material packs a mesh's material and resolves its textures to handle indices.
func (r *Registry) material(mesh *Mesh) (Material, error) {
	p := mesh.Material
	m := Material{
		Ambient:   vec4(p.Ambient),
		Diffuse:   vec4(p.Diffuse),
		Specular:  vec4(p.Specular),
		Emissive:  vec4(p.Emissive),
		Albedo:    vec4(p.Albedo),
		Emission:  vec4(p.Emission),
		Shininess: p.Shininess,
		Metallic:  p.Metallic,
		Roughness: p.Roughness,
	}
	for slot, b := range mesh.Textures {
		if !b.Enabled {
			m.Textures[slot] = -1
			continue
		}
		if b.Texture == nil {
			return m, fmt.Errorf("%s: %w", TextureSlot(slot), ErrMissingTexture)
		}
		m.Textures[slot] = r.textureIndex(b.Texture)
	}

	metal, rough := mesh.Textures[SlotMetalness], mesh.Textures[SlotDiffuseRoughness]
	if metal.Enabled && rough.Enabled && metal.Texture == rough.Texture {
		m.BindMetalnessAndDiffuseRoughness = 1
	}
	return m, nil
}

// textureIndex returns the position of t in the handle buffer, adding it once.
func (r *Registry) textureIndex(t *texture.Texture) int32 {
	if idx, ok := r.boundIndex[t]; ok {
		return idx
	}
	idx := int32(len(r.bound))
	r.bound = append(r.bound, t)
	r.handles = append(r.handles, t.Handle())
	r.boundIndex[t] = idx
	return idx
}

// EndSubmission closes the current submission and returns the model's span.
func (r *Registry) EndSubmission() (Span, error) {
	if r.current == nil {
		return Span{}, ErrNotSubmitting
	}
	sub := r.current
	r.current = nil

	r.numBones += sub.span.BonesPerItem * sub.span.Items
	r.models[sub.model] = sub.span
	r.order = append(r.order, sub.model)

	r.log.Debug("model submitted",
		zap.Int("meshes", sub.span.Meshes),
		zap.Int("items", sub.span.Items),
		zap.Int("first_instance", sub.span.FirstInstance),
		zap.Int("first_bone", sub.span.FirstBone))
	return sub.span, nil
}

// PrepareForDraw uploads every submitted mesh and instance and makes all
// referenced textures resident. It must be called exactly once.
func (r *Registry) PrepareForDraw() error {
	if r.prepared {
		return ErrAlreadyPrepared
	}
	if r.current != nil {
		return ErrSubmissionOpen
	}

	var indexTotal uint32
	for _, c := range r.commands {
		indexTotal += c.Count
	}
	if int(indexTotal) != len(r.indices) {
		return fmt.Errorf("commands cover %d of %d indices", indexTotal, len(r.indices))
	}

	r.boneMatrices = make([]mgl32.Mat4, r.numBones)
	for i := range r.boneMatrices {
		r.boneMatrices[i] = mgl32.Ident4()
	}

	if err := r.upload(); err != nil {
		r.gpu.close()
		r.gpu = buffers{}
		return fmt.Errorf("preparing batch: %w", err)
	}

	for _, t := range r.bound {
		r.textures.MakeResident(t)
	}
	r.prepared = true

	s := r.Stats()
	r.log.Info("batch prepared",
		zap.Int("models", s.Models),
		zap.Int("commands", s.Commands),
		zap.Int("triangles", s.Triangles),
		zap.Int("instances", s.Instances),
		zap.Int("bone_matrices", s.BoneMatrices),
		zap.Int("textures", s.Textures))
	return nil
}

func (r *Registry) upload() error {
	var err error
	b := &r.gpu
	if b.vertices, err = gpu.NewBufferFrom(r.dev, r.vertices); err != nil {
		return err
	}
	if b.indices, err = gpu.NewBufferFrom(r.dev, r.indices); err != nil {
		return err
	}
	if b.commands, err = gpu.NewBufferFrom(r.dev, r.commands); err != nil {
		return err
	}
	if b.modelMatrices, err = gpu.NewBufferFrom(r.dev, r.modelMatrices); err != nil {
		return err
	}
	if b.boneMatrices, err = gpu.NewBufferFrom(r.dev, r.boneMatrices); err != nil {
		return err
	}
	if b.boneOffsets, err = gpu.NewBufferFrom(r.dev, r.boneOffsets); err != nil {
		return err
	}
	if b.animated, err = gpu.NewBufferFrom(r.dev, r.animated); err != nil {
		return err
	}
	if b.transforms, err = gpu.NewBufferFrom(r.dev, r.transforms); err != nil {
		return err
	}
	if b.clipPlanes, err = gpu.NewBufferFrom(r.dev, r.clipPlanes); err != nil {
		return err
	}
	if b.materials, err = gpu.NewBufferFrom(r.dev, r.materials); err != nil {
		return err
	}
	if b.handles, err = gpu.NewBufferFrom(r.dev, r.handles); err != nil {
		return err
	}
	layout := vertexLayout(b.vertices.ID(), b.indices.ID(), b.modelMatrices.ID())
	if b.vao, err = gpu.NewVertexArray(r.dev, layout); err != nil {
		return err
	}
	return nil
}

// Prepared reports whether PrepareForDraw has succeeded.
func (r *Registry) Prepared() bool { return r.prepared }

// Span returns the range owned by model.
func (r *Registry) Span(model Model) (Span, bool) {
	s, ok := r.models[model]
	return s, ok
}

// Models returns the registered models in submission order.
func (r *Registry) Models() []Model {
	return append([]Model(nil), r.order...)
}

// Commands returns a copy of the draw commands.
func (r *Registry) Commands() []DrawCommand {
	return append([]DrawCommand(nil), r.commands...)
}

// NumIndices returns the length of the shared index array.
func (r *Registry) NumIndices() int { return len(r.indices) }

// MeshBounds returns the local bounds of the mesh behind each draw command.
func (r *Registry) MeshBounds() []geom.AABB {
	return append([]geom.AABB(nil), r.meshBounds...)
}

// InstanceBounds returns the world bounds of every instance slot as of the
// last draw. Animated slots skip the mesh transform like the vertex program
// does; their bounds are the bind pose, not the posed skeleton.
func (r *Registry) InstanceBounds() []geom.AABB {
	out := make([]geom.AABB, len(r.instanceMesh))
	for slot, mesh := range r.instanceMesh {
		m := r.modelMatrices[slot]
		if r.animated[slot] == 0 {
			m = m.Mul4(r.transforms[slot])
		}
		out[slot] = r.meshBounds[mesh].Transform(m)
	}
	return out
}

// Stats summarizes the registry contents.
func (r *Registry) Stats() Stats {
	return Stats{
		Models:       len(r.models),
		Commands:     len(r.commands),
		Vertices:     len(r.vertices),
		Indices:      len(r.indices),
		Triangles:    len(r.indices) / 3,
		Instances:    len(r.modelMatrices),
		BoneMatrices: r.numBones,
		Textures:     len(r.bound),
	}
}

// Close releases the GPU buffers. Textures stay owned by the texture registry.
func (r *Registry) Close() {
	r.gpu.close()
	r.gpu = buffers{}
	r.prepared = false
}
