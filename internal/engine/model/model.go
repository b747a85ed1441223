package model

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-batch/internal/assets"
	"github.com/Faultbox/midgard-batch/internal/engine/batch"
	"github.com/Faultbox/midgard-batch/internal/engine/geom"
	"github.com/Faultbox/midgard-batch/internal/engine/texture"
	"github.com/Faultbox/midgard-batch/internal/logger"
)

// Model is a scene submitted to a batch registry. It keeps the hierarchy,
// bones and animations needed to pose its items; the registry owns the
// geometry.
type Model struct {
	Name string

	nodes      []node
	root       int
	animations []assets.Animation
	channels   map[channelKey]int

	namer   Namer
	offsets []mgl32.Mat4

	meshes []*batch.Mesh
	bounds geom.AABB
	span   batch.Span

	textures *texture.Registry
	owned    []*texture.Texture
}

// Load builds the mesh records of scene and submits them to reg with
// opts.Items instances. Textures are loaded through textures and released
// by Close.
func Load(scene *assets.Scene, reg *batch.Registry, textures *texture.Registry, opts Options) (*Model, error) {
	if scene == nil {
		return nil, ErrNilScene
	}
	if len(scene.Meshes) == 0 {
		return nil, fmt.Errorf("%s: %w", scene.Name, ErrNoMeshes)
	}
	if opts.Items <= 0 {
		opts.Items = 1
	}

	m := &Model{
		Name:       scene.Name,
		animations: scene.Animations,
		channels:   make(map[channelKey]int),
		bounds:     geom.EmptyAABB(),
		textures:   textures,
	}
	if err := m.build(scene, opts); err != nil {
		m.Close()
		return nil, fmt.Errorf("%s: %w", scene.Name, err)
	}
	if err := m.submit(reg, opts.Items); err != nil {
		m.Close()
		return nil, fmt.Errorf("%s: %w", scene.Name, err)
	}

	logger.Named("model").Info("model loaded",
		zap.String("name", m.Name),
		zap.Int("meshes", len(m.meshes)),
		zap.Int("bones", m.namer.Len()),
		zap.Int("animations", len(m.animations)),
		zap.Int("items", opts.Items))
	return m, nil
}

func (m *Model) build(scene *assets.Scene, opts Options) error {
	if scene.Root < 0 || scene.Root >= len(scene.Nodes) {
		return fmt.Errorf("root node %d of %d", scene.Root, len(scene.Nodes))
	}
	m.root = scene.Root
	m.nodes = make([]node, len(scene.Nodes))
	for i, n := range scene.Nodes {
		for _, c := range n.Children {
			if c < 0 || c >= len(scene.Nodes) {
				return fmt.Errorf("node %q: child %d of %d", n.Name, c, len(scene.Nodes))
			}
		}
		m.nodes[i] = node{name: n.Name, parent: n.Parent, children: n.Children, transform: n.Transform, bone: -1}
	}
	if err := m.checkTree(); err != nil {
		return err
	}
	for a := range scene.Animations {
		for c, ch := range scene.Animations[a].Channels {
			m.channels[channelKey{a, ch.Node}] = c
		}
	}

	images := m.loadImages(scene)

	built := make(map[int][]*batch.Mesh)
	global := m.globalTransforms()
	var visit func(idx int) error
	visit = func(idx int) error {
		for _, mi := range scene.Nodes[idx].Meshes {
			if mi < 0 || mi >= len(scene.Meshes) {
				return fmt.Errorf("node %q: mesh %d of %d", m.nodes[idx].name, mi, len(scene.Meshes))
			}
			records, ok := built[mi]
			if !ok {
				var err error
				if records, err = m.buildMesh(scene, &scene.Meshes[mi], images, opts); err != nil {
					return err
				}
				built[mi] = records
			}
			for _, rec := range records {
				inst := *rec
				inst.Transform = global[idx]
				m.meshes = append(m.meshes, &inst)
				m.bounds = m.bounds.Union(inst.Bounds().Transform(inst.Transform))
			}
		}
		for _, c := range m.nodes[idx].children {
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(m.root); err != nil {
		return err
	}
	if len(m.meshes) == 0 {
		return ErrNoMeshes
	}

	for i := range m.nodes {
		if id, ok := m.namer.Lookup(m.nodes[i].name); ok {
			m.nodes[i].bone = id
		}
	}
	return nil
}

// checkTree rejects hierarchies where a node is reachable twice from the root.
func (m *Model) checkTree() error {
	seen := make([]bool, len(m.nodes))
	stack := []int{m.root}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[idx] {
			return fmt.Errorf("node %q reached twice", m.nodes[idx].name)
		}
		seen[idx] = true
		stack = append(stack, m.nodes[idx].children...)
	}
	return nil
}

// loadImages loads every image referenced by a material. Images that fail
// to load are logged and left nil, which disables the slots using them.
func (m *Model) loadImages(scene *assets.Scene) []*texture.Texture {
	used := make(map[int]bool)
	for _, mat := range scene.Materials {
		for _, ref := range mat.Textures {
			used[ref.Image] = true
		}
	}

	images := make([]*texture.Texture, len(scene.Images))
	for i, img := range scene.Images {
		if !used[i] {
			continue
		}
		var (
			t   *texture.Texture
			err error
		)
		if img.Path != "" {
			t, err = m.textures.Load(img.Path)
		} else {
			t, err = m.textures.LoadBytes(scene.Name+"/"+img.Key, img.Data)
		}
		if err != nil {
			logger.Warn("texture not loaded", zap.String("model", scene.Name), zap.String("image", img.Key), zap.Error(err))
			continue
		}
		images[i] = t
		m.owned = append(m.owned, t)
	}
	return images
}

func (m *Model) submit(reg *batch.Registry, items int) error {
	if err := reg.BeginSubmission(m, items, m.namer.Len()); err != nil {
		return err
	}
	for _, mesh := range m.meshes {
		if err := reg.Receive(mesh); err != nil {
			reg.CancelSubmission()
			return err
		}
	}
	span, err := reg.EndSubmission()
	if err != nil {
		return err
	}
	m.span = span
	return nil
}

// Span returns the model's range in the batch registry.
func (m *Model) Span() batch.Span { return m.span }

// Bounds returns the rest pose bounds of every mesh.
func (m *Model) Bounds() geom.AABB { return m.bounds }

// NumMeshes returns the number of submitted mesh records.
func (m *Model) NumMeshes() int { return len(m.meshes) }

// MeshNames returns the name of every submitted mesh record, in command order.
func (m *Model) MeshNames() []string {
	names := make([]string, len(m.meshes))
	for i, mesh := range m.meshes {
		names[i] = mesh.Name
	}
	return names
}

// NumBones returns the number of distinct bones.
func (m *Model) NumBones() int { return m.namer.Len() }

// BoneNames returns the bone names in bone matrix order.
func (m *Model) BoneNames() []string { return m.namer.Names() }

// Close releases the model's textures. The registry keeps its copy of the geometry.
func (m *Model) Close() {
	for _, t := range m.owned {
		m.textures.Release(t)
	}
	m.owned = nil
}
