package assets

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-batch/internal/logger"
)

// RootName names the synthetic node that parents every scene root.
const RootName = "__root"

// maxJointSets bounds the JOINTS_n/WEIGHTS_n pairs read per primitive.
const maxJointSets = 3

var (
	ErrNoPositions       = errors.New("primitive has no POSITION attribute")
	ErrNotTriangles      = errors.New("primitive is not a triangle list")
	ErrUnsupportedFormat = errors.New("unsupported accessor format")
)

// LoadGLTF reads a .gltf or .glb file.
func LoadGLTF(path string) (*Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	s, err := FromDocument(doc, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("importing %s: %w", path, err)
	}
	s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return s, nil
}

// FromDocument converts a parsed glTF document. dir resolves relative image URIs.
func FromDocument(doc *gltf.Document, dir string) (*Scene, error) {
	s := &Scene{}
	log := logger.Named("assets")

	images, err := readImages(doc, dir)
	if err != nil {
		return nil, err
	}
	s.Images = images
	s.Materials = readMaterials(doc)

	// One scene mesh per primitive; primMeshes maps glTF meshes to them.
	primMeshes := make([][]int, len(doc.Meshes))
	for mi, gm := range doc.Meshes {
		for pi, prim := range gm.Primitives {
			m, err := readPrimitive(doc, prim)
			if err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}
			m.Name = gm.Name
			if len(gm.Primitives) > 1 {
				m.Name = fmt.Sprintf("%s_p%d", gm.Name, pi)
			}
			primMeshes[mi] = append(primMeshes[mi], len(s.Meshes))
			s.Meshes = append(s.Meshes, *m)
		}
	}

	s.Nodes = make([]Node, len(doc.Nodes), len(doc.Nodes)+1)
	for i, gn := range doc.Nodes {
		n := Node{Name: nodeName(doc, i), Parent: -1, Transform: nodeTransform(gn)}
		if gn.Mesh != nil && *gn.Mesh < len(primMeshes) {
			n.Meshes = append(n.Meshes, primMeshes[*gn.Mesh]...)
		}
		s.Nodes[i] = n
	}
	for i, gn := range doc.Nodes {
		for _, c := range gn.Children {
			if c >= len(s.Nodes) || s.Nodes[c].Parent >= 0 {
				return nil, fmt.Errorf("node %d: invalid child %d", i, c)
			}
			s.Nodes[i].Children = append(s.Nodes[i].Children, c)
			s.Nodes[c].Parent = i
		}
	}

	root := Node{Name: RootName, Parent: -1, Transform: mgl32.Ident4()}
	s.Root = len(s.Nodes)
	for _, r := range sceneRoots(doc, s.Nodes) {
		s.Nodes[r].Parent = s.Root
		root.Children = append(root.Children, r)
	}
	s.Nodes = append(s.Nodes, root)

	if err := readSkins(doc, s, primMeshes); err != nil {
		return nil, err
	}
	if s.Animations, err = readAnimations(doc); err != nil {
		return nil, err
	}

	st := s.Stats()
	log.Debug("gltf imported",
		zap.Int("meshes", st.Meshes),
		zap.Int("triangles", st.Triangles),
		zap.Int("bones", st.Bones),
		zap.Int("animations", st.Animations))
	return s, nil
}

func nodeName(doc *gltf.Document, i int) string {
	if name := doc.Nodes[i].Name; name != "" {
		return name
	}
	return fmt.Sprintf("node_%d", i)
}

func nodeTransform(gn *gltf.Node) mgl32.Mat4 {
	if m := gn.MatrixOrDefault(); m != gltf.DefaultMatrix {
		var out mgl32.Mat4
		for i, v := range m {
			out[i] = float32(v)
		}
		return out
	}
	t := gn.TranslationOrDefault()
	r := gn.RotationOrDefault()
	sc := gn.ScaleOrDefault()
	q := mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}
	return mgl32.Translate3D(float32(t[0]), float32(t[1]), float32(t[2])).
		Mul4(q.Mat4()).
		Mul4(mgl32.Scale3D(float32(sc[0]), float32(sc[1]), float32(sc[2])))
}

// sceneRoots returns the default scene's roots, or every parentless node.
func sceneRoots(doc *gltf.Document, nodes []Node) []int {
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		return doc.Scenes[*doc.Scene].Nodes
	}
	var roots []int
	for i := range nodes {
		if nodes[i].Parent < 0 {
			roots = append(roots, i)
		}
	}
	return roots
}

func readImages(doc *gltf.Document, dir string) ([]Image, error) {
	images := make([]Image, len(doc.Images))
	for i, img := range doc.Images {
		key := img.Name
		if key == "" {
			key = fmt.Sprintf("image_%d", i)
		}
		switch {
		case img.BufferView != nil:
			raw, err := modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
			if err != nil {
				return nil, fmt.Errorf("image %d: %w", i, err)
			}
			images[i] = Image{Key: key, Data: raw}
		case img.IsEmbeddedResource():
			raw, err := img.MarshalData()
			if err != nil {
				return nil, fmt.Errorf("image %d: %w", i, err)
			}
			images[i] = Image{Key: key, Data: raw}
		default:
			images[i] = Image{Key: key, Path: filepath.Join(dir, img.URI)}
		}
	}
	return images, nil
}

// textureImage resolves a glTF texture index to an image index, -1 if absent.
func textureImage(doc *gltf.Document, index int) int {
	if index < 0 || index >= len(doc.Textures) || doc.Textures[index].Source == nil {
		return -1
	}
	return *doc.Textures[index].Source
}

func readMaterials(doc *gltf.Document) []Material {
	out := make([]Material, len(doc.Materials))
	for i, gm := range doc.Materials {
		m := Material{
			Name:      gm.Name,
			Diffuse:   mgl32.Vec3{1, 1, 1},
			Albedo:    mgl32.Vec3{1, 1, 1},
			Shininess: 1,
			Roughness: 1,
			Metallic:  1,
			Textures:  make(map[TextureKind]TextureRef),
		}
		set := func(kind TextureKind, texture int) {
			if img := textureImage(doc, texture); img >= 0 {
				m.Textures[kind] = TextureRef{Image: img}
			}
		}

		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			cf := pbr.BaseColorFactorOrDefault()
			m.Albedo = mgl32.Vec3{float32(cf[0]), float32(cf[1]), float32(cf[2])}
			m.Diffuse = m.Albedo
			m.Metallic = float32(pbr.MetallicFactorOrDefault())
			m.Roughness = float32(pbr.RoughnessFactorOrDefault())
			m.Shininess = (1-m.Roughness)*(1-m.Roughness)*128 + 1
			m.Specular = mgl32.Vec3{1, 1, 1}.Mul(m.Metallic * 0.7)

			if pbr.BaseColorTexture != nil {
				set(TextureDiffuse, pbr.BaseColorTexture.Index)
			}
			if pbr.MetallicRoughnessTexture != nil {
				set(TextureMetalness, pbr.MetallicRoughnessTexture.Index)
				set(TextureDiffuseRoughness, pbr.MetallicRoughnessTexture.Index)
			}
		}
		if gm.NormalTexture != nil && gm.NormalTexture.Index != nil {
			set(TextureNormals, *gm.NormalTexture.Index)
		}
		if gm.OcclusionTexture != nil && gm.OcclusionTexture.Index != nil {
			set(TextureAmbientOcclusion, *gm.OcclusionTexture.Index)
		}
		e := gm.EmissiveFactor
		m.Emission = mgl32.Vec3{float32(e[0]), float32(e[1]), float32(e[2])}
		m.Emissive = m.Emission
		out[i] = m
	}
	return out
}

func readPrimitive(doc *gltf.Document, prim *gltf.Primitive) (*Mesh, error) {
	if prim.Mode != gltf.PrimitiveTriangles {
		return nil, fmt.Errorf("mode %v: %w", prim.Mode, ErrNotTriangles)
	}
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, ErrNoPositions
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	m := &Mesh{Material: -1}
	if prim.Material != nil {
		m.Material = *prim.Material
	}
	m.Positions = make([]mgl32.Vec3, len(positions))
	for i, p := range positions {
		m.Positions[i] = p
	}

	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		normals, err := modeler.ReadNormal(doc, doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("normals: %w", err)
		}
		if len(normals) == len(positions) {
			m.Normals = make([]mgl32.Vec3, len(normals))
			for i, n := range normals {
				m.Normals[i] = n
			}
		}
	}
	if idx, ok := prim.Attributes[gltf.TANGENT]; ok {
		tangents, err := modeler.ReadTangent(doc, doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("tangents: %w", err)
		}
		if len(tangents) == len(positions) {
			m.Tangents = make([]mgl32.Vec3, len(tangents))
			for i, t := range tangents {
				m.Tangents[i] = mgl32.Vec3{t[0], t[1], t[2]}
			}
		}
	}
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		uvs, err := modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("uvs: %w", err)
		}
		if len(uvs) == len(positions) {
			m.UVs = make([]mgl32.Vec2, len(uvs))
			for i, uv := range uvs {
				m.UVs[i] = uv
			}
		}
	}

	if prim.Indices != nil {
		if m.Indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
	} else {
		m.Indices = make([]uint32, len(positions))
		for i := range m.Indices {
			m.Indices[i] = uint32(i)
		}
	}
	return m, nil
}

// jointWeights returns, for one primitive, the total weight of each
// (vertex, joint slot) pair across every JOINTS_n/WEIGHTS_n set.
func jointWeights(doc *gltf.Document, prim *gltf.Primitive) (map[int][]BoneWeight, error) {
	out := make(map[int][]BoneWeight)
	for set := 0; set < maxJointSets; set++ {
		jIdx, ok := prim.Attributes[fmt.Sprintf("JOINTS_%d", set)]
		if !ok {
			break
		}
		wIdx, ok := prim.Attributes[fmt.Sprintf("WEIGHTS_%d", set)]
		if !ok {
			return nil, fmt.Errorf("JOINTS_%d without WEIGHTS_%d", set, set)
		}
		joints, err := modeler.ReadJoints(doc, doc.Accessors[jIdx], nil)
		if err != nil {
			return nil, fmt.Errorf("joints: %w", err)
		}
		weights, err := modeler.ReadWeights(doc, doc.Accessors[wIdx], nil)
		if err != nil {
			return nil, fmt.Errorf("weights: %w", err)
		}
		for v := range joints {
			if v >= len(weights) {
				break
			}
			for k := 0; k < 4; k++ {
				if weights[v][k] == 0 {
					continue
				}
				j := int(joints[v][k])
				out[j] = append(out[j], BoneWeight{Vertex: uint32(v), Weight: weights[v][k]})
			}
		}
	}
	return out, nil
}

// readSkins attaches bones to every mesh instantiated by a skinned node.
// A mesh shared by several skinned nodes takes the first skin.
func readSkins(doc *gltf.Document, s *Scene, primMeshes [][]int) error {
	skinned := make(map[int]bool)
	for ni, gn := range doc.Nodes {
		if gn.Skin == nil || gn.Mesh == nil || skinned[*gn.Mesh] {
			continue
		}
		skinned[*gn.Mesh] = true
		skin := doc.Skins[*gn.Skin]

		inverse := make([]mgl32.Mat4, len(skin.Joints))
		for i := range inverse {
			inverse[i] = mgl32.Ident4()
		}
		if skin.InverseBindMatrices != nil {
			data, err := modeler.ReadAccessor(doc, doc.Accessors[*skin.InverseBindMatrices], nil)
			if err != nil {
				return fmt.Errorf("skin %d: %w", *gn.Skin, err)
			}
			mats, ok := data.([][4][4]float32)
			if !ok {
				return fmt.Errorf("skin %d inverse bind matrices %T: %w", *gn.Skin, data, ErrUnsupportedFormat)
			}
			for i := range inverse {
				if i < len(mats) {
					inverse[i] = mat4(mats[i])
				}
			}
		}

		for pi, prim := range doc.Meshes[*gn.Mesh].Primitives {
			weights, err := jointWeights(doc, prim)
			if err != nil {
				return fmt.Errorf("node %d primitive %d: %w", ni, pi, err)
			}
			mesh := &s.Meshes[primMeshes[*gn.Mesh][pi]]
			for j, node := range skin.Joints {
				if len(weights[j]) == 0 {
					continue
				}
				mesh.Bones = append(mesh.Bones, Bone{
					Name:    s.Nodes[node].Name,
					Offset:  inverse[j],
					Weights: weights[j],
				})
			}
		}
	}
	return nil
}

func mat4(m [4][4]float32) mgl32.Mat4 {
	var out mgl32.Mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			out[c*4+r] = m[c][r]
		}
	}
	return out
}

func readAnimations(doc *gltf.Document) ([]Animation, error) {
	out := make([]Animation, 0, len(doc.Animations))
	for ai, ga := range doc.Animations {
		a := Animation{Name: ga.Name, TicksPerSecond: 1}
		if a.Name == "" {
			a.Name = fmt.Sprintf("animation_%d", ai)
		}
		byNode := make(map[string]int)

		for ci, ch := range ga.Channels {
			if ch.Target.Node == nil || ch.Sampler >= len(ga.Samplers) {
				continue
			}
			sampler := ga.Samplers[ch.Sampler]
			times, values, err := readSampler(doc, sampler)
			if err != nil {
				return nil, fmt.Errorf("animation %d channel %d: %w", ai, ci, err)
			}

			name := nodeName(doc, *ch.Target.Node)
			idx, ok := byNode[name]
			if !ok {
				idx = len(a.Channels)
				byNode[name] = idx
				a.Channels = append(a.Channels, Channel{Node: name})
			}
			c := &a.Channels[idx]

			switch ch.Target.Path {
			case gltf.TRSTranslation, gltf.TRSScale:
				vs, ok := values.([][3]float32)
				if !ok {
					return nil, fmt.Errorf("animation %d channel %d %T: %w", ai, ci, values, ErrUnsupportedFormat)
				}
				keys := make([]VectorKey, 0, len(times))
				for i, t := range times {
					keys = append(keys, VectorKey{Time: float64(t), Value: vs[i]})
				}
				if ch.Target.Path == gltf.TRSTranslation {
					c.Translations = keys
				} else {
					c.Scales = keys
				}
			case gltf.TRSRotation:
				qs, ok := values.([][4]float32)
				if !ok {
					return nil, fmt.Errorf("animation %d channel %d %T: %w", ai, ci, values, ErrUnsupportedFormat)
				}
				keys := make([]QuatKey, 0, len(times))
				for i, t := range times {
					q := qs[i]
					keys = append(keys, QuatKey{Time: float64(t), Value: mgl32.Quat{W: q[3], V: mgl32.Vec3{q[0], q[1], q[2]}}})
				}
				c.Rotations = keys
			default:
				continue
			}
			if n := len(times); n > 0 && float64(times[n-1]) > a.Duration {
				a.Duration = float64(times[n-1])
			}
		}
		out = append(out, a)
	}
	return out, nil
}

// readSampler returns key times and one output value per key. Cubic spline
// outputs keep only the value between the two tangents.
func readSampler(doc *gltf.Document, s *gltf.AnimationSampler) ([]float32, any, error) {
	in, err := modeler.ReadAccessor(doc, doc.Accessors[s.Input], nil)
	if err != nil {
		return nil, nil, err
	}
	times, ok := in.([]float32)
	if !ok {
		return nil, nil, fmt.Errorf("key times %T: %w", in, ErrUnsupportedFormat)
	}
	out, err := modeler.ReadAccessor(doc, doc.Accessors[s.Output], nil)
	if err != nil {
		return nil, nil, err
	}

	cubic := s.Interpolation == gltf.InterpolationCubicSpline
	switch v := out.(type) {
	case [][3]float32:
		v = pickKeys(v, len(times), cubic)
		return times[:len(v)], v, nil
	case [][4]float32:
		v = pickKeys(v, len(times), cubic)
		return times[:len(v)], v, nil
	default:
		return nil, nil, fmt.Errorf("key values %T: %w", out, ErrUnsupportedFormat)
	}
}

func pickKeys[T any](values []T, n int, cubic bool) []T {
	if cubic {
		out := make([]T, 0, n)
		for i := 0; i < n && 3*i+1 < len(values); i++ {
			out = append(out, values[3*i+1])
		}
		return out
	}
	if len(values) > n {
		return values[:n]
	}
	return values
}
