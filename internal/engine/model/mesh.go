package model

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-batch/internal/assets"
	"github.com/Faultbox/midgard-batch/internal/engine/batch"
	"github.com/Faultbox/midgard-batch/internal/engine/texture"
)

// slotKinds maps batch texture slots to the asset texture kinds feeding them.
var slotKinds = [batch.NumTextureSlots]assets.TextureKind{
	batch.SlotDiffuse:          assets.TextureDiffuse,
	batch.SlotAmbient:          assets.TextureAmbient,
	batch.SlotSpecular:         assets.TextureSpecular,
	batch.SlotNormals:          assets.TextureNormals,
	batch.SlotMetalness:        assets.TextureMetalness,
	batch.SlotDiffuseRoughness: assets.TextureDiffuseRoughness,
	batch.SlotAmbientOcclusion: assets.TextureAmbientOcclusion,
}

// buildMesh converts one scene mesh into batch records, split so that no
// record exceeds opts.MaxVerticesPerMesh vertices. Bones are named through
// m.namer and their offsets stored in m.offsets.
func (m *Model) buildMesh(scene *assets.Scene, src *assets.Mesh, images []*texture.Texture, opts Options) ([]*batch.Mesh, error) {
	if len(src.Indices) == 0 || len(src.Indices)%3 != 0 {
		return nil, fmt.Errorf("mesh %q: %d indices: %w", src.Name, len(src.Indices), batch.ErrEmptyMesh)
	}
	for _, idx := range src.Indices {
		if int(idx) >= len(src.Positions) {
			return nil, fmt.Errorf("mesh %q: index %d of %d vertices: %w", src.Name, idx, len(src.Positions), batch.ErrIndexOutOfRange)
		}
	}

	vertices := buildVertices(src, opts.FlipUV)

	hasBone := false
	for _, b := range src.Bones {
		id := m.namer.Name(b.Name)
		if id >= MaxBones {
			return nil, fmt.Errorf("mesh %q: bone %q is number %d of at most %d: %w", src.Name, b.Name, id+1, MaxBones, ErrTooManyBones)
		}
		for len(m.offsets) <= id {
			m.offsets = append(m.offsets, mgl32.Ident4())
		}
		m.offsets[id] = b.Offset
		for _, w := range b.Weights {
			if int(w.Vertex) >= len(vertices) {
				return nil, fmt.Errorf("mesh %q: bone %q weighs vertex %d of %d: %w", src.Name, b.Name, w.Vertex, len(vertices), batch.ErrIndexOutOfRange)
			}
			if err := vertices[w.Vertex].AddBone(int32(id), w.Weight); err != nil {
				return nil, fmt.Errorf("mesh %q vertex %d: %w", src.Name, w.Vertex, err)
			}
			hasBone = true
		}
	}

	proto := batch.Mesh{
		Name:     src.Name,
		Material: batch.DefaultMaterial(),
		HasBone:  hasBone,
	}
	if src.Material >= 0 && src.Material < len(scene.Materials) {
		mat := &scene.Materials[src.Material]
		proto.Material = batch.MaterialParams{
			Ambient:   mat.Ambient,
			Diffuse:   mat.Diffuse,
			Specular:  mat.Specular,
			Emissive:  mat.Emissive,
			Shininess: mat.Shininess,
			Albedo:    mat.Albedo,
			Metallic:  mat.Metallic,
			Roughness: mat.Roughness,
			Emission:  mat.Emission,
		}
		for slot, kind := range slotKinds {
			ref, ok := mat.Textures[kind]
			if !ok || ref.Image < 0 || ref.Image >= len(images) || images[ref.Image] == nil {
				continue
			}
			proto.Textures[slot] = batch.TextureBinding{
				Enabled:   true,
				Texture:   images[ref.Image],
				Op:        batch.TextureOp(ref.Op),
				Blend:     ref.Blend,
				BaseColor: ref.BaseColor,
			}
		}
	}

	var out []*batch.Mesh
	for i, part := range splitTriangles(vertices, src.Indices, opts.MaxVerticesPerMesh) {
		rec := proto
		rec.Vertices, rec.Indices = part.vertices, part.indices
		if i > 0 {
			rec.Name = fmt.Sprintf("%s#%d", src.Name, i)
		}
		out = append(out, &rec)
	}
	return out, nil
}

func buildVertices(src *assets.Mesh, flipUV bool) []batch.Vertex {
	normals := src.Normals
	if len(normals) != len(src.Positions) {
		normals = faceNormals(src.Positions, src.Indices)
	}
	var uvs []mgl32.Vec2
	if len(src.UVs) == len(src.Positions) {
		uvs = src.UVs
	}
	tangents := src.Tangents
	if len(tangents) != len(src.Positions) {
		tangents = computeTangents(src.Positions, normals, uvs, src.Indices)
	}

	vertices := make([]batch.Vertex, len(src.Positions))
	for i, p := range src.Positions {
		var uv mgl32.Vec2
		if uvs != nil {
			uv = uvs[i]
			if flipUV {
				uv[1] = 1 - uv[1]
			}
		}
		vertices[i] = batch.NewVertex(p, uv, normals[i], tangents[i])
	}
	return vertices
}

// faceNormals derives vertex normals from triangle normals and then smooths
// them across vertices sharing a position.
func faceNormals(positions []mgl32.Vec3, indices []uint32) []mgl32.Vec3 {
	normals := make([]mgl32.Vec3, len(positions))
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		// Area weighted: the cross product is left unnormalized.
		n := positions[b].Sub(positions[a]).Cross(positions[c].Sub(positions[a]))
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}
	smoothNormals(positions, normals)
	return normals
}

// smoothNormals averages normals at shared vertex positions.
func smoothNormals(positions, normals []mgl32.Vec3) {
	const epsilon float32 = 0.001

	// Group vertices by quantized position for O(n) lookup
	posMap := make(map[[3]int32][]int)
	for i, p := range positions {
		key := [3]int32{int32(p[0] / epsilon), int32(p[1] / epsilon), int32(p[2] / epsilon)}
		posMap[key] = append(posMap[key], i)
	}

	for _, idxs := range posMap {
		var sum mgl32.Vec3
		for _, idx := range idxs {
			sum = sum.Add(normals[idx])
		}
		avg := mgl32.Vec3{0, 1, 0}
		if sum.Len() > 1e-6 {
			avg = sum.Normalize()
		}
		for _, idx := range idxs {
			normals[idx] = avg
		}
	}
}

// computeTangents derives per-vertex tangents from UV gradients, falling
// back to any vector orthogonal to the normal.
func computeTangents(positions, normals []mgl32.Vec3, uvs []mgl32.Vec2, indices []uint32) []mgl32.Vec3 {
	acc := make([]mgl32.Vec3, len(positions))
	if uvs != nil {
		for t := 0; t+2 < len(indices); t += 3 {
			a, b, c := indices[t], indices[t+1], indices[t+2]
			e1, e2 := positions[b].Sub(positions[a]), positions[c].Sub(positions[a])
			d1, d2 := uvs[b].Sub(uvs[a]), uvs[c].Sub(uvs[a])
			det := d1[0]*d2[1] - d2[0]*d1[1]
			if det > -1e-8 && det < 1e-8 {
				continue
			}
			tan := e1.Mul(d2[1]).Sub(e2.Mul(d1[1])).Mul(1 / det)
			acc[a] = acc[a].Add(tan)
			acc[b] = acc[b].Add(tan)
			acc[c] = acc[c].Add(tan)
		}
	}

	out := make([]mgl32.Vec3, len(positions))
	for i, n := range normals {
		// Gram-Schmidt against the normal.
		t := acc[i].Sub(n.Mul(n.Dot(acc[i])))
		if t.Len() < 1e-6 {
			t = orthogonal(n)
		}
		out[i] = t.Normalize()
	}
	return out
}

func orthogonal(n mgl32.Vec3) mgl32.Vec3 {
	axis := mgl32.Vec3{1, 0, 0}
	if n[0] > 0.9 || n[0] < -0.9 {
		axis = mgl32.Vec3{0, 1, 0}
	}
	return axis.Sub(n.Mul(n.Dot(axis)))
}

type meshPart struct {
	vertices []batch.Vertex
	indices  []uint32
}

// splitTriangles partitions a triangle list into parts of at most
// maxVertices vertices each. Triangles keep their order.
func splitTriangles(vertices []batch.Vertex, indices []uint32, maxVertices int) []meshPart {
	if maxVertices <= 0 || len(vertices) <= maxVertices {
		return []meshPart{{vertices: vertices, indices: indices}}
	}
	if maxVertices < 3 {
		maxVertices = 3
	}

	var parts []meshPart
	var cur meshPart
	remap := make(map[uint32]uint32)
	for t := 0; t+2 < len(indices); t += 3 {
		tri := indices[t : t+3]
		fresh := 0
		for _, idx := range tri {
			if _, ok := remap[idx]; !ok {
				fresh++
			}
		}
		if len(cur.vertices)+fresh > maxVertices {
			parts = append(parts, cur)
			cur = meshPart{}
			remap = make(map[uint32]uint32)
		}
		for _, idx := range tri {
			local, ok := remap[idx]
			if !ok {
				local = uint32(len(cur.vertices))
				remap[idx] = local
				cur.vertices = append(cur.vertices, vertices[idx])
			}
			cur.indices = append(cur.indices, local)
		}
	}
	if len(cur.indices) > 0 {
		parts = append(parts, cur)
	}
	return parts
}
