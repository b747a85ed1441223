package main

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/Faultbox/midgard-batch/internal/assets"
	"github.com/Faultbox/midgard-batch/internal/engine/batch"
	"github.com/Faultbox/midgard-batch/internal/engine/gpu"
	"github.com/Faultbox/midgard-batch/internal/engine/model"
	"github.com/Faultbox/midgard-batch/internal/engine/shader"
	"github.com/Faultbox/midgard-batch/internal/engine/texture"
)

// Options selects the models to submit and how.
type Options struct {
	Paths       []string
	Items       int
	MaxVertices int
}

// Report is a prepared registry on a recording device.
type Report struct {
	Paths  []string
	Scenes []*assets.Scene
	Models []*model.Model

	dev      *gpu.Recorder
	textures *texture.Registry
	programs batch.Programs
	reg      *batch.Registry
	assets   *assets.Manager
}

// Submit loads every path, submits it with opts.Items instances and
// prepares the registry.
func Submit(opts Options) (*Report, error) {
	r := &Report{
		Paths:  opts.Paths,
		dev:    gpu.NewRecorder(),
		assets: assets.NewManager(),
	}
	r.textures = texture.NewRegistry(r.dev)

	var err error
	r.programs, err = shader.Compile(r.dev)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.reg = batch.NewRegistry(r.dev, r.textures, batch.Options{Programs: r.programs})

	for _, path := range opts.Paths {
		scene, err := r.assets.Load(path)
		if err != nil {
			r.Close()
			return nil, err
		}
		m, err := model.Load(scene, r.reg, r.textures, model.Options{
			Items:              opts.Items,
			MaxVerticesPerMesh: opts.MaxVertices,
		})
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		r.Scenes = append(r.Scenes, scene)
		r.Models = append(r.Models, m)
	}

	if err := r.reg.PrepareForDraw(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the registry and everything loaded into it.
func (r *Report) Close() {
	for _, m := range r.Models {
		m.Close()
	}
	r.Models = nil
	if r.reg != nil {
		r.reg.Close()
		r.reg = nil
	}
	shader.Close(r.programs)
	r.programs = batch.Programs{}
	r.textures.Close()
	r.assets.Close()
}

// WriteInfo prints per-model scene contents, spans and registry totals.
func WriteInfo(r *Report, w io.Writer) error {
	for i, m := range r.Models {
		st := r.Scenes[i].Stats()
		span, _ := r.reg.Span(m)
		b := m.Bounds()

		fmt.Fprintf(w, "Model:      %s (%s)\n", m.Name, filepath.Base(r.Paths[i]))
		fmt.Fprintf(w, "Meshes:     %d imported, %d records\n", st.Meshes, m.NumMeshes())
		fmt.Fprintf(w, "Geometry:   %d vertices, %d triangles\n", st.Vertices, st.Triangles)
		fmt.Fprintf(w, "Materials:  %d (%d images)\n", st.Materials, st.Images)
		fmt.Fprintf(w, "Skeleton:   %d bones, %d animations\n", m.NumBones(), m.NumAnimations())
		fmt.Fprintf(w, "Bounds:     (%.3f, %.3f, %.3f) - (%.3f, %.3f, %.3f)\n",
			b.Min[0], b.Min[1], b.Min[2], b.Max[0], b.Max[1], b.Max[2])
		fmt.Fprintf(w, "Commands:   [%d, %d)\n", span.FirstCommand, span.FirstCommand+span.Meshes)
		fmt.Fprintf(w, "Instances:  [%d, %d) x%d items\n", span.FirstInstance, span.FirstInstance+span.Instances(), span.Items)
		fmt.Fprintf(w, "Bones:      [%d, %d)\n", span.FirstBone, span.FirstBone+span.BonesPerItem*span.Items)
		fmt.Fprintln(w)
	}

	st := r.reg.Stats()
	fmt.Fprintln(w, "Registry:")
	fmt.Fprintf(w, "  Models:        %d\n", st.Models)
	fmt.Fprintf(w, "  Commands:      %d\n", st.Commands)
	fmt.Fprintf(w, "  Vertices:      %d\n", st.Vertices)
	fmt.Fprintf(w, "  Indices:       %d\n", st.Indices)
	fmt.Fprintf(w, "  Triangles:     %d\n", st.Triangles)
	fmt.Fprintf(w, "  Instances:     %d\n", st.Instances)
	fmt.Fprintf(w, "  Bone matrices: %d\n", st.BoneMatrices)
	_, err := fmt.Fprintf(w, "  Textures:      %d\n", st.Textures)
	return err
}

// WriteCommands prints one row per indirect draw command.
func WriteCommands(r *Report, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tMODEL\tMESH\tCOUNT\tINSTANCES\tFIRST INDEX\tBASE VERTEX\tBASE INSTANCE")

	commands := r.reg.Commands()
	for _, m := range r.Models {
		span, ok := r.reg.Span(m)
		if !ok {
			continue
		}
		names := m.MeshNames()
		for j := 0; j < span.Meshes; j++ {
			idx := span.FirstCommand + j
			c := commands[idx]
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
				idx, m.Name, names[j], c.Count, c.InstanceCount, c.FirstIndex, c.BaseVertex, c.BaseInstance)
		}
	}
	return tw.Flush()
}

// WriteBones prints the bone names and animations of every model.
func WriteBones(r *Report, w io.Writer) error {
	for _, m := range r.Models {
		fmt.Fprintf(w, "%s: %d bones\n", m.Name, m.NumBones())
		for i, name := range m.BoneNames() {
			fmt.Fprintf(w, "  %3d  %s\n", i, name)
		}
		fmt.Fprintf(w, "%s: %d animations\n", m.Name, m.NumAnimations())
		for i := 0; i < m.NumAnimations(); i++ {
			fmt.Fprintf(w, "  %3d  %-24s %.3fs\n", i, m.AnimationName(i), m.AnimationDurationInSeconds(i))
		}
	}
	return nil
}
