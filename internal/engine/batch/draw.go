package batch

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-batch/internal/engine/camera"
	"github.com/Faultbox/midgard-batch/internal/engine/gpu"
	"github.com/Faultbox/midgard-batch/internal/engine/lighting"
)

var (
	ErrModelCountMismatch = errors.New("render targets must name every registered model")
	ErrUnknownModel       = errors.New("render target names an unregistered model")
	ErrDuplicateModel     = errors.New("render target names a model twice")
	ErrItemCountMismatch  = errors.New("render target item count differs from submission")
)

// Item places one instance of a model for this frame. AnimationID outside
// [0, NumAnimations) draws the bind pose.
type Item struct {
	AnimationID int
	Time        float64
	ModelMatrix mgl32.Mat4
	ClipPlane   mgl32.Vec4
}

// RenderTargetParameter carries the per-frame state of one registered model.
// Items must match the item count given at submission.
type RenderTargetParameter struct {
	Model Model
	Items []Item
}

// RenderMode selects how the lit program shades materials.
type RenderMode int32

const (
	// ModeMaterial shades each mesh with its own material path.
	ModeMaterial RenderMode = iota
	// ModeForcePBR shades every mesh with metallic/roughness.
	ModeForcePBR
	// ModeDefaultShading ignores materials and textures.
	ModeDefaultShading
)

// validate checks that params name exactly the registered models.
func (r *Registry) validate(params []RenderTargetParameter) error {
	seen := make(map[Model]bool, len(params))
	for i, p := range params {
		span, ok := r.models[p.Model]
		if !ok {
			return fmt.Errorf("parameter %d: %w", i, ErrUnknownModel)
		}
		if seen[p.Model] {
			return fmt.Errorf("parameter %d: %w", i, ErrDuplicateModel)
		}
		seen[p.Model] = true
		if len(p.Items) != span.Items {
			return fmt.Errorf("parameter %d: %d items, submitted %d: %w", i, len(p.Items), span.Items, ErrItemCountMismatch)
		}
	}
	if len(params) != len(r.models) {
		return fmt.Errorf("%d parameters for %d models: %w", len(params), len(r.models), ErrModelCountMismatch)
	}
	return nil
}

// update poses every item and writes its instance slots, then uploads the per-frame buffers.
func (r *Registry) update(params []RenderTargetParameter) {
	r.clipping = false
	for _, p := range params {
		span := r.models[p.Model]
		numAnimations := p.Model.NumAnimations()

		for i, item := range p.Items {
			animated := item.AnimationID >= 0 && item.AnimationID < numAnimations
			if animated && span.BonesPerItem > 0 {
				off := span.BoneOffset(i)
				p.Model.BoneMatrices(item.AnimationID, item.Time, r.boneMatrices[off:off+span.BonesPerItem])
			}

			for j := 0; j < span.Meshes; j++ {
				slot := span.Slot(j, i)
				r.animated[slot] = 0
				if animated && r.hasBone[slot] != 0 {
					r.animated[slot] = 1
				}
				r.modelMatrices[slot] = item.ModelMatrix
				r.clipPlanes[slot] = item.ClipPlane
			}
			if item.ClipPlane != (mgl32.Vec4{}) {
				r.clipping = true
			}
		}
	}

	for _, u := range []struct {
		buf  *gpu.Buffer
		data []byte
	}{
		{r.gpu.boneMatrices, gpu.Bytes(r.boneMatrices)},
		{r.gpu.animated, gpu.Bytes(r.animated)},
		{r.gpu.modelMatrices, gpu.Bytes(r.modelMatrices)},
		{r.gpu.clipPlanes, gpu.Bytes(r.clipPlanes)},
	} {
		if err := u.buf.Update(0, u.data); err != nil {
			r.log.Error("instance upload failed", zap.Error(err))
		}
	}
}

// begin validates params and refreshes the instance buffers. It reports
// false after handing a violation to the handler.
func (r *Registry) begin(params []RenderTargetParameter) bool {
	if !r.prepared {
		r.onViolation(ErrNotPrepared)
		return false
	}
	if err := r.validate(params); err != nil {
		r.onViolation(err)
		return false
	}
	r.update(params)
	return true
}

func (r *Registry) bind() {
	b := &r.gpu
	b.modelMatrices.BindStorage(BindingModelMatrices)
	b.boneMatrices.BindStorage(BindingBoneMatrices)
	b.boneOffsets.BindStorage(BindingBoneOffsets)
	b.animated.BindStorage(BindingAnimated)
	b.transforms.BindStorage(BindingTransforms)
	b.clipPlanes.BindStorage(BindingClipPlanes)
	b.materials.BindStorage(BindingMaterials)
	b.handles.BindStorage(BindingTextureHandles)
}

func (r *Registry) drawAll() {
	r.bind()
	r.dev.SetClipDistance(r.clipping)
	r.dev.MultiDrawIndirect(r.gpu.vao.ID(), r.gpu.commands.ID(), len(r.commands))
	// Other programs do not write gl_ClipDistance.
	if r.clipping {
		r.dev.SetClipDistance(false)
	}
}

// Draw renders every registered model with the lit program in one indirect draw.
func (r *Registry) Draw(view camera.View, lights []lighting.Light, shadows []lighting.Shadow, mode RenderMode, params []RenderTargetParameter) {
	if !r.begin(params) {
		return
	}

	p := r.programs.Lit
	p.Use()
	near, far := view.NearFar()
	p.SetMat4("uViewMatrix", view.ViewMatrix())
	p.SetMat4("uProjectionMatrix", view.ProjectionRange(near, far))
	p.SetVec3("uCameraPosition", view.Position())
	p.SetInt("uRenderMode", int32(mode))
	if err := lighting.Apply(p, lights, shadows); err != nil {
		r.onViolation(err)
		return
	}
	r.drawAll()
}

// DrawDepthForShadow renders every registered model into all layers of the
// shadow's depth map in one indirect draw.
func (r *Registry) DrawDepthForShadow(s lighting.Shadow, params []RenderTargetParameter) {
	if !r.begin(params) {
		return
	}

	s.DepthPass(func(layers []mgl32.Mat4) {
		var p *gpu.Program
		switch s.Kind {
		case lighting.ShadowDirectional:
			p = r.programs.Depth
			p.Use()
		case lighting.ShadowOmnidirectional:
			p = r.programs.DepthCube
			p.Use()
			p.SetVec3("uLightPosition", s.Omni.Position)
			p.SetFloat("uFarPlane", s.Omni.Far())
		default:
			r.onViolation(fmt.Errorf("unknown %s", s.Kind))
			return
		}
		p.SetMat4("uLayerMatrices", layers...)
		p.SetInt("uNumLayers", int32(len(layers)))
		r.drawAll()
	})
}
