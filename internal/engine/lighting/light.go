package lighting

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-batch/internal/engine/gpu"
)

// Shader-side array sizes.
const (
	MaxDirectionalLights = 4
	MaxPointLights       = 32
)

// NoShadow marks a light that casts no shadow.
const NoShadow = -1

var (
	// ErrShadowIndex is returned when a light names a shadow that does not exist.
	ErrShadowIndex = errors.New("light shadow index out of range")
	// ErrShadowKind is returned when a light names a shadow of the wrong kind.
	ErrShadowKind = errors.New("light and shadow kinds differ")
	// ErrTooManyLights is returned when a light kind exceeds its shader array.
	ErrTooManyLights = errors.New("too many lights")
)

// Kind selects the light variant.
type Kind int

const (
	KindAmbient Kind = iota
	KindDirectional
	KindPoint
)

func (k Kind) String() string {
	switch k {
	case KindAmbient:
		return "ambient"
	case KindDirectional:
		return "directional"
	case KindPoint:
		return "point"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Light is a closed set of light variants. Fields not used by Kind are ignored.
type Light struct {
	Kind  Kind
	Color mgl32.Vec3

	// Direction is the way directional light travels.
	Direction mgl32.Vec3

	Position mgl32.Vec3
	// Attenuation holds constant, linear and quadratic falloff terms.
	Attenuation mgl32.Vec3

	// Shadow indexes the shadows slice passed alongside the lights, or NoShadow.
	Shadow int
}

// Ambient returns an ambient light.
func Ambient(color mgl32.Vec3) Light {
	return Light{Kind: KindAmbient, Color: color, Shadow: NoShadow}
}

// Directional returns a directional light.
func Directional(dir, color mgl32.Vec3, shadow int) Light {
	return Light{Kind: KindDirectional, Direction: dir.Normalize(), Color: color, Shadow: shadow}
}

// Point returns a point light.
func Point(pos, color, attenuation mgl32.Vec3, shadow int) Light {
	return Light{Kind: KindPoint, Position: pos, Color: color, Attenuation: attenuation, Shadow: shadow}
}

// uniforms is the flattened light state uploaded to the lit program.
type uniforms struct {
	ambient mgl32.Vec3

	dirDirection []mgl32.Vec3
	dirColor     []mgl32.Vec3

	pointPosition    []mgl32.Vec3
	pointColor       []mgl32.Vec3
	pointAttenuation []mgl32.Vec3

	// Index of the light owning each shadow map, -1 when unused.
	sunShadowLight   int32
	sunShadow        Shadow
	pointShadowLight int32
	pointShadow      Shadow
}

func flatten(lights []Light, shadows []Shadow) (uniforms, error) {
	u := uniforms{sunShadowLight: -1, pointShadowLight: -1}

	for i, l := range lights {
		if l.Kind != KindAmbient && l.Shadow != NoShadow {
			if l.Shadow < 0 || l.Shadow >= len(shadows) {
				return u, fmt.Errorf("light %d: shadow %d of %d: %w", i, l.Shadow, len(shadows), ErrShadowIndex)
			}
		}

		switch l.Kind {
		case KindAmbient:
			u.ambient = u.ambient.Add(l.Color)
		case KindDirectional:
			if len(u.dirDirection) == MaxDirectionalLights {
				return u, fmt.Errorf("%d directional lights: %w", MaxDirectionalLights+1, ErrTooManyLights)
			}
			if l.Shadow != NoShadow {
				s := shadows[l.Shadow]
				if s.Kind != ShadowDirectional {
					return u, fmt.Errorf("light %d is %s, shadow %d is %s: %w", i, l.Kind, l.Shadow, s.Kind, ErrShadowKind)
				}
				if u.sunShadowLight < 0 {
					u.sunShadowLight = int32(len(u.dirDirection))
					u.sunShadow = s
				}
			}
			u.dirDirection = append(u.dirDirection, l.Direction)
			u.dirColor = append(u.dirColor, l.Color)
		case KindPoint:
			if len(u.pointPosition) == MaxPointLights {
				return u, fmt.Errorf("%d point lights: %w", MaxPointLights+1, ErrTooManyLights)
			}
			if l.Shadow != NoShadow {
				s := shadows[l.Shadow]
				if s.Kind != ShadowOmnidirectional {
					return u, fmt.Errorf("light %d is %s, shadow %d is %s: %w", i, l.Kind, l.Shadow, s.Kind, ErrShadowKind)
				}
				if u.pointShadowLight < 0 {
					u.pointShadowLight = int32(len(u.pointPosition))
					u.pointShadow = s
				}
			}
			u.pointPosition = append(u.pointPosition, l.Position)
			u.pointColor = append(u.pointColor, l.Color)
			u.pointAttenuation = append(u.pointAttenuation, l.Attenuation)
		default:
			return u, fmt.Errorf("light %d: unknown kind %s", i, l.Kind)
		}
	}
	return u, nil
}

// Apply uploads lights and their shadow maps to the bound lit program.
// Only the first shadowed directional light and the first shadowed point
// light sample a shadow map.
func Apply(p *gpu.Program, lights []Light, shadows []Shadow) error {
	u, err := flatten(lights, shadows)
	if err != nil {
		return err
	}

	p.SetVec3("uAmbient", u.ambient)

	p.SetInt("uNumDirectional", int32(len(u.dirDirection)))
	if len(u.dirDirection) > 0 {
		p.SetVec3("uDirectionalDir", u.dirDirection...)
		p.SetVec3("uDirectionalColor", u.dirColor...)
	}

	p.SetInt("uNumPoint", int32(len(u.pointPosition)))
	if len(u.pointPosition) > 0 {
		p.SetVec3("uPointPosition", u.pointPosition...)
		p.SetVec3("uPointColor", u.pointColor...)
		p.SetVec3("uPointAttenuation", u.pointAttenuation...)
	}

	p.SetInt("uSunShadowLight", u.sunShadowLight)
	if u.sunShadowLight >= 0 {
		d := u.sunShadow.Directional
		p.SetHandle("uSunShadowMap", d.Handle())
		p.SetInt("uNumCascades", int32(d.NumCascades()))
		p.SetMat4("uCascadeMatrices", d.ViewProjections()...)
		p.SetFloat("uCascadePlanes", d.PlaneDistances()...)
	}

	p.SetInt("uPointShadowLight", u.pointShadowLight)
	if u.pointShadowLight >= 0 {
		o := u.pointShadow.Omni
		p.SetHandle("uPointShadowMap", o.Handle())
		p.SetFloat("uPointShadowFar", o.Far())
	}
	return nil
}
