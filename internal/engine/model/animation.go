package model

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-batch/internal/assets"
)

// defaultTicksPerSecond applies to animations that leave the rate unset.
const defaultTicksPerSecond = 25

type channelKey struct {
	animation int
	node      string
}

// keyBracket returns the keys surrounding ticks and the blend factor
// between them. n must be at least 2 and ticks strictly inside the range.
func keyBracket(n int, time func(int) float64, ticks float64) (int, int, float32) {
	right := sort.Search(n, func(i int) bool { return time(i) > ticks })
	left := right - 1
	span := time(right) - time(left)
	if span <= 0 {
		return left, right, 0
	}
	return left, right, float32((ticks - time(left)) / span)
}

// interpolateVector returns the translation or scale at ticks, or fallback
// when there are no keys.
func interpolateVector(keys []assets.VectorKey, ticks float64, fallback mgl32.Vec3) mgl32.Vec3 {
	n := len(keys)
	switch {
	case n == 0:
		return fallback
	case n == 1, ticks <= keys[0].Time:
		return keys[0].Value
	case keys[n-1].Time <= ticks:
		return keys[n-1].Value
	}
	l, r, f := keyBracket(n, func(i int) float64 { return keys[i].Time }, ticks)
	return keys[l].Value.Mul(1 - f).Add(keys[r].Value.Mul(f))
}

// interpolateRotation returns the rotation at ticks along the shorter arc.
func interpolateRotation(keys []assets.QuatKey, ticks float64) mgl32.Quat {
	n := len(keys)
	switch {
	case n == 0:
		return mgl32.QuatIdent()
	case n == 1, ticks <= keys[0].Time:
		return keys[0].Value.Normalize()
	case keys[n-1].Time <= ticks:
		return keys[n-1].Value.Normalize()
	}
	l, r, f := keyBracket(n, func(i int) float64 { return keys[i].Time }, ticks)
	a, b := keys[l].Value, keys[r].Value
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl32.QuatSlerp(a, b, f).Normalize()
}

// localTransform evaluates a channel as translation * rotation * scale.
func localTransform(c *assets.Channel, ticks float64) mgl32.Mat4 {
	t := interpolateVector(c.Translations, ticks, mgl32.Vec3{})
	s := interpolateVector(c.Scales, ticks, mgl32.Vec3{1, 1, 1})
	return mgl32.Translate3D(t[0], t[1], t[2]).
		Mul4(interpolateRotation(c.Rotations, ticks).Mat4()).
		Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

func ticksPerSecond(a *assets.Animation) float64 {
	if a.TicksPerSecond > 0 {
		return a.TicksPerSecond
	}
	return defaultTicksPerSecond
}

// NumAnimations returns the number of animations in the model.
func (m *Model) NumAnimations() int { return len(m.animations) }

// AnimationName returns the name of an animation, or "" when out of range.
func (m *Model) AnimationName(animationID int) string {
	if animationID < 0 || animationID >= len(m.animations) {
		return ""
	}
	return m.animations[animationID].Name
}

// AnimationDurationInSeconds returns the length of an animation, or 0 when out of range.
func (m *Model) AnimationDurationInSeconds(animationID int) float64 {
	if animationID < 0 || animationID >= len(m.animations) {
		return 0
	}
	a := &m.animations[animationID]
	return a.Duration / ticksPerSecond(a)
}

// HasAnimation reports whether any animation moves at least one node.
func (m *Model) HasAnimation() bool {
	for i := range m.animations {
		for _, c := range m.animations[i].Channels {
			if len(c.Translations) > 1 || len(c.Rotations) > 1 || len(c.Scales) > 1 {
				return true
			}
		}
	}
	return false
}
