package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// node is one entry of the hierarchy arena.
type node struct {
	name      string
	parent    int
	children  []int
	transform mgl32.Mat4
	bone      int // -1 when the node drives no bone
}

// BoneMatrices writes the skinning matrices of animationID at seconds into
// dst. Bones beyond len(dst) are skipped; dst entries without a bone keep
// their value. An out of range animationID writes the bind pose.
func (m *Model) BoneMatrices(animationID int, seconds float64, dst []mgl32.Mat4) {
	if animationID < 0 || animationID >= len(m.animations) {
		m.walk(m.root, mgl32.Ident4(), -1, 0, dst)
		return
	}
	a := &m.animations[animationID]
	m.walk(m.root, mgl32.Ident4(), animationID, seconds*ticksPerSecond(a), dst)
}

// walk visits the hierarchy depth first. Nodes animated by animationID use
// their channel, every other node its rest transform.
func (m *Model) walk(idx int, parent mgl32.Mat4, animationID int, ticks float64, dst []mgl32.Mat4) {
	n := &m.nodes[idx]
	local := n.transform
	if animationID >= 0 {
		if c, ok := m.channels[channelKey{animationID, n.name}]; ok {
			local = localTransform(&m.animations[animationID].Channels[c], ticks)
		}
	}
	global := parent.Mul4(local)
	if n.bone >= 0 && n.bone < len(dst) {
		dst[n.bone] = global.Mul4(m.offsets[n.bone])
	}
	for _, c := range n.children {
		m.walk(c, global, animationID, ticks, dst)
	}
}

// globalTransforms returns the rest pose transform of every node.
func (m *Model) globalTransforms() []mgl32.Mat4 {
	out := make([]mgl32.Mat4, len(m.nodes))
	var visit func(idx int, parent mgl32.Mat4)
	visit = func(idx int, parent mgl32.Mat4) {
		out[idx] = parent.Mul4(m.nodes[idx].transform)
		for _, c := range m.nodes[idx].children {
			visit(c, out[idx])
		}
	}
	visit(m.root, mgl32.Ident4())
	return out
}
