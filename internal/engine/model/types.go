// Package model builds batch mesh records from decoded scenes and evaluates
// skeletal poses for the batch registry.
package model

import (
	"errors"

	"github.com/Faultbox/midgard-batch/internal/engine/batch"
)

// MaxBones is the largest skeleton the batch programs accept per model.
const MaxBones = 170

var (
	ErrTooManyBones = errors.New("too many bones")
	ErrNoMeshes     = errors.New("scene has no meshes")
	ErrNilScene     = errors.New("nil scene")

	ErrTooManyBoneInfluences = batch.ErrTooManyBoneInfluences
)

// Options contains options for building and submitting a model.
type Options struct {
	// Items is the number of instances submitted to the registry.
	Items int
	// MaxVerticesPerMesh splits larger meshes into several records. Zero disables splitting.
	MaxVerticesPerMesh int
	// FlipUV flips texture coordinates vertically.
	FlipUV bool
}

// Namer assigns dense ids to names in first-seen order.
type Namer struct {
	ids   map[string]int
	names []string
}

// Name returns the id of name, assigning the next one on first use.
func (n *Namer) Name(name string) int {
	if id, ok := n.ids[name]; ok {
		return id
	}
	if n.ids == nil {
		n.ids = make(map[string]int)
	}
	id := len(n.names)
	n.ids[name] = id
	n.names = append(n.names, name)
	return id
}

// Lookup returns the id of name without assigning one.
func (n *Namer) Lookup(name string) (int, bool) {
	id, ok := n.ids[name]
	return id, ok
}

// Len returns how many names have been assigned.
func (n *Namer) Len() int { return len(n.names) }

// Names returns the names in id order.
func (n *Namer) Names() []string {
	return append([]string(nil), n.names...)
}
