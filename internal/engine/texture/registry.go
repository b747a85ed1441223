package texture

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-batch/internal/engine/gpu"
	"github.com/Faultbox/midgard-batch/internal/logger"
)

// Texture is a registry entry. The same *Texture is handed to every owner of a key.
type Texture struct {
	reg    *Registry
	key    string
	tex    *gpu.Texture // nil for wrapped textures the registry does not own
	id     uint32
	width  int
	height int

	handle   uint64
	resident bool
	owners   int
}

func (t *Texture) Key() string { return t.key }

func (t *Texture) ID() uint32 { return t.id }

func (t *Texture) Size() (int, int) { return t.width, t.height }

// Owners returns how many acquisitions are still outstanding.
func (t *Texture) Owners() int { return t.owners }

// Resident reports whether the bindless handle is currently resident.
func (t *Texture) Resident() bool { return t.resident }

// Handle returns the bindless handle, querying the device on first use.
func (t *Texture) Handle() uint64 {
	if t.handle == 0 {
		t.handle = t.reg.dev.TextureHandle(t.id)
	}
	return t.handle
}

// Registry deduplicates textures by key and counts their owners.
type Registry struct {
	dev      gpu.Device
	textures map[string]*Texture
}

// NewRegistry creates an empty registry on dev.
func NewRegistry(dev gpu.Device) *Registry {
	return &Registry{
		dev:      dev,
		textures: make(map[string]*Texture),
	}
}

// acquire returns the live entry for key with one more owner.
func (r *Registry) acquire(key string) (*Texture, bool) {
	t, ok := r.textures[key]
	if ok {
		t.owners++
	}
	return t, ok
}

// Load reads and uploads an image file. Loading the same path again returns
// the existing texture with one more owner.
func (r *Registry) Load(path string) (*Texture, error) {
	key := filepath.Clean(path)
	if t, ok := r.acquire(key); ok {
		return t, nil
	}

	data, err := os.ReadFile(key)
	if err != nil {
		return nil, fmt.Errorf("loading texture: %w", err)
	}
	return r.LoadBytes(key, data)
}

// LoadBytes decodes and uploads encoded image data registered under key.
func (r *Registry) LoadBytes(key string, data []byte) (*Texture, error) {
	if t, ok := r.acquire(key); ok {
		return t, nil
	}
	img, err := Decode(key, data)
	if err != nil {
		return nil, err
	}
	return r.Upload(key, img)
}

// Upload registers already-decoded pixels under key.
func (r *Registry) Upload(key string, img *image.RGBA) (*Texture, error) {
	if t, ok := r.acquire(key); ok {
		return t, nil
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	tex, err := gpu.NewTexture2D(r.dev, w, h, img.Pix)
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", key, err)
	}

	t := &Texture{reg: r, key: key, tex: tex, id: tex.ID(), width: w, height: h, owners: 1}
	r.textures[key] = t
	logger.Debug("texture loaded",
		zap.String("key", key),
		zap.Int("width", w),
		zap.Int("height", h),
	)
	return t, nil
}

// Wrap registers a texture owned elsewhere, such as a shadow depth target.
// Releasing the last owner drops residency but leaves the device texture alone.
func (r *Registry) Wrap(key string, id uint32, width, height int) *Texture {
	if t, ok := r.acquire(key); ok {
		return t
	}
	t := &Texture{reg: r, key: key, id: id, width: width, height: height, owners: 1}
	r.textures[key] = t
	return t
}

// Get returns the entry for key without taking ownership.
func (r *Registry) Get(key string) (*Texture, bool) {
	t, ok := r.textures[key]
	return t, ok
}

// Len returns the number of live textures.
func (r *Registry) Len() int { return len(r.textures) }

// MakeResident activates the bindless handle. Repeated calls are no-ops.
func (r *Registry) MakeResident(t *Texture) uint64 {
	h := t.Handle()
	if !t.resident {
		r.dev.MakeHandleResident(h)
		t.resident = true
	}
	return h
}

// MakeNonResident deactivates the bindless handle. Repeated calls are no-ops.
func (r *Registry) MakeNonResident(t *Texture) {
	if !t.resident {
		return
	}
	r.dev.MakeHandleNonResident(t.handle)
	t.resident = false
}

// Release drops one owner. The last release makes the handle non-resident
// and deletes textures the registry owns.
func (r *Registry) Release(t *Texture) {
	if t == nil || t.owners == 0 {
		return
	}
	t.owners--
	if t.owners > 0 {
		return
	}
	r.MakeNonResident(t)
	t.tex.Close()
	delete(r.textures, t.key)
}

// Close releases every texture regardless of owner count.
func (r *Registry) Close() {
	keys := make([]string, 0, len(r.textures))
	for k := range r.textures {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t := r.textures[k]
		t.owners = 1
		r.Release(t)
	}
}
