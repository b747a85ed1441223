package gpu

import "fmt"

// Texture owns one device texture.
type Texture struct {
	dev           Device
	id            uint32
	width, height int
	layers        int
}

// NewTexture2D uploads RGBA8 pixels with a full mip chain.
func NewTexture2D(dev Device, width, height int, rgba []byte) (*Texture, error) {
	id, err := dev.CreateTexture2D(width, height, rgba)
	if err != nil {
		return nil, fmt.Errorf("creating texture: %w", err)
	}
	return &Texture{dev: dev, id: id, width: width, height: height, layers: 1}, nil
}

// NewDepthTexture allocates a square depth texture. Cube textures always have six layers.
func NewDepthTexture(dev Device, kind DepthKind, resolution, layers int) (*Texture, error) {
	id, err := dev.CreateDepthTexture(kind, resolution, layers)
	if err != nil {
		return nil, fmt.Errorf("creating depth texture: %w", err)
	}
	if kind == DepthCube {
		layers = 6
	}
	return &Texture{dev: dev, id: id, width: resolution, height: resolution, layers: layers}, nil
}

func (t *Texture) ID() uint32 { return t.id }

// Size returns width and height in texels.
func (t *Texture) Size() (int, int) { return t.width, t.height }

// Layers returns the number of array layers or cube faces.
func (t *Texture) Layers() int { return t.layers }

// Close releases the texture. It is safe to call more than once.
func (t *Texture) Close() {
	if t == nil || t.id == 0 {
		return
	}
	t.dev.DeleteTexture(t.id)
	t.id = 0
}
