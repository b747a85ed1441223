// Package texture loads images into device textures and tracks their bindless residency.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
)

// ErrUnsupportedFormat is returned for image data no decoder accepts.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// TGA image types handled by DecodeTGA.
const (
	tgaTypeUncompressed = 2
	tgaTypeRLE          = 10
)

// Decode turns encoded image bytes into RGBA rows ordered bottom-up, the order
// OpenGL expects for texture uploads. name selects the TGA decoder by extension.
func Decode(name string, data []byte) (*image.RGBA, error) {
	var (
		img image.Image
		err error
	)
	if strings.EqualFold(filepath.Ext(name), ".tga") {
		img, err = DecodeTGA(data)
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if errors.Is(err, image.ErrFormat) {
			err = ErrUnsupportedFormat
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return flipRGBA(img), nil
}

// flipRGBA converts img to RGBA with rows reversed.
func flipRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	src, ok := img.(*image.RGBA)
	if !ok {
		src = image.NewRGBA(b)
		draw.Draw(src, b, img, b.Min, draw.Src)
	}
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	rowLen := b.Dx() * 4
	for y := 0; y < b.Dy(); y++ {
		s := src.PixOffset(b.Min.X, b.Min.Y+y)
		d := out.PixOffset(0, b.Dy()-1-y)
		copy(out.Pix[d:d+rowLen], src.Pix[s:s+rowLen])
	}
	return out
}

// DecodeTGA decodes uncompressed (type 2) and RLE (type 10) true-color TGA files.
func DecodeTGA(data []byte) (image.Image, error) {
	if len(data) < 18 {
		return nil, fmt.Errorf("TGA data too short")
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	topToBottom := data[17]&0x20 != 0

	if colorMapType != 0 {
		return nil, fmt.Errorf("color-mapped TGA: %w", ErrUnsupportedFormat)
	}
	if imageType != tgaTypeUncompressed && imageType != tgaTypeRLE {
		return nil, fmt.Errorf("TGA type %d: %w", imageType, ErrUnsupportedFormat)
	}
	if bpp != 24 && bpp != 32 {
		return nil, fmt.Errorf("TGA bit depth %d: %w", bpp, ErrUnsupportedFormat)
	}

	offset := 18 + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("TGA data truncated")
	}

	d := &tgaDecoder{
		img:         image.NewRGBA(image.Rect(0, 0, width, height)),
		src:         data[offset:],
		width:       width,
		height:      height,
		bytesPP:     bpp / 8,
		topToBottom: topToBottom,
	}
	if imageType == tgaTypeUncompressed {
		if len(d.src) < width*height*d.bytesPP {
			return nil, fmt.Errorf("TGA pixel data truncated")
		}
		for d.pixel < width*height {
			d.put(d.read())
		}
	} else {
		d.decodeRLE()
	}
	return d.img, nil
}

type tgaDecoder struct {
	img           *image.RGBA
	src           []byte
	pos           int
	pixel         int
	width, height int
	bytesPP       int
	topToBottom   bool
}

// read consumes one BGR(A) pixel.
func (d *tgaDecoder) read() [4]uint8 {
	p := d.src[d.pos : d.pos+d.bytesPP]
	d.pos += d.bytesPP
	c := [4]uint8{p[2], p[1], p[0], 255}
	if d.bytesPP == 4 {
		c[3] = p[3]
	}
	return c
}

// put stores c at the next pixel in file order.
func (d *tgaDecoder) put(c [4]uint8) {
	x := d.pixel % d.width
	y := d.pixel / d.width
	if !d.topToBottom {
		y = d.height - 1 - y
	}
	i := d.img.PixOffset(x, y)
	copy(d.img.Pix[i:i+4], c[:])
	d.pixel++
}

// decodeRLE stops quietly at the end of input; missing pixels stay transparent.
func (d *tgaDecoder) decodeRLE() {
	total := d.width * d.height
	for d.pixel < total && d.pos < len(d.src) {
		packet := d.src[d.pos]
		d.pos++
		count := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			if d.pos+d.bytesPP > len(d.src) {
				return
			}
			c := d.read()
			for i := 0; i < count && d.pixel < total; i++ {
				d.put(c)
			}
			continue
		}
		for i := 0; i < count && d.pixel < total; i++ {
			if d.pos+d.bytesPP > len(d.src) {
				return
			}
			d.put(d.read())
		}
	}
}
