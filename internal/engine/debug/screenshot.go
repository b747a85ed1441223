package debug

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-batch/internal/engine/gpu"
	"github.com/Faultbox/midgard-batch/internal/logger"
)

// Screenshots saves the default framebuffer as PNG files.
type Screenshots struct {
	dev       gpu.Device
	outputDir string
	prefix    string
	taken     int

	// now is replaced in tests.
	now func() time.Time
}

// NewScreenshots creates a capture handler writing prefix_<timestamp>_<n>.png files into outputDir.
func NewScreenshots(dev gpu.Device, outputDir, prefix string) *Screenshots {
	return &Screenshots{dev: dev, outputDir: outputDir, prefix: prefix, now: time.Now}
}

// Capture reads a width × height frame from the device and writes it.
func (s *Screenshots) Capture(width, height int) (string, error) {
	pixels := s.dev.ReadPixels(width, height)
	img, err := imageFromPixels(pixels, width, height)
	if err != nil {
		return "", err
	}

	if s.outputDir != "" {
		if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}
	s.taken++
	name := filepath.Join(s.outputDir, fmt.Sprintf("%s_%s_%03d.png", s.prefix, s.now().Format("2006-01-02_15-04-05"), s.taken))

	file, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	logger.Info("screenshot saved", zap.String("path", name))
	return name, nil
}

// imageFromPixels converts bottom-up RGBA rows into an image.
func imageFromPixels(pixels []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || len(pixels) != width*height*4 {
		return nil, fmt.Errorf("pixel data size mismatch: %dx%d with %d bytes", width, height, len(pixels))
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	row := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * row
		copy(img.Pix[y*img.Stride:y*img.Stride+row], pixels[src:src+row])
	}
	return img, nil
}
