package gpu

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestBytesAndCast(t *testing.T) {
	in := []mgl32.Vec4{{1, 2, 3, 4}, {5, 6, 7, 8}}
	raw := Bytes(in)
	if len(raw) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(raw))
	}
	out := Cast[mgl32.Vec4](raw)
	if len(out) != 2 || out[1] != in[1] {
		t.Errorf("round trip mismatch: %v", out)
	}
	if Bytes[int32](nil) != nil {
		t.Error("expected nil bytes for empty slice")
	}
	if SizeOf[mgl32.Mat4]() != 64 {
		t.Errorf("expected mat4 size 64, got %d", SizeOf[mgl32.Mat4]())
	}
}

func TestBufferUpdateBounds(t *testing.T) {
	rec := NewRecorder()
	buf, err := NewBufferFrom(rec, []int32{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("NewBufferFrom: %v", err)
	}
	if buf.Size() != 16 {
		t.Fatalf("expected 16 bytes, got %d", buf.Size())
	}

	if err := buf.Update(8, Bytes([]int32{9})); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got := Cast[int32](rec.Buffers[buf.ID()])
	if got[2] != 9 || got[3] != 4 {
		t.Errorf("unexpected contents %v", got)
	}

	if err := buf.Update(12, Bytes([]int32{1, 2})); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}

	buf.Close()
	buf.Close()
	if n, _, _ := rec.Live(); n != 0 {
		t.Errorf("expected no live buffers, got %d", n)
	}
	if err := buf.Update(0, nil); err == nil {
		t.Error("expected error updating closed buffer")
	}
}

func TestEmptyBufferGetsMinimumSize(t *testing.T) {
	rec := NewRecorder()
	buf, err := NewBufferFrom[mgl32.Mat4](rec, nil)
	if err != nil {
		t.Fatalf("NewBufferFrom: %v", err)
	}
	if buf.Size() != minBufferSize {
		t.Errorf("expected %d bytes, got %d", minBufferSize, buf.Size())
	}
}

func TestDepthTargetReleasesTextureOnFailure(t *testing.T) {
	rec := NewRecorder()
	rec.FailFramebuffer = true

	_, err := NewDepthTarget(rec, DepthArray, 512, 4)
	if !errors.Is(err, ErrIncompleteFramebuffer) {
		t.Fatalf("expected ErrIncompleteFramebuffer, got %v", err)
	}
	if _, tex, fb := rec.Live(); tex != 0 || fb != 0 {
		t.Errorf("leaked %d textures and %d framebuffers", tex, fb)
	}
}

func TestDepthTargetLayers(t *testing.T) {
	rec := NewRecorder()

	arr, err := NewDepthTarget(rec, DepthArray, 1024, 6)
	if err != nil {
		t.Fatalf("NewDepthTarget: %v", err)
	}
	if arr.Texture().Layers() != 6 {
		t.Errorf("expected 6 layers, got %d", arr.Texture().Layers())
	}

	cube, err := NewDepthTarget(rec, DepthCube, 256, 0)
	if err != nil {
		t.Fatalf("NewDepthTarget cube: %v", err)
	}
	if cube.Texture().Layers() != 6 {
		t.Errorf("expected cube to have 6 faces, got %d", cube.Texture().Layers())
	}

	arr.Begin()
	arr.End()
	if len(rec.Events) < 2 || rec.Events[len(rec.Events)-2].Op != "BeginDepthPass" {
		t.Errorf("expected begin/end depth pass events, got %+v", rec.Events)
	}

	arr.Close()
	cube.Close()
	arr.Close()
	if arr.IsValid() {
		t.Error("closed target should not be valid")
	}
	if _, tex, fb := rec.Live(); tex != 0 || fb != 0 {
		t.Errorf("leaked %d textures and %d framebuffers", tex, fb)
	}
}

func TestProgramCachesLocations(t *testing.T) {
	rec := NewRecorder()
	p, err := NewProgram(rec, map[ShaderStage]string{StageVertex: "void main() {}"})
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}
	p.Use()

	first := p.Location("uView")
	p.SetMat4("uView", mgl32.Ident4())
	if p.Location("uView") != first {
		t.Error("expected cached location")
	}
	p.SetInt("uMode", 2)

	u := rec.Uniforms[p.ID()]
	if got := u["uMode"]; got != int32(2) {
		t.Errorf("expected uMode 2, got %v", got)
	}
	if got, ok := u["uView"].([]mgl32.Mat4); !ok || len(got) != 1 || got[0] != mgl32.Ident4() {
		t.Errorf("unexpected uView %v", u["uView"])
	}

	if _, err := NewProgram(rec, nil); err == nil {
		t.Error("expected error for program without stages")
	}
}

func TestRecorderResidency(t *testing.T) {
	rec := NewRecorder()
	tex, err := NewTexture2D(rec, 2, 2, make([]byte, 16))
	if err != nil {
		t.Fatalf("NewTexture2D: %v", err)
	}
	h := rec.TextureHandle(tex.ID())
	if rec.HandleResident(h) {
		t.Fatal("new handle should not be resident")
	}
	rec.MakeHandleResident(h)
	if !rec.HandleResident(h) {
		t.Fatal("expected handle to be resident")
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic on double residency")
		}
	}()
	rec.MakeHandleResident(h)
}

func TestTexture2DRejectsShortPixels(t *testing.T) {
	if _, err := NewTexture2D(NewRecorder(), 4, 4, make([]byte, 10)); err == nil {
		t.Error("expected error for short pixel data")
	}
}
