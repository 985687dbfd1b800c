package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/erazemk/techstore/internal/model"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(w, h int) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, solid(w, h, color.RGBA{255, 0, 0, 255}), &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func encodePNG(w, h int) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, solid(w, h, color.RGBA{0, 0, 255, 255}))
	return buf.Bytes()
}

func TestProcessFormats(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"jpeg", encodeJPEG(100, 80)},
		{"png", encodePNG(100, 80)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Processor{}.Process(bytes.NewReader(tt.data))
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if got.MIME != "image/jpeg" {
				t.Errorf("expected image/jpeg output, got %s", got.MIME)
			}
			if got.Width != 100 || got.Height != 80 {
				t.Errorf("expected 100x80, got %dx%d", got.Width, got.Height)
			}
			if _, err := jpeg.Decode(bytes.NewReader(got.Data)); err != nil {
				t.Errorf("output is not a JPEG: %v", err)
			}
		})
	}
}

func TestProcessDownscale(t *testing.T) {
	got, err := Processor{MaxDimension: 64}.Process(bytes.NewReader(encodePNG(256, 128)))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Width != 64 || got.Height != 32 {
		t.Errorf("expected 64x32, got %dx%d", got.Width, got.Height)
	}

	img, err := jpeg.Decode(bytes.NewReader(got.Data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 32 {
		t.Errorf("encoded image is %dx%d", b.Dx(), b.Dy())
	}
}

func TestProcessTallImage(t *testing.T) {
	got, err := Processor{MaxDimension: 50}.Process(bytes.NewReader(encodeJPEG(20, 200)))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Height != 50 || got.Width != 5 {
		t.Errorf("expected 5x50, got %dx%d", got.Width, got.Height)
	}
}

func TestProcessRejects(t *testing.T) {
	tests := []struct {
		name string
		p    Processor
		data []byte
	}{
		{"not an image", Processor{}, []byte("not an image")},
		{"gif", Processor{}, []byte("GIF89a\x01\x00\x01\x00")},
		{"too large", Processor{MaxBytes: 16}, encodePNG(10, 10)},
		{"truncated png", Processor{}, encodePNG(10, 10)[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.p.Process(bytes.NewReader(tt.data))
			if !errors.Is(err, model.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
