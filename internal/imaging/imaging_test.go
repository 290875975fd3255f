package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func testJPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func testPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{0, 0, 255, 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func TestProcessJPEG(t *testing.T) {
	result, err := Process(bytes.NewReader(testJPEG(100, 100)))
	if err != nil {
		t.Fatalf("Process JPEG: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("MIME = %q, want image/jpeg", result.MIME)
	}
	if len(result.Data) == 0 {
		t.Error("empty output")
	}
}

func TestProcessPNGBecomesJPEG(t *testing.T) {
	result, err := Process(bytes.NewReader(testPNG(100, 100)))
	if err != nil {
		t.Fatalf("Process PNG: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("MIME = %q, want image/jpeg", result.MIME)
	}
}

func TestProcessDownscales(t *testing.T) {
	result, err := Process(bytes.NewReader(testJPEG(MaxDimension*2, MaxDimension)))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if w := img.Bounds().Dx(); w != MaxDimension {
		t.Errorf("width = %d, want %d", w, MaxDimension)
	}
	if h := img.Bounds().Dy(); h != MaxDimension/2 {
		t.Errorf("height = %d, want %d", h, MaxDimension/2)
	}
}

func TestProcessKeepsSmallDimensions(t *testing.T) {
	result, err := Process(bytes.NewReader(testJPEG(200, 150)))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 150 {
		t.Errorf("dimensions = %dx%d, want 200x150", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestProcessRejectsGarbage(t *testing.T) {
	if _, err := Process(bytes.NewReader([]byte("not an image at all"))); err == nil {
		t.Error("expected error for non-image data")
	}
}
