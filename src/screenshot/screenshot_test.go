package screenshot

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestCaptureRejectsEmptyRegion(t *testing.T) {
	for _, r := range []image.Rectangle{
		image.Rect(0, 0, 0, 0),
		image.Rect(100, 100, 100, 200),
		{Min: image.Pt(50, 50), Max: image.Pt(10, 10)},
	} {
		if _, err := (Screen{}).Capture(r); err == nil {
			t.Errorf("Capture(%v): expected error", r)
		}
	}
}

func TestCaptureRegion(t *testing.T) {
	img, err := (Screen{}).Capture(image.Rect(0, 0, 100, 100))
	if err != nil {
		t.Logf("Failed to capture region (expected in headless environment): %v", err)
		return
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 100 {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}
}

func TestPrimaryBounds(t *testing.T) {
	if _, err := PrimaryBounds(); err != nil {
		t.Logf("Failed to get display bounds (expected in headless environment): %v", err)
	}
}

func TestEncodePNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.SetRGBA(1, 1, color.RGBA{R: 255, A: 255})
	data, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Errorf("bounds = %v", decoded.Bounds())
	}
}
