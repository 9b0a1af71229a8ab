package screenshot

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/kbinani/screenshot"
)

// Screen captures pixels from the physical desktop.
type Screen struct{}

// Capture grabs the half-open rectangle [Min, Max) in physical screen pixels.
func (Screen) Capture(rect image.Rectangle) (*image.RGBA, error) {
	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return nil, fmt.Errorf("invalid capture region: %v", rect)
	}
	if screenshot.NumActiveDisplays() == 0 {
		return nil, fmt.Errorf("no active displays found")
	}
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return nil, fmt.Errorf("failed to capture region %v: %w", rect, err)
	}
	return img, nil
}

// PrimaryBounds returns the bounds of display 0.
func PrimaryBounds() (image.Rectangle, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	return screenshot.GetDisplayBounds(0), nil
}

// VirtualBounds returns the union of all active displays.
func VirtualBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return union, nil
}

// ClampToScreen intersects rect with the virtual desktop. An empty result
// means the region lies entirely off-screen.
func ClampToScreen(rect image.Rectangle) (image.Rectangle, error) {
	vb, err := VirtualBounds()
	if err != nil {
		return image.Rectangle{}, err
	}
	return rect.Intersect(vb), nil
}

// EncodePNG encodes img for backends that take encoded bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}
