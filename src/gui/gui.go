// Package gui hosts the interactive drag-to-select region picker.
package gui

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
)

var (
	// ErrCancelled means the user dismissed the picker with Escape.
	ErrCancelled   = errors.New("region selection cancelled")
	ErrUnsupported = errors.New("interactive region selection not implemented for this platform")
	ErrBusy        = errors.New("region selection already in progress")
)

// minSelectionSpan is the smallest width and height, in pixels, accepted as
// a region. Anything narrower is treated as a stray click.
const minSelectionSpan = 5

// Selector shows a full-screen picker and returns the dragged rectangle.
// Only one picker is shown at a time.
type Selector struct {
	log *slog.Logger
	mu  sync.Mutex
}

func New(logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{log: logger.With("component", "gui")}
}

// Select blocks until the user drags a rectangle, presses Escape, or ctx is
// cancelled. current, when not empty, is outlined as the region in use.
// Rectangles are in physical screen pixels.
func (s *Selector) Select(ctx context.Context, current image.Rectangle) (image.Rectangle, error) {
	if err := ctx.Err(); err != nil {
		return image.Rectangle{}, err
	}
	if !s.mu.TryLock() {
		return image.Rectangle{}, ErrBusy
	}
	defer s.mu.Unlock()

	s.log.Info("starting interactive region selection")
	rect, err := selectRect(ctx, s.log, current)
	if err != nil {
		s.log.Info("region selection ended", "error", err)
		return image.Rectangle{}, err
	}
	s.log.Info("region selected", "region", rect.String())
	return rect, nil
}

// dragRect turns the two corners of a drag, in overlay client coordinates,
// into a screen rectangle. origin is the overlay's top-left corner on the
// virtual desktop. ok is false for drags too small to be a region.
func dragRect(start, end, origin image.Point) (r image.Rectangle, ok bool) {
	r = image.Rectangle{Min: start, Max: end}.Canon().Add(origin)
	return r, r.Dx() > minSelectionSpan && r.Dy() > minSelectionSpan
}

// toBGRA converts img into a top-down 32bpp DIB of the given size. Pixels
// outside img stay black.
func toBGRA(img *image.RGBA, size image.Point) []byte {
	out := make([]byte, size.X*size.Y*4)
	b := img.Bounds()
	w := min(b.Dx(), size.X)
	for y := 0; y < min(b.Dy(), size.Y); y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):][:w*4]
		dst := out[y*size.X*4:][:w*4]
		for x := 0; x < len(src); x += 4 {
			dst[x], dst[x+1], dst[x+2], dst[x+3] = src[x+2], src[x+1], src[x], src[x+3]
		}
	}
	return out
}
