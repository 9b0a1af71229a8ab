//go:build !windows

package gui

import (
	"context"
	"errors"
	"image"
	"testing"

	"screen-translate/src/logutil"
)

func TestSelectUnsupported(t *testing.T) {
	r, err := New(logutil.Discard()).Select(context.Background(), image.Rectangle{})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v", err)
	}
	if !r.Empty() {
		t.Fatalf("region = %v", r)
	}
}
