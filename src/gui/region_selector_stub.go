//go:build !windows

package gui

import (
	"context"
	"image"
	"log/slog"
)

func selectRect(context.Context, *slog.Logger, image.Rectangle) (image.Rectangle, error) {
	return image.Rectangle{}, ErrUnsupported
}
