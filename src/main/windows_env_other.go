//go:build !windows

package main

import (
	"log/slog"

	"screen-translate/src/screenshot"
)

func enableDPIAwareness() {}

func logMonitorConfiguration(logger *slog.Logger) {
	virtual, err := screenshot.VirtualBounds()
	if err != nil {
		logger.Warn("no displays detected", "error", err)
		return
	}
	primary, _ := screenshot.PrimaryBounds()
	logger.Info("monitor configuration", "virtual", virtual.String(), "primary", primary.String())
}
