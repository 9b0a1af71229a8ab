//go:build windows

package main

import (
	"log/slog"

	"golang.org/x/sys/windows"
)

const processPerMonitorDPIAware = 2

// enableDPIAwareness makes capture regions physical pixels on scaled displays.
func enableDPIAwareness() {
	setProcessDpiAwareness := windows.NewLazySystemDLL("Shcore.dll").NewProc("SetProcessDpiAwareness")
	if err := setProcessDpiAwareness.Find(); err == nil {
		if ret, _, _ := setProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware)); ret != 0 {
			slog.Warn("per-monitor DPI awareness not set", "code", ret)
		}
		return
	}

	// Vista+ fallback.
	setProcessDPIAware := windows.NewLazySystemDLL("user32.dll").NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err != nil {
		slog.Warn("no DPI awareness API available")
		return
	}
	if ret, _, _ := setProcessDPIAware.Call(); ret == 0 {
		slog.Warn("system DPI awareness not set")
	}
}

func logMonitorConfiguration(logger *slog.Logger) {
	getSystemMetrics := windows.NewLazySystemDLL("user32.dll").NewProc("GetSystemMetrics")
	metric := func(index int) int {
		ret, _, _ := getSystemMetrics.Call(uintptr(index))
		return int(int32(ret))
	}
	const (
		smCXScreen        = 0
		smCYScreen        = 1
		smXVirtualScreen  = 76
		smYVirtualScreen  = 77
		smCXVirtualScreen = 78
		smCYVirtualScreen = 79
		smCMonitors       = 80
	)
	logger.Info("monitor configuration",
		"monitors", metric(smCMonitors),
		"virtual_x", metric(smXVirtualScreen),
		"virtual_y", metric(smYVirtualScreen),
		"virtual_w", metric(smCXVirtualScreen),
		"virtual_h", metric(smCYVirtualScreen),
		"primary_w", metric(smCXScreen),
		"primary_h", metric(smCYScreen))
}
