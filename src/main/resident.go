package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"screen-translate/src/clipboard"
	"screen-translate/src/control"
	"screen-translate/src/eventloop"
	"screen-translate/src/gui"
	"screen-translate/src/hotkey"
	"screen-translate/src/notification"
	"screen-translate/src/overlay"
	"screen-translate/src/runtimeinit"
	"screen-translate/src/screenshot"
	"screen-translate/src/tray"
)

const (
	appID    = "io.github.screen-translate"
	appTitle = "Screen Translate"
)

var errAlreadyRunning = errors.New("another instance is already running")

// runResident starts the tray app. It blocks until Quit, a signal, or the
// event loop ending.
func runResident(opts *mainOptions) error {
	var loop *eventloop.Loop
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions: opts.loadOptions(),
		Verbose:     opts.verbose,
		OnLoopExit: func(err error) {
			if loop != nil {
				loop.LoopExited(err)
			}
		},
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.Logger
	cfg := rt.Config

	// Single-instance pre-flight: a resident answering in the port range wins.
	detectCtx, cancelDetect := context.WithTimeout(context.Background(), 3*time.Second)
	port, found := control.NewClient(cfg.ControlPortStart, cfg.ControlPortEnd).Detect(detectCtx)
	cancelDetect()
	if found {
		logger.Info("resident already running", "port", port)
		return fmt.Errorf("%w on port %d", errAlreadyRunning, port)
	}

	logMonitorConfiguration(logger)
	if err := clipboard.Init(); err != nil {
		logger.Warn("clipboard unavailable, copy is disabled", "error", err)
	}

	a := app.NewWithID(appID)
	ov := overlay.New(a, appTitle)
	keys := hotkey.NewListener(logger)
	notifier := notification.New(a, logger)

	var trayMenu *tray.Tray
	loop = eventloop.New(eventloop.Deps{
		Store:        rt.Store,
		SettingsPath: cfg.SettingsPath,
		Controller:   rt.Controller,
		Sink:         ov,
		Recognizer:   rt.Recognizer,
		Hotkeys:      keys,
		CopyHotkey:   cfg.CopyHotkey,
		OnRunning: func(running bool) {
			trayMenu.SetRunning(running)
			if running {
				ov.Show()
			} else {
				ov.Hide()
			}
		},
		Copy:          clipboard.Write,
		PrimaryBounds: screenshot.PrimaryBounds,
		SelectRegion:  gui.New(logger).Select,
		Notify:        notifier.Error,
		Logger:        logger,
	})
	trayMenu = tray.Install(a, appTitle, tray.Actions{
		Toggle:       func() { loop.Post(control.ActionToggle) },
		Copy:         func() { loop.Post(eventloop.ActionCopy) },
		SelectRegion: func() { loop.Post(eventloop.ActionSelectRegion) },
		UsePrimary:   func() { loop.Post(eventloop.ActionUsePrimary) },
		ResetRegion:  func() { loop.Post(eventloop.ActionResetRegion) },
		Reload:       func() { loop.Post(control.ActionReload) },
		Quit:         func() { loop.Post(eventloop.ActionQuit) },
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := control.NewServer(loop, rt.Metrics, logger)
	if err := srv.Start(cfg.ControlPortStart, cfg.ControlPortEnd); err != nil {
		return fmt.Errorf("control endpoint: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	loop.BindHotkeys()
	if err := keys.Start(ctx); err != nil {
		logger.Error("global hotkeys unavailable", "error", err)
	}
	defer keys.Stop()

	loopDone := make(chan error, 1)
	go func() {
		err := loop.Run(ctx)
		loopDone <- err
		fyne.Do(a.Quit)
	}()

	logger.Info("resident ready",
		"control_port", srv.Port(),
		"hotkey", rt.Store.Snapshot().Hotkey,
		"copy_hotkey", cfg.CopyHotkey)
	a.Run()

	// The window system may close before the loop (last window closed).
	stop()
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("resident exited")
	return nil
}
