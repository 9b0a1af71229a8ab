// Package runtimeinit wires configuration, logging, settings and the capture
// pipeline together. The resident, the one-shot mode and the PNG tool all
// start from Bootstrap.
package runtimeinit

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"screen-translate/src/config"
	"screen-translate/src/logutil"
	"screen-translate/src/metrics"
	"screen-translate/src/ocr"
	"screen-translate/src/ocr/tesseract"
	"screen-translate/src/pipeline"
	"screen-translate/src/screenshot"
	"screen-translate/src/settings"
	"screen-translate/src/translate"
)

type Options struct {
	LoadOptions config.LoadOptions
	// Console receives log output in addition to the log file; nil means stderr.
	Console io.Writer
	// Verbose forces debug logging regardless of LOG_LEVEL.
	Verbose bool
	// OCRFactory replaces the Tesseract engine (tests).
	OCRFactory ocr.Factory
	// Capturer replaces the screen capturer (tests).
	Capturer pipeline.Capturer
	// OnLoopExit is passed to the controller as its OnExit hook.
	OnLoopExit func(err error)
}

// Runtime is everything a front end needs.
type Runtime struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      *settings.Store
	Metrics    *metrics.Metrics
	Recognizer *ocr.Recognizer
	Translator *translate.Dispatcher
	Controller *pipeline.Controller
}

func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	logger := logutil.Setup(logutil.Options{
		FileLogging: cfg.EnableFileLogging,
		Path:        cfg.LogFile,
		Level:       level,
		Console:     opts.Console,
	})
	logger.Info("configuration loaded",
		"env", cfg.EnvPath,
		"settings", cfg.SettingsPath,
		"deepl_key_file", cfg.DeepLKeyPath,
		"libre_config_file", cfg.LibreConfigPath)

	s, err := settings.Load(cfg.SettingsPath)
	if err != nil {
		logger.Warn("settings file unreadable, using defaults", "path", cfg.SettingsPath, "error", err)
	}
	store := settings.NewStore(s)
	m := metrics.New()

	factory := opts.OCRFactory
	if factory == nil {
		factory = tesseract.New
	}
	recognizer := ocr.New(factory, store, logger)

	client := &http.Client{Timeout: cfg.TranslateTimeout()}
	dispatcher := translate.NewDispatcher(store, m, logger,
		translate.NewDeepL(cfg.DeepLKeyPath, cfg.DeepLAPIURL, client),
		translate.NewLibreTranslate(cfg.LibreConfigPath, translate.SettingsEndpoint(store), client),
	)

	capturer := opts.Capturer
	if capturer == nil {
		capturer = screenshot.Screen{}
	}
	controller := pipeline.New(pipeline.Options{
		Settings:   store,
		Capturer:   capturer,
		Recognizer: recognizer,
		Translator: dispatcher,
		Logger:     logger,
		Metrics:    m,
		OnExit:     opts.OnLoopExit,
	})

	return &Runtime{
		Config:     cfg,
		Logger:     logger,
		Store:      store,
		Metrics:    m,
		Recognizer: recognizer,
		Translator: dispatcher,
		Controller: controller,
	}, nil
}

// Close releases the OCR engine.
func (r *Runtime) Close() {
	r.Controller.Stop()
	r.Controller.Wait()
	r.Recognizer.Close()
}
