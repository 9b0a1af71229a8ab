// Package ocr owns the text recognizer used by the capture loop. The engine
// handle is built by a Factory and swapped atomically so a settings change can
// rebuild it while the loop keeps running.
package ocr

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"screen-translate/src/settings"
)

// ErrNotInitialized is returned when Recognize runs before a handle exists.
var ErrNotInitialized = errors.New("ocr: recognizer not initialized")

// Engine is one loaded OCR backend instance.
type Engine interface {
	// Lines returns the text fragments found in img, in detection order.
	Lines(img image.Image) ([]string, error)
	Close() error
}

// Factory builds an engine for the given OCR language tags.
type Factory func(languages []string, gpu bool) (Engine, error)

// LanguagesFor maps a source-language code to the OCR tag set.
func LanguagesFor(code string) []string {
	c := strings.ToLower(strings.TrimSpace(code))
	switch {
	case strings.HasPrefix(c, "ja"):
		return []string{"ja", "en"}
	case strings.HasPrefix(c, "zh"):
		return []string{"ch_sim", "en"}
	case strings.HasPrefix(c, "ko"):
		return []string{"ko", "en"}
	default:
		return []string{"en"}
	}
}

// handle pairs an engine with the key it was built for. The RWMutex lets a
// retired handle wait for in-flight recognition before closing.
type handle struct {
	mu        sync.RWMutex
	engine    Engine
	languages []string
	gpu       bool
	closed    bool
}

func (h *handle) retire() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	if err := h.engine.Close(); err != nil {
		slog.Warn("ocr: closing retired engine failed", "error", err)
	}
}

// Recognizer is safe for concurrent use.
type Recognizer struct {
	factory  Factory
	settings *settings.Store
	logger   *slog.Logger

	current atomic.Pointer[handle]
	// initMu serializes construction; recognition never takes it.
	initMu sync.Mutex
}

func New(factory Factory, store *settings.Store, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{factory: factory, settings: store, logger: logger}
}

// Initialize builds a fresh engine and swaps it in. On failure the handle is
// left absent.
func (r *Recognizer) Initialize(languages []string, gpu bool) error {
	r.initMu.Lock()
	defer r.initMu.Unlock()
	return r.initializeLocked(languages, gpu)
}

func (r *Recognizer) initializeLocked(languages []string, gpu bool) error {
	r.logger.Info("initializing OCR engine", "languages", strings.Join(languages, ","), "gpu", gpu)
	engine, err := r.build(languages, gpu)
	if err != nil {
		if old := r.current.Swap(nil); old != nil {
			old.retire()
		}
		r.logger.Error("OCR engine initialization failed", "error", err)
		return fmt.Errorf("initialize OCR engine: %w", err)
	}
	h := &handle{engine: engine, languages: append([]string(nil), languages...), gpu: gpu}
	if old := r.current.Swap(h); old != nil {
		old.retire()
	}
	r.logger.Info("OCR engine ready")
	return nil
}

// build calls the factory and turns a factory panic into an error.
func (r *Recognizer) build(languages []string, gpu bool) (engine Engine, err error) {
	defer func() {
		if p := recover(); p != nil {
			engine, err = nil, fmt.Errorf("engine factory panicked: %v", p)
		}
	}()
	if r.factory == nil {
		return nil, errors.New("no OCR engine factory configured")
	}
	engine, err = r.factory(languages, gpu)
	if err == nil && engine == nil {
		err = errors.New("engine factory returned nil")
	}
	return engine, err
}

// Ensure initializes from the current settings if no handle exists yet.
func (r *Recognizer) Ensure() error {
	if r.current.Load() != nil {
		return nil
	}
	r.initMu.Lock()
	defer r.initMu.Unlock()
	if r.current.Load() != nil {
		return nil
	}
	languages, gpu := r.fromSettings()
	return r.initializeLocked(languages, gpu)
}

// Reinitialize rebuilds the engine from the current settings.
func (r *Recognizer) Reinitialize() error {
	languages, gpu := r.fromSettings()
	return r.Initialize(languages, gpu)
}

func (r *Recognizer) fromSettings() ([]string, bool) {
	if r.settings == nil {
		d := settings.Defaults()
		return LanguagesFor(d.SourceLang), d.UseGPU
	}
	s := r.settings.Snapshot()
	return LanguagesFor(s.SourceLang), s.UseGPU
}

// Ready reports whether an engine handle is present.
func (r *Recognizer) Ready() bool { return r.current.Load() != nil }

// Languages returns the tag set of the current handle, or nil.
func (r *Recognizer) Languages() []string {
	h := r.current.Load()
	if h == nil {
		return nil
	}
	return append([]string(nil), h.languages...)
}

// Recognize returns the recognized text joined by newlines and trimmed.
// Engine failures are logged and yield "".
func (r *Recognizer) Recognize(img image.Image) string {
	text, err := r.RecognizeErr(img)
	if err != nil {
		r.logger.Warn("OCR recognition failed", "error", err)
		return ""
	}
	return text
}

// RecognizeErr is Recognize with the failure reported to the caller.
func (r *Recognizer) RecognizeErr(img image.Image) (text string, err error) {
	for {
		h := r.current.Load()
		if h == nil {
			return "", ErrNotInitialized
		}
		h.mu.RLock()
		if h.closed {
			// swapped out between Load and RLock; pick up the replacement
			h.mu.RUnlock()
			continue
		}
		text, err = recognizeWith(h.engine, img)
		h.mu.RUnlock()
		return text, err
	}
}

func recognizeWith(engine Engine, img image.Image) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("OCR engine panicked: %v", p)
		}
	}()
	lines, err := engine.Lines(img)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// Close releases the current engine.
func (r *Recognizer) Close() {
	r.initMu.Lock()
	defer r.initMu.Unlock()
	if old := r.current.Swap(nil); old != nil {
		old.retire()
	}
}
