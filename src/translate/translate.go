// Package translate routes recognized text to the configured translation
// backend. Expected backend failures are typed *Error values that the
// Dispatcher renders into overlay text.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"screen-translate/src/logutil"
	"screen-translate/src/metrics"
	"screen-translate/src/settings"
)

// Engine identifiers accepted in the ENGINE setting.
const (
	EngineDeepL = "deepl"
	EngineLibre = "libretranslate"
)

// Request is one translation call. With AutoDetect set the backend lets the
// server detect the source language.
type Request struct {
	Text       string
	SourceLang string
	TargetLang string
	AutoDetect bool
}

// Backend is a translation service client.
type Backend interface {
	Name() string
	Translate(ctx context.Context, req Request) (string, error)
}

// Dispatcher selects a backend from the ENGINE setting on every call.
type Dispatcher struct {
	settings *settings.Store
	backends map[string]Backend
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewDispatcher(store *settings.Store, m *metrics.Metrics, logger *slog.Logger, backends ...Backend) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{settings: store, metrics: m, logger: logger, backends: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		d.backends[b.Name()] = b
	}
	return d
}

// Translate returns the translation, or the display text of an expected
// failure. A non-nil error means something unexpected happened: the context
// was cancelled, a backend panicked or returned an untyped error.
func (d *Dispatcher) Translate(ctx context.Context, text string) (out string, err error) {
	if text == "" {
		return "", nil
	}
	s := d.settings.Snapshot()
	backend, ok := d.backends[s.Engine]
	if !ok {
		d.metrics.TranslateRequest(s.Engine, KindUnknownEngine.String(), 0)
		return (&Error{Engine: s.Engine, Kind: KindUnknownEngine}).Display(), nil
	}

	req := Request{Text: text, SourceLang: s.SourceLang, TargetLang: s.TargetLang, AutoDetect: s.AutoDetectLang}
	start := time.Now()
	out, err = call(ctx, backend, req)
	elapsed := time.Since(start)

	if err == nil {
		d.metrics.TranslateRequest(s.Engine, "ok", elapsed)
		d.logger.Debug("translated", "engine", s.Engine, "elapsed", elapsed, "text", logutil.Preview(out, 50))
		return out, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	var te *Error
	if errors.As(err, &te) {
		d.metrics.TranslateRequest(s.Engine, te.Kind.String(), elapsed)
		d.logger.Warn("translation failed", "engine", s.Engine, "kind", te.Kind.String(), "error", err)
		return te.Display(), nil
	}
	d.metrics.TranslateRequest(s.Engine, "unexpected", elapsed)
	return "", fmt.Errorf("%s: %w", s.Engine, err)
}

// Display is Translate for callers that only want text to show. Unexpected
// failures are rendered too.
func (d *Dispatcher) Display(ctx context.Context, text string) string {
	out, err := d.Translate(ctx, text)
	if err != nil {
		return fmt.Sprintf("(Translation failed: %v)", err)
	}
	return out
}

func call(ctx context.Context, b Backend, req Request) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = "", fmt.Errorf("backend panicked: %v", p)
		}
	}()
	return b.Translate(ctx, req)
}

// SettingsEndpoint reads the LibreTranslate fallback endpoint from the
// settings store.
func SettingsEndpoint(store *settings.Store) func() Endpoint {
	return func() Endpoint {
		s := store.Snapshot()
		return Endpoint{URL: s.LibreAPIURL, Key: s.LibreAPIKey}
	}
}
