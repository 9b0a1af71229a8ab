package runtimeinit

import (
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"

	"screen-translate/src/config"
	"screen-translate/src/ocr"
)

type stubEngine struct{}

func (stubEngine) Lines(image.Image) ([]string, error) { return []string{"hello"}, nil }
func (stubEngine) Close() error                        { return nil }

func TestBootstrapUsesSettingsFile(t *testing.T) {
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(settingsPath, []byte(`{"SOURCE_LANG":"ja","TARGET_LANG":"en","ENGINE":"libretranslate"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	var built []string
	rt, err := Bootstrap(Options{
		LoadOptions: config.LoadOptions{SettingsPathOverride: settingsPath},
		Console:     io.Discard,
		OCRFactory: func(langs []string, gpu bool) (ocr.Engine, error) {
			built = langs
			return stubEngine{}, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	s := rt.Store.Snapshot()
	if s.SourceLang != "ja" || s.Engine != "libretranslate" {
		t.Fatalf("settings = %+v", s)
	}
	if rt.Recognizer.Ready() {
		t.Fatal("recognizer should be built lazily")
	}
	if err := rt.Recognizer.Ensure(); err != nil {
		t.Fatal(err)
	}
	if len(built) == 0 || built[0] != "ja" {
		t.Fatalf("factory languages = %v", built)
	}
	if rt.Controller.IsRunning() {
		t.Fatal("controller must not start on bootstrap")
	}
}

func TestBootstrapFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(settingsPath, []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}
	rt, err := Bootstrap(Options{
		LoadOptions: config.LoadOptions{SettingsPathOverride: settingsPath},
		Console:     io.Discard,
		OCRFactory: func([]string, bool) (ocr.Engine, error) {
			return nil, errors.New("no engine")
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()
	if got := rt.Store.Snapshot().TargetLang; got != "ko" {
		t.Fatalf("target lang = %q, want default", got)
	}
	if out, err := rt.Translator.Translate(context.Background(), ""); err != nil || out != "" {
		t.Fatalf("empty translate = %q, %v", out, err)
	}
}
