package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"screen-translate/src/control"
	"screen-translate/src/pipeline"
	"screen-translate/src/settings"
	"screen-translate/src/translate"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{
			name: "Normalizes long single dash flags",
			in:   []string{appName, "-run-once", "-settings", "/tmp/s.json"},
			out:  []string{appName, "--run-once", "--settings", "/tmp/s.json"},
		},
		{
			name: "Normalizes equals form",
			in:   []string{appName, "-run-once=true", "-deepl-key-file=/tmp/key"},
			out:  []string{appName, "--run-once=true", "--deepl-key-file=/tmp/key"},
		},
		{
			name: "Leaves other flags unchanged",
			in:   []string{appName, "--run-once", "-v", "status"},
			out:  []string{appName, "--run-once", "-v", "status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeLegacyArgs(tt.in)
			if len(got) != len(tt.out) {
				t.Fatalf("Expected len=%d, got %d", len(tt.out), len(got))
			}
			for i := range got {
				if got[i] != tt.out[i] {
					t.Fatalf("Expected arg[%d]=%q, got %q", i, tt.out[i], got[i])
				}
			}
		})
	}
}

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--run-once", "--settings", "/tmp/s.json", "--deepl-key-file", "/tmp/key"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if !opts.runOnce {
		t.Fatal("Expected runOnce=true")
	}
	lo := opts.loadOptions()
	if lo.SettingsPathOverride != "/tmp/s.json" || lo.DeepLKeyPathOverride != "/tmp/key" {
		t.Fatalf("load options = %+v", lo)
	}
}

func TestRootHasSubcommands(t *testing.T) {
	cmd := newRootCmd(&mainOptions{})
	for _, name := range []string{"start", "stop", "toggle", "reload", "status", "translate", "settings", "api-key"} {
		if c, _, err := cmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q missing", name)
		}
	}
}

func TestAPIKeyCommandWritesFiles(t *testing.T) {
	dir := t.TempDir()
	deeplPath := filepath.Join(dir, "deepl.txt")
	librePath := filepath.Join(dir, "libretranslate.txt")
	t.Setenv("LIBRE_CONFIG_FILE", librePath)

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		cmd := newRootCmd(&mainOptions{})
		cmd.SetOut(&out)
		cmd.SetArgs(append([]string{"--deepl-key-file", deeplPath}, args...))
		if err := cmd.Execute(); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	if out := run("api-key", "deepl", "secret:fx"); !strings.Contains(out, deeplPath) {
		t.Errorf("output = %q", out)
	}
	if data, err := os.ReadFile(deeplPath); err != nil || strings.TrimSpace(string(data)) != "secret:fx" {
		t.Errorf("deepl.txt = %q, %v", data, err)
	}

	run("api-key", "libre", "http://localhost:5000/translate", "lt-key")
	ep, err := translate.ReadEndpointFile(librePath)
	if err != nil || ep.URL != "http://localhost:5000/translate" || ep.Key != "lt-key" {
		t.Errorf("endpoint = %+v, %v", ep, err)
	}
}

type fakeClient struct {
	status pipeline.Status
	err    error
	called []control.Action
}

func (f *fakeClient) Do(_ context.Context, a control.Action) (pipeline.Status, error) {
	f.called = append(f.called, a)
	return f.status, f.err
}

func (f *fakeClient) Status(context.Context) (pipeline.Status, error) { return f.status, f.err }

func TestDelegatePrintsStatus(t *testing.T) {
	client := &fakeClient{status: pipeline.Status{Running: true, LastTranslated: "안녕"}}
	var out bytes.Buffer
	if err := delegate(context.Background(), client, control.ActionStart, &out); err != nil {
		t.Fatal(err)
	}
	if len(client.called) != 1 || client.called[0] != control.ActionStart {
		t.Fatalf("called = %v", client.called)
	}
	if !strings.Contains(out.String(), `"running": true`) {
		t.Fatalf("output = %s", out.String())
	}
}

func TestDelegateNoResident(t *testing.T) {
	client := &fakeClient{err: control.ErrNoResident}
	err := delegate(context.Background(), client, control.ActionStop, &bytes.Buffer{})
	if !errors.Is(err, control.ErrNoResident) {
		t.Fatalf("err = %v", err)
	}
}

func TestSetSettingWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := setSetting(path, "target_lang", "ja"); err != nil {
		t.Fatal(err)
	}
	if err := setSetting(path, "OCR_REGION", "10, 20, 300, 120"); err != nil {
		t.Fatal(err)
	}
	s, err := settings.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.TargetLang != "ja" {
		t.Errorf("target = %q", s.TargetLang)
	}
	if s.Region == nil || *s.Region != (settings.Region{Left: 10, Top: 20, Right: 300, Bottom: 120}) {
		t.Errorf("region = %v", s.Region)
	}
	if err := setSetting(path, "NOPE", "1"); !errors.Is(err, settings.ErrUnknownKey) {
		t.Errorf("unknown key err = %v", err)
	}
}

func TestSetSettingKeepsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := setSetting(path, "TARGET_LANG", "ja"); err == nil {
		t.Fatal("expected decode error")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "{broken" {
		t.Fatalf("file rewritten: %q", data)
	}
}

type onceCapturer struct{ err error }

func (c onceCapturer) Capture(rect image.Rectangle) (*image.RGBA, error) {
	if c.err != nil {
		return nil, c.err
	}
	return image.NewRGBA(rect), nil
}

type onceOCR struct{ text string }

func (onceOCR) Ensure() error                              { return nil }
func (o onceOCR) RecognizeErr(image.Image) (string, error) { return o.text, nil }

type onceTranslator struct{}

func (onceTranslator) Translate(_ context.Context, text string) (string, error) {
	return "[ko] " + text, nil
}

func TestTranslateOnce(t *testing.T) {
	store := settings.NewStore(settings.Defaults())
	var out bytes.Buffer
	err := translateOnce(context.Background(), onceDeps{
		store:      store,
		capturer:   onceCapturer{},
		recognizer: onceOCR{text: "Hello"},
		translator: onceTranslator{},
	}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if out.String() != "[ko] Hello\n" {
		t.Fatalf("output = %q", out.String())
	}
}

func TestTranslateOnceErrors(t *testing.T) {
	noRegion := settings.NewStore(settings.Defaults())
	if err := noRegion.Set(settings.KeyOCRRegion, nil); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		deps onceDeps
		want string
	}{
		{"no region", onceDeps{store: noRegion, capturer: onceCapturer{}, recognizer: onceOCR{text: "x"}, translator: onceTranslator{}}, "no capture region"},
		{"capture", onceDeps{store: settings.NewStore(settings.Defaults()), capturer: onceCapturer{err: errors.New("no display")}, recognizer: onceOCR{text: "x"}, translator: onceTranslator{}}, "no display"},
		{"empty", onceDeps{store: settings.NewStore(settings.Defaults()), capturer: onceCapturer{}, recognizer: onceOCR{}, translator: onceTranslator{}}, "no text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateOnce(context.Background(), tt.deps, &bytes.Buffer{})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}
