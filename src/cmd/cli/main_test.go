package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	got := normalizeLegacyArgs([]string{"ocr-tool", "-file", "a.png", "-json=true", "-v", "--ocr-only"})
	want := []string{"ocr-tool", "--file", "a.png", "--json=true", "-v", "--ocr-only"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPNGValidation(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{
			name:    "ValidPNG",
			data:    []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00},
			wantErr: false,
		},
		{
			name:    "InvalidMagic",
			data:    []byte{0x00, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a},
			wantErr: true,
		},
		{
			name:    "TooShort",
			data:    []byte{0x89, 'P', 'N', 'G'},
			wantErr: true,
		},
		{
			name:    "Empty",
			data:    []byte{},
			wantErr: true,
		},
		{
			name:    "TooLarge",
			data:    append(append([]byte{}, pngMagic...), make([]byte, maxFileSize)...),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePNG(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePNG() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type fakeRecognizer struct {
	text string
	err  error
}

func (fakeRecognizer) Ensure() error { return nil }
func (f fakeRecognizer) RecognizeErr(image.Image) (string, error) {
	return f.text, f.err
}

type fakeTranslator struct{ calls int }

func (f *fakeTranslator) Translate(_ context.Context, text string) (string, error) {
	f.calls++
	return "번역: " + text, nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestProcessPlainOutput(t *testing.T) {
	var out, errOut bytes.Buffer
	tr := &fakeTranslator{}
	tl := &tool{recognizer: fakeRecognizer{text: "Hello"}, translator: tr, engine: "deepl", stdout: &out, stderr: &errOut}
	if err := tl.process(context.Background(), testPNG(t), "a.png", false); err != nil {
		t.Fatal(err)
	}
	if out.String() != "번역: Hello" {
		t.Fatalf("stdout = %q", out.String())
	}
	if errOut.Len() != 0 {
		t.Fatalf("stderr should be empty without verbose: %q", errOut.String())
	}
}

func TestProcessJSONOutput(t *testing.T) {
	var out bytes.Buffer
	tl := &tool{recognizer: fakeRecognizer{text: "안녕"}, translator: &fakeTranslator{}, engine: "deepl", stdout: &out, stderr: &bytes.Buffer{}}
	if err := tl.process(context.Background(), testPNG(t), "-", true); err != nil {
		t.Fatal(err)
	}
	var r Result
	if err := json.Unmarshal(out.Bytes(), &r); err != nil {
		t.Fatal(err)
	}
	if r.Text != "안녕" || r.CharCount != 2 || r.Engine != "deepl" || r.Source != "-" {
		t.Fatalf("result = %+v", r)
	}
}

func TestProcessOCROnlySkipsTranslation(t *testing.T) {
	var out bytes.Buffer
	tl := &tool{recognizer: fakeRecognizer{text: "Hello"}, stdout: &out, stderr: &bytes.Buffer{}}
	if err := tl.process(context.Background(), testPNG(t), "a.png", false); err != nil {
		t.Fatal(err)
	}
	if out.String() != "Hello" {
		t.Fatalf("stdout = %q", out.String())
	}
}

func TestProcessVerboseGoesToStderr(t *testing.T) {
	var out, errOut bytes.Buffer
	tl := &tool{recognizer: fakeRecognizer{text: "Hi"}, translator: &fakeTranslator{}, stdout: &out, stderr: &errOut, verbose: true}
	if err := tl.process(context.Background(), testPNG(t), "a.png", false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(errOut.String(), "[verbose]") || strings.Contains(out.String(), "[verbose]") {
		t.Fatalf("stdout=%q stderr=%q", out.String(), errOut.String())
	}
}

func TestProcessErrors(t *testing.T) {
	tl := &tool{recognizer: fakeRecognizer{err: errors.New("tesseract crashed")}, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	if err := tl.process(context.Background(), testPNG(t), "a.png", false); err == nil || !strings.Contains(err.Error(), "OCR failed") {
		t.Fatalf("err = %v", err)
	}
	broken := append(append([]byte{}, pngMagic...), 1, 2, 3)
	if err := tl.process(context.Background(), broken, "a.png", false); err == nil || !strings.Contains(err.Error(), "decode") {
		t.Fatalf("err = %v", err)
	}
}

func TestEmptyTextIsNotTranslated(t *testing.T) {
	tr := &fakeTranslator{}
	tl := &tool{recognizer: fakeRecognizer{}, translator: tr, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	if err := tl.process(context.Background(), testPNG(t), "a.png", false); err != nil {
		t.Fatal(err)
	}
	if tr.calls != 0 {
		t.Fatalf("translator called %d times", tr.calls)
	}
}

func TestMissingFileFlag(t *testing.T) {
	if err := runWithArgs([]string{"ocr-tool"}); err == nil {
		t.Fatal("expected required flag error")
	}
}
