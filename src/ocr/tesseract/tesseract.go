// Package tesseract provides an ocr.Engine backed by the Tesseract library
// through gosseract.
package tesseract

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strings"
	"sync"

	"github.com/otiai10/gosseract"

	"screen-translate/src/ocr"
	"screen-translate/src/screenshot"
)

// traineddata names for the OCR tags produced by ocr.LanguagesFor.
var tessLang = map[string]string{
	"en":     "eng",
	"ja":     "jpn",
	"ch_sim": "chi_sim",
	"ko":     "kor",
}

// Tags converts OCR tags to Tesseract language names, dropping duplicates.
// Unknown tags are passed through unchanged.
func Tags(languages []string) []string {
	out := make([]string, 0, len(languages))
	seen := make(map[string]bool, len(languages))
	for _, l := range languages {
		t, ok := tessLang[l]
		if !ok {
			t = l
		}
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		out = append(out, "eng")
	}
	return out
}

// Engine wraps one gosseract client. The client is not goroutine-safe so
// calls are serialized.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// New is an ocr.Factory. Tesseract has no GPU path, so gpu only produces a
// log line.
func New(languages []string, gpu bool) (ocr.Engine, error) {
	if gpu {
		slog.Warn("tesseract: GPU mode requested but not supported, using CPU")
	}
	client := gosseract.NewClient()
	tags := Tags(languages)
	if err := client.SetLanguage(tags...); err != nil {
		client.Close()
		return nil, fmt.Errorf("tesseract: set language %v: %w", tags, err)
	}
	e := &Engine{client: client}
	// Missing traineddata only surfaces on the first recognition, so run one
	// now to fail at init instead of inside the loop.
	if _, err := e.Lines(warmupImage()); err != nil {
		client.Close()
		return nil, fmt.Errorf("tesseract: warm-up with %v: %w", tags, err)
	}
	return e, nil
}

func (e *Engine) Lines(img image.Image) ([]string, error) {
	if img == nil {
		return nil, fmt.Errorf("tesseract: nil image")
	}
	data, err := screenshot.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil, fmt.Errorf("tesseract: engine closed")
	}
	if err := e.client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("tesseract: set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract: recognize: %w", err)
	}
	return splitLines(text), nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

// splitLines drops blank lines and trailing whitespace from Tesseract output.
func splitLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if l = strings.TrimRight(l, " \t\f"); strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func warmupImage() image.Image {
	img := image.NewGray(image.Rect(0, 0, 32, 16))
	for i := range img.Pix {
		img.Pix[i] = uint8(color.White.Y >> 8)
	}
	return img
}
