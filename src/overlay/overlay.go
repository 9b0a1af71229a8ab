// Package overlay shows translated text in a small borderless Fyne window.
package overlay

import (
	"strings"
	"sync"
	"unicode/utf8"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

// MaxRunes caps what the label is asked to lay out.
const MaxRunes = 2000

// Overlay is a pipeline.Sink. SetText may be called from any goroutine.
type Overlay struct {
	win   fyne.Window
	label *widget.Label

	mu   sync.Mutex
	text string
}

// New creates the overlay window. On desktop drivers a splash window is used
// so it has no title bar.
func New(a fyne.App, title string) *Overlay {
	var win fyne.Window
	if drv, ok := a.Driver().(desktop.Driver); ok {
		win = drv.CreateSplashWindow()
	} else {
		win = a.NewWindow(title)
	}
	label := widget.NewLabel("")
	label.Wrapping = fyne.TextWrapWord
	win.SetContent(container.NewPadded(label))
	win.Resize(fyne.NewSize(640, 120))
	return &Overlay{win: win, label: label}
}

// SetText replaces the displayed text.
func (o *Overlay) SetText(text string) {
	text = Clip(text)
	o.mu.Lock()
	if text == o.text {
		o.mu.Unlock()
		return
	}
	o.text = text
	o.mu.Unlock()
	fyne.Do(func() { o.label.SetText(text) })
}

// Text returns the last text passed to SetText, after clipping.
func (o *Overlay) Text() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.text
}

func (o *Overlay) Show() { fyne.Do(o.win.Show) }
func (o *Overlay) Hide() { fyne.Do(o.win.Hide) }

// Window exposes the underlying window (tests, placement).
func (o *Overlay) Window() fyne.Window { return o.win }

// Clip repairs invalid UTF-8 and shortens text beyond MaxRunes.
func Clip(text string) string {
	text = strings.ToValidUTF8(text, "\uFFFD")
	if utf8.RuneCountInString(text) <= MaxRunes {
		return text
	}
	n := 0
	for i := range text {
		if n == MaxRunes {
			return text[:i] + "..."
		}
		n++
	}
	return text
}
