// Package hotkey listens for global key combinations through gohook.
package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// Binding pairs a combination such as "Ctrl+Shift+C" or "f8" with an action.
type Binding struct {
	Name   string
	Combo  string
	Action func()
}

// Listener dispatches gohook key events to bindings. Only one gohook stream
// exists per process, so all bindings share one Listener.
type Listener struct {
	logger *slog.Logger

	mu      sync.Mutex
	matcher *matcher
	actions []func()
	names   []string
	cancel  context.CancelFunc
}

func NewListener(logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{logger: logger.With("component", "hotkey")}
}

// Set replaces the active bindings. Bindings whose keys cannot be mapped are
// skipped with an error in the returned slice.
func (l *Listener) Set(bindings []Binding) []error {
	var errs []error
	m := &matcher{}
	var actions []func()
	var names []string
	for _, b := range bindings {
		combo, err := parseCombo(b.Combo)
		if err != nil {
			errs = append(errs, fmt.Errorf("hotkey %s: %w", b.Name, err))
			l.logger.Error("cannot register hotkey", "name", b.Name, "combo", b.Combo, "error", err)
			continue
		}
		m.add(combo)
		actions = append(actions, b.Action)
		names = append(names, b.Name)
		l.logger.Info("hotkey registered", "name", b.Name, "combo", b.Combo)
	}
	l.mu.Lock()
	l.matcher, l.actions, l.names = m, actions, names
	l.mu.Unlock()
	return errs
}

// Start begins consuming gohook events until ctx is cancelled or Stop is
// called. It is a no-op when already started.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.cancel != nil {
		l.mu.Unlock()
		return nil
	}
	evChan := gohook.Start()
	if evChan == nil {
		l.mu.Unlock()
		return fmt.Errorf("gohook.Start returned nil channel")
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("panic in hotkey goroutine", "panic", r)
			}
		}()
		<-ctx.Done()
		gohook.End()
	}()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("panic in hotkey goroutine", "panic", r)
			}
		}()
		for ev := range evChan {
			if ev.Kind != gohook.KeyDown && ev.Kind != gohook.KeyUp {
				continue
			}
			l.handle(ev.Kind == gohook.KeyDown, ev.Rawcode)
		}
		l.logger.Debug("hotkey event channel closed")
	}()
	return nil
}

// Stop ends the gohook stream.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (l *Listener) handle(down bool, rawcode uint16) {
	l.mu.Lock()
	if l.matcher == nil {
		l.mu.Unlock()
		return
	}
	var fire []func()
	for _, i := range l.matcher.feed(down, rawcode) {
		l.logger.Debug("hotkey activated", "name", l.names[i])
		fire = append(fire, l.actions[i])
	}
	l.mu.Unlock()

	for _, fn := range fire {
		if fn != nil {
			fn()
		}
	}
}

// combo is one binding: every key must be down at the same time. Each key
// accepts any of its rawcodes (left and right modifiers).
type combo [][]uint16

type matcher struct {
	combos  []combo
	pressed [][]bool
	// latched is set after a combo fires and cleared when one of its keys is
	// released, so auto-repeat does not fire it again.
	latched []bool
}

func (m *matcher) add(c combo) {
	m.combos = append(m.combos, c)
	m.pressed = append(m.pressed, make([]bool, len(c)))
	m.latched = append(m.latched, false)
}

// feed applies one key event and returns the combos it completed.
func (m *matcher) feed(down bool, rawcode uint16) []int {
	var fired []int
	for ci, c := range m.combos {
		hit := false
		for ki, codes := range c {
			if containsCode(codes, rawcode) {
				m.pressed[ci][ki] = down
				hit = true
			}
		}
		if !hit {
			continue
		}
		if !down {
			m.latched[ci] = false
			continue
		}
		if m.latched[ci] {
			continue
		}
		all := true
		for _, p := range m.pressed[ci] {
			if !p {
				all = false
				break
			}
		}
		if all {
			fired = append(fired, ci)
			m.latched[ci] = true
		}
	}
	return fired
}

func containsCode(codes []uint16, code uint16) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func parseCombo(s string) (combo, error) {
	keys := parseHotkey(s)
	if len(keys) == 0 {
		return nil, fmt.Errorf("empty hotkey")
	}
	c := make(combo, 0, len(keys))
	for _, k := range keys {
		codes := keyNameToRawcodes(k)
		if len(codes) == 0 {
			return nil, fmt.Errorf("unknown key %q in %q", k, s)
		}
		c = append(c, codes)
	}
	return c, nil
}

// parseHotkey converts "Ctrl+Alt+q" to normalized key names.
func parseHotkey(hotkeyConfig string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(hotkeyConfig), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			part = "ctrl"
		case "win", "cmd", "super", "meta":
			part = "cmd"
		}
		keys = append(keys, part)
	}
	return keys
}

// Windows virtual-key codes, which gohook reports as Rawcode there.
var rawcodes = map[string][]uint16{
	"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":   {164, 165}, // VK_LMENU, VK_RMENU
	"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"cmd":   {91, 92},   // VK_LWIN, VK_RWIN

	"space":      {32},
	"enter":      {13},
	"return":     {13},
	"esc":        {27},
	"escape":     {27},
	"tab":        {9},
	"backspace":  {8},
	"delete":     {46},
	"del":        {46},
	"insert":     {45},
	"ins":        {45},
	"home":       {36},
	"end":        {35},
	"pageup":     {33},
	"pgup":       {33},
	"pagedown":   {34},
	"pgdn":       {34},
	"left":       {37},
	"up":         {38},
	"right":      {39},
	"down":       {40},
	"pause":      {19},
	"scrolllock": {145},
	"`":          {192}, // VK_OEM_3
}

func init() {
	for c := 'a'; c <= 'z'; c++ {
		rawcodes[string(c)] = []uint16{uint16('A' + (c - 'a'))}
	}
	for d := '0'; d <= '9'; d++ {
		rawcodes[string(d)] = []uint16{uint16(d)}
	}
	for i := 1; i <= 24; i++ {
		rawcodes[fmt.Sprintf("f%d", i)] = []uint16{uint16(111 + i)} // VK_F1 = 112
	}
}

func keyNameToRawcodes(keyName string) []uint16 {
	return rawcodes[strings.ToLower(strings.TrimSpace(keyName))]
}
