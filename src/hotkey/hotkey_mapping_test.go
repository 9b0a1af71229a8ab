package hotkey

import (
	"reflect"
	"sync/atomic"
	"testing"

	"screen-translate/src/logutil"
)

func TestKeyNameToRawcodes(t *testing.T) {
	tests := []struct {
		keyName  string
		expected []uint16
	}{
		// Modifier keys
		{"ctrl", []uint16{162, 163}},
		{"alt", []uint16{164, 165}},
		{"shift", []uint16{160, 161}},
		{"cmd", []uint16{91, 92}},

		// Letter keys
		{"a", []uint16{65}},
		{"c", []uint16{67}},
		{"z", []uint16{90}},
		{"Q", []uint16{81}},

		// Number keys
		{"0", []uint16{48}},
		{"9", []uint16{57}},

		// Function keys
		{"f1", []uint16{112}},
		{"f8", []uint16{119}},
		{"f12", []uint16{123}},
		{"f24", []uint16{135}},

		// Special keys
		{"space", []uint16{32}},
		{"enter", []uint16{13}},
		{"esc", []uint16{27}},

		// Unknown key
		{"unknown", nil},
		{"f25", nil},
	}

	for _, tt := range tests {
		t.Run(tt.keyName, func(t *testing.T) {
			if got := keyNameToRawcodes(tt.keyName); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("keyNameToRawcodes(%q) = %v, expected %v", tt.keyName, got, tt.expected)
			}
		})
	}
}

func TestParseHotkey(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"f8", []string{"f8"}},
		{"F8", []string{"f8"}},
		{"Ctrl+Shift+C", []string{"ctrl", "shift", "c"}},
		{"Ctrl+Alt+Q", []string{"ctrl", "alt", "q"}},
		{"Control+F9", []string{"ctrl", "f9"}},
		{"Ctrl+Win+E", []string{"ctrl", "cmd", "e"}},
		{"Super + Alt + T", []string{"cmd", "alt", "t"}},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseHotkey(tt.input); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("parseHotkey(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMatcherFiresOncePerPress(t *testing.T) {
	m := &matcher{}
	toggle, _ := parseCombo("f8")
	copyCombo, _ := parseCombo("Ctrl+Shift+C")
	m.add(toggle)
	m.add(copyCombo)

	if got := m.feed(true, 119); !reflect.DeepEqual(got, []int{0}) {
		t.Fatalf("F8 down fired %v", got)
	}
	if got := m.feed(true, 119); got != nil {
		t.Fatalf("auto-repeat fired %v", got)
	}
	m.feed(false, 119)
	if got := m.feed(true, 119); !reflect.DeepEqual(got, []int{0}) {
		t.Fatalf("second press fired %v", got)
	}

	m.feed(true, 163) // right ctrl
	m.feed(true, 160) // left shift
	if got := m.feed(true, 67); !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("Ctrl+Shift+C fired %v", got)
	}
}

func TestMatcherRequiresAllKeys(t *testing.T) {
	m := &matcher{}
	c, _ := parseCombo("Ctrl+Shift+C")
	m.add(c)

	m.feed(true, 162)
	if got := m.feed(true, 67); got != nil {
		t.Fatalf("Ctrl+C fired %v", got)
	}
	m.feed(false, 162)
	m.feed(true, 160)
	if got := m.feed(true, 67); got != nil {
		t.Fatalf("Shift+C fired %v", got)
	}
}

func TestSetSkipsUnknownKeys(t *testing.T) {
	l := NewListener(logutil.Discard())
	var fired atomic.Int32
	errs := l.Set([]Binding{
		{Name: "toggle", Combo: "f8", Action: func() { fired.Add(1) }},
		{Name: "bogus", Combo: "Ctrl+Hyper", Action: func() { t.Error("bogus fired") }},
	})
	if len(errs) != 1 {
		t.Fatalf("errs = %v", errs)
	}
	l.handle(true, 119)
	if fired.Load() != 1 {
		t.Errorf("fired = %d", fired.Load())
	}
}
