package tray

import (
	"testing"

	"fyne.io/fyne/v2"
)

func TestToggleLabel(t *testing.T) {
	if toggleLabel(true) == toggleLabel(false) {
		t.Fatal("labels should differ")
	}
}

func TestItemsSkipNilActions(t *testing.T) {
	tr := &Tray{}
	items := tr.items(Actions{Toggle: func() {}, Quit: func() {}})
	// toggle, separator, quit
	if len(items) != 3 {
		t.Fatalf("got %d items", len(items))
	}
	if tr.toggle == nil || tr.toggle.Label != "Start translating" {
		t.Errorf("toggle = %+v", tr.toggle)
	}
	if !items[2].IsQuit {
		t.Error("last item should be the quit item")
	}
}

func TestItemsOrder(t *testing.T) {
	noop := func() {}
	tr := &Tray{}
	items := tr.items(Actions{Toggle: noop, Copy: noop, SelectRegion: noop, UsePrimary: noop, ResetRegion: noop, Reload: noop, Quit: noop})
	want := []string{"Start translating", "Copy translation", "Select region...", "Use primary display as region", "Reset region to default", "Reload settings", "", "Quit"}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i, w := range want {
		if items[i].Label != w {
			t.Errorf("item %d = %q, want %q", i, items[i].Label, w)
		}
	}
	if !items[len(items)-2].IsSeparator {
		t.Error("quit should follow a separator")
	}
}

func TestNilTrayIsSafe(t *testing.T) {
	var tr *Tray
	tr.SetRunning(true)
}

func TestIconResource(t *testing.T) {
	var r fyne.Resource = Icon
	if r.Name() == "" || len(r.Content()) == 0 {
		t.Fatal("icon resource is empty")
	}
}
