// Package tray installs the system-tray menu on desktop drivers.
package tray

import (
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
)

// Actions are the callbacks behind the menu items. Nil entries hide the item.
type Actions struct {
	Toggle       func()
	Copy         func()
	SelectRegion func()
	UsePrimary   func()
	ResetRegion  func()
	Reload       func()
	Quit         func()
}

// Tray owns the menu so item labels can follow the loop state.
type Tray struct {
	desk   desktop.App
	menu   *fyne.Menu
	toggle *fyne.MenuItem
}

// Install sets the tray icon and menu. It returns nil when the app has no
// system tray (mobile or test drivers).
func Install(a fyne.App, title string, actions Actions) *Tray {
	desk, ok := a.(desktop.App)
	if !ok {
		slog.Info("system tray not available on this driver")
		return nil
	}
	t := &Tray{desk: desk}
	t.menu = fyne.NewMenu(title, t.items(actions)...)
	desk.SetSystemTrayIcon(Icon)
	desk.SetSystemTrayMenu(t.menu)
	return t
}

func (t *Tray) items(a Actions) []*fyne.MenuItem {
	var items []*fyne.MenuItem
	if a.Toggle != nil {
		t.toggle = fyne.NewMenuItem(toggleLabel(false), a.Toggle)
		items = append(items, t.toggle)
	}
	if a.Copy != nil {
		items = append(items, fyne.NewMenuItem("Copy translation", a.Copy))
	}
	if a.SelectRegion != nil {
		items = append(items, fyne.NewMenuItem("Select region...", a.SelectRegion))
	}
	if a.UsePrimary != nil {
		items = append(items, fyne.NewMenuItem("Use primary display as region", a.UsePrimary))
	}
	if a.ResetRegion != nil {
		items = append(items, fyne.NewMenuItem("Reset region to default", a.ResetRegion))
	}
	if a.Reload != nil {
		items = append(items, fyne.NewMenuItem("Reload settings", a.Reload))
	}
	if a.Quit != nil {
		items = append(items, fyne.NewMenuItemSeparator())
		q := fyne.NewMenuItem("Quit", a.Quit)
		q.IsQuit = true
		items = append(items, q)
	}
	return items
}

// SetRunning relabels the toggle item. Safe on a nil Tray.
func (t *Tray) SetRunning(running bool) {
	if t == nil || t.toggle == nil {
		return
	}
	fyne.Do(func() {
		t.toggle.Label = toggleLabel(running)
		t.menu.Refresh()
	})
}

func toggleLabel(running bool) string {
	if running {
		return "Stop translating"
	}
	return "Start translating"
}
