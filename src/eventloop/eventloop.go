// Package eventloop is the resident's single coordinator. Hotkeys, tray items
// and control requests all become actions processed one at a time on the
// loop goroutine, so the capture controller and the settings file never see
// concurrent commands.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"screen-translate/src/control"
	"screen-translate/src/gui"
	"screen-translate/src/hotkey"
	"screen-translate/src/pipeline"
	"screen-translate/src/settings"
)

// Actions that only the resident itself raises.
const (
	ActionCopy         control.Action = "copy"
	ActionUsePrimary   control.Action = "use_primary"
	ActionSelectRegion control.Action = "select_region"
	ActionResetRegion  control.Action = "reset_region"
	ActionQuit         control.Action = "quit"

	// actionRetryStart is posted once a stopping run has finished.
	actionRetryStart control.Action = "retry_start"
)

// ErrStopped is returned by Do once the loop has exited.
var ErrStopped = errors.New("event loop stopped")

// Controller is the part of pipeline.Controller the loop drives.
type Controller interface {
	Start(sink pipeline.Sink) bool
	Stop()
	Wait()
	IsRunning() bool
	Status() pipeline.Status
}

type Reinitializer interface {
	Reinitialize() error
}

type Hotkeys interface {
	Set(bindings []hotkey.Binding) []error
}

// Deps wires the loop to the rest of the resident. Optional fields may be nil.
type Deps struct {
	Store        *settings.Store
	SettingsPath string
	Controller   Controller
	Sink         pipeline.Sink

	Recognizer Reinitializer
	Hotkeys    Hotkeys
	CopyHotkey string

	// OnRunning reports loop state changes (tray label, overlay visibility).
	OnRunning func(running bool)
	// Copy writes text to the clipboard.
	Copy func(text string) error
	// PrimaryBounds returns the primary display rectangle.
	PrimaryBounds func() (image.Rectangle, error)
	// SelectRegion lets the user drag out a capture region; current is the
	// region in use, empty if none. It blocks the loop until the picker closes.
	SelectRegion func(ctx context.Context, current image.Rectangle) (image.Rectangle, error)
	// Notify shows an error to the user outside the overlay.
	Notify func(title, message string)

	Logger *slog.Logger
}

type request struct {
	action control.Action
	reply  chan reply
}

type reply struct {
	status pipeline.Status
	err    error
}

type Loop struct {
	deps Deps
	log  *slog.Logger

	requests chan request
	exited   chan error
	done     chan struct{}

	// pendingStart is set while a start waits for the previous run to
	// finish. Only the loop goroutine touches it.
	pendingStart bool
}

func New(deps Deps) *Loop {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	l := &Loop{
		deps:     deps,
		log:      deps.Logger.With("component", "eventloop"),
		requests: make(chan request, 8),
		exited:   make(chan error, 1),
		done:     make(chan struct{}),
	}
	deps.Store.OnChange(l.settingsChanged)
	return l
}

// Post queues an action without waiting for it. Used by hotkey and tray
// callbacks; the action is dropped when the queue is full.
func (l *Loop) Post(action control.Action) {
	select {
	case l.requests <- request{action: action}:
	default:
		l.log.Warn("action dropped, loop busy", "action", action)
	}
}

// Do runs action on the loop and returns the resulting status. It implements
// control.Backend.
func (l *Loop) Do(ctx context.Context, action control.Action) (pipeline.Status, error) {
	req := request{action: action, reply: make(chan reply, 1)}
	select {
	case l.requests <- req:
	case <-l.done:
		return pipeline.Status{}, ErrStopped
	case <-ctx.Done():
		return pipeline.Status{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.status, r.err
	case <-l.done:
		return pipeline.Status{}, ErrStopped
	case <-ctx.Done():
		return pipeline.Status{}, ctx.Err()
	}
}

func (l *Loop) Status() pipeline.Status { return l.deps.Controller.Status() }

// LoopExited is the controller's OnExit hook. It lets the loop refresh the
// indicators when the capture loop ends on its own.
func (l *Loop) LoopExited(err error) {
	select {
	case l.exited <- err:
	default:
	}
}

// BindHotkeys registers the toggle and copy hotkeys from the current settings.
func (l *Loop) BindHotkeys() {
	if l.deps.Hotkeys == nil {
		return
	}
	l.deps.Hotkeys.Set(l.bindings(l.deps.Store.Snapshot()))
}

func (l *Loop) bindings(s settings.Settings) []hotkey.Binding {
	var b []hotkey.Binding
	if s.GlobalHotkey && s.Hotkey != "" {
		b = append(b, hotkey.Binding{Name: "toggle", Combo: s.Hotkey, Action: func() { l.Post(control.ActionToggle) }})
	}
	if l.deps.CopyHotkey != "" {
		b = append(b, hotkey.Binding{Name: "copy", Combo: l.deps.CopyHotkey, Action: func() { l.Post(ActionCopy) }})
	}
	return b
}

// Run processes actions until ctx is cancelled or a quit action arrives. The
// capture loop is stopped before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	defer l.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-l.exited:
			if err != nil {
				l.log.Error("capture loop ended", "error", err)
				l.alert("Translation stopped", err)
			}
			l.notify(l.deps.Controller.IsRunning())
		case req := <-l.requests:
			st, err := l.handle(ctx, req.action)
			if req.reply != nil {
				req.reply <- reply{status: st, err: err}
			}
			if req.action == ActionQuit {
				return nil
			}
		}
	}
}

func (l *Loop) shutdown() {
	l.deps.Controller.Stop()
	l.deps.Controller.Wait()
	l.notify(false)
}

func (l *Loop) handle(ctx context.Context, action control.Action) (pipeline.Status, error) {
	l.log.Debug("action", "action", action)
	var err error
	switch action {
	case control.ActionStart:
		l.start()
	case control.ActionStop:
		l.stop()
	case control.ActionToggle:
		switch {
		case l.deps.Controller.IsRunning():
			l.stop()
		case l.pendingStart:
			l.pendingStart = false
			l.log.Info("deferred start cancelled")
		default:
			l.start()
		}
	case actionRetryStart:
		if l.pendingStart {
			l.pendingStart = false
			l.start()
		}
	case control.ActionReload:
		err = l.reload()
	case ActionCopy:
		err = l.copyTranslation()
	case ActionUsePrimary:
		err = l.usePrimary()
	case ActionSelectRegion:
		err = l.selectRegion(ctx)
	case ActionResetRegion:
		err = l.setRegion(settings.Defaults().Region.Rect(), "default")
	case ActionQuit:
		l.log.Info("quit requested")
	default:
		err = fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		l.log.Error("action failed", "action", action, "error", err)
		l.alert(fmt.Sprintf("%s failed", action), err)
	}
	return l.deps.Controller.Status(), err
}

// start begins a run. When the previous run was stopped but is still
// finishing its cycle, the start is retried once that run has exited.
func (l *Loop) start() {
	if l.deps.Controller.Start(l.deps.Sink) {
		l.pendingStart = false
		l.notify(true)
		return
	}
	if l.deps.Controller.IsRunning() || l.pendingStart {
		return
	}
	l.pendingStart = true
	l.log.Info("start deferred, previous capture loop still stopping")
	go func() {
		l.deps.Controller.Wait()
		l.Post(actionRetryStart)
	}()
}

func (l *Loop) stop() {
	l.pendingStart = false
	l.deps.Controller.Stop()
	l.notify(false)
}

func (l *Loop) alert(title string, err error) {
	if l.deps.Notify != nil {
		l.deps.Notify(title, err.Error())
	}
}

func (l *Loop) notify(running bool) {
	if l.deps.OnRunning != nil {
		l.deps.OnRunning(running)
	}
}

// reload re-reads the settings file. On a decode error the current settings
// stay in effect.
func (l *Loop) reload() error {
	s, err := settings.Load(l.deps.SettingsPath)
	if err != nil {
		return fmt.Errorf("reload settings: %w", err)
	}
	l.deps.Store.Replace(s)
	l.log.Info("settings reloaded", "path", l.deps.SettingsPath)
	return nil
}

func (l *Loop) copyTranslation() error {
	text := l.deps.Controller.Status().LastTranslated
	if text == "" {
		l.log.Info("nothing to copy")
		return nil
	}
	if l.deps.Copy == nil {
		return errors.New("clipboard not available")
	}
	return l.deps.Copy(text)
}

func (l *Loop) usePrimary() error {
	if l.deps.PrimaryBounds == nil {
		return errors.New("display bounds not available")
	}
	rect, err := l.deps.PrimaryBounds()
	if err != nil {
		return fmt.Errorf("primary display: %w", err)
	}
	return l.setRegion(rect, "primary display")
}

// selectRegion shows the drag picker. Escape leaves the region unchanged
// and is not an error.
func (l *Loop) selectRegion(ctx context.Context) error {
	if l.deps.SelectRegion == nil {
		return errors.New("region picker not available")
	}
	var current image.Rectangle
	if r := l.deps.Store.Snapshot().Region; r != nil && r.Valid() {
		current = r.Rect()
	}
	rect, err := l.deps.SelectRegion(ctx, current)
	if errors.Is(err, gui.ErrCancelled) {
		l.log.Info("region selection cancelled")
		return nil
	}
	if err != nil {
		return fmt.Errorf("select region: %w", err)
	}
	return l.setRegion(rect, "selection")
}

func (l *Loop) setRegion(rect image.Rectangle, source string) error {
	region := settings.Region{Left: rect.Min.X, Top: rect.Min.Y, Right: rect.Max.X, Bottom: rect.Max.Y}
	if err := l.deps.Store.Set(settings.KeyOCRRegion, region); err != nil {
		return err
	}
	l.log.Info("capture region set", "source", source, "region", region.String())
	return l.save()
}

func (l *Loop) save() error {
	if l.deps.SettingsPath == "" {
		return nil
	}
	if err := settings.Save(l.deps.SettingsPath, l.deps.Store.Snapshot()); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// settingsChanged runs on whichever goroutine updated the store.
func (l *Loop) settingsChanged(old, cur settings.Settings) {
	if l.deps.Recognizer != nil && (old.SourceLang != cur.SourceLang || old.UseGPU != cur.UseGPU) {
		l.log.Info("recognizer settings changed", "source_lang", cur.SourceLang, "use_gpu", cur.UseGPU)
		if err := l.deps.Recognizer.Reinitialize(); err != nil {
			l.log.Error("recognizer reinitialization failed", "error", err)
		}
	}
	if l.deps.Hotkeys != nil && (old.Hotkey != cur.Hotkey || old.GlobalHotkey != cur.GlobalHotkey) {
		l.deps.Hotkeys.Set(l.bindings(cur))
	}
}
