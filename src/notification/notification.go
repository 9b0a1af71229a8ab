// Package notification posts desktop notifications through the Fyne app.
package notification

import (
	"log/slog"

	"fyne.io/fyne/v2"
)

// maxMessageRunes keeps notification bodies short enough for every desktop.
const maxMessageRunes = 200

// Notifier is safe to use as a nil pointer; messages are then only logged.
type Notifier struct {
	app    fyne.App
	logger *slog.Logger
}

func New(a fyne.App, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{app: a, logger: logger.With("component", "notification")}
}

// Error reports a failure the user should see even with the overlay hidden.
func (n *Notifier) Error(title, message string) {
	message = truncate(message, maxMessageRunes)
	if n == nil || n.app == nil {
		slog.Error(title, "message", message)
		return
	}
	n.logger.Error(title, "message", message)
	n.app.SendNotification(fyne.NewNotification(title, message))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
