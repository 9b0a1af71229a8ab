package notification

import (
	"strings"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"

	"screen-translate/src/logutil"
)

func TestErrorSendsNotification(t *testing.T) {
	a := test.NewTempApp(t)
	n := New(a, logutil.Discard())
	test.AssertNotificationSent(t, fyne.NewNotification("Translation stopped", "ocr init failed"), func() {
		n.Error("Translation stopped", "ocr init failed")
	})
}

func TestNilNotifierOnlyLogs(t *testing.T) {
	var n *Notifier
	n.Error("title", "message")
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("가", maxMessageRunes+10)
	got := truncate(long, maxMessageRunes)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != maxMessageRunes+3 {
		t.Fatalf("truncate produced %d runes", len([]rune(got)))
	}
	if truncate("short", maxMessageRunes) != "short" {
		t.Fatal("short text changed")
	}
}
