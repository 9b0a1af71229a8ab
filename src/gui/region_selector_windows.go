//go:build windows

package gui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"

	"screen-translate/src/screenshot"
)

const (
	keyPollTimerID    = 1
	keyPollIntervalMs = 25

	// wmCancel is WM_APP+1. It is posted to the picker when ctx ends.
	wmCancel = 0x8000 + 1

	selectionHint = "Drag to select the capture region, ESC cancels"

	psSolid = 0
	psDash  = 1 // Only honored for 1px pens.

	// COLORREF values are 0x00BBGGRR.
	colorRed   = 0x0000FF
	colorGreen = 0x00FF00
)

var (
	user32                       = syscall.NewLazyDLL("user32.dll")
	gdi32                        = syscall.NewLazyDLL("gdi32.dll")
	procAllowSetForegroundWindow = user32.NewProc("AllowSetForegroundWindow")
	procGetAsyncKeyState         = user32.NewProc("GetAsyncKeyState")
	procCreatePen                = gdi32.NewProc("CreatePen")
	procRectangle                = gdi32.NewProc("Rectangle")

	// Callbacks are never freed, so there is exactly one.
	wndProcCallback = syscall.NewCallback(wndProc)
)

// overlay is the picker being shown. Only the thread that owns the window
// touches it, from selectRect and wndProc.
type overlay struct {
	log    *slog.Logger
	origin image.Point
	size   image.Point
	bgra   []byte
	cursor win.HCURSOR

	// current is the region in use, in client coordinates.
	current image.Rectangle

	dragging   bool
	start, end image.Point
	escWasDown bool
	quitting   bool
	result     chan image.Rectangle
}

var active *overlay

func selectRect(ctx context.Context, log *slog.Logger, current image.Rectangle) (image.Rectangle, error) {
	// Window messages are delivered to the creating thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	vx := win.GetSystemMetrics(win.SM_XVIRTUALSCREEN)
	vy := win.GetSystemMetrics(win.SM_YVIRTUALSCREEN)
	vw := win.GetSystemMetrics(win.SM_CXVIRTUALSCREEN)
	vh := win.GetSystemMetrics(win.SM_CYVIRTUALSCREEN)
	virt := image.Rect(int(vx), int(vy), int(vx+vw), int(vy+vh))
	log.Debug("virtual screen", "bounds", virt.String())

	bg, err := screenshot.Screen{}.Capture(virt)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("capture picker background: %w", err)
	}

	ov := &overlay{
		log:    log,
		origin: virt.Min,
		size:   virt.Size(),
		bgra:   toBGRA(bg, virt.Size()),
		cursor: win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS)),
		result: make(chan image.Rectangle, 1),
	}
	if !current.Empty() {
		ov.current = current.Sub(virt.Min)
	}
	active = ov
	defer func() { active = nil }()

	className := syscall.StringToUTF16Ptr(fmt.Sprintf("ScreenTranslateRegion_%d", time.Now().UnixNano()))
	wc := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		Style:         win.CS_HREDRAW | win.CS_VREDRAW,
		LpfnWndProc:   wndProcCallback,
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       ov.cursor,
		LpszClassName: className,
	}
	if win.RegisterClassEx(&wc) == 0 {
		return image.Rectangle{}, errors.New("failed to register picker window class")
	}
	defer win.UnregisterClass(className)

	hwnd := win.CreateWindowEx(
		win.WS_EX_TOPMOST|win.WS_EX_TOOLWINDOW,
		className,
		syscall.StringToUTF16Ptr(selectionHint),
		win.WS_POPUP|win.WS_VISIBLE,
		vx, vy, vw, vh,
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if hwnd == 0 {
		return image.Rectangle{}, errors.New("failed to create picker window")
	}
	defer win.DestroyWindow(hwnd)

	win.ShowWindow(hwnd, win.SW_SHOW)
	procAllowSetForegroundWindow.Call(uintptr(os.Getpid()))
	win.SetForegroundWindow(hwnd)
	win.BringWindowToTop(hwnd)
	win.SetFocus(hwnd)
	win.UpdateWindow(hwnd)
	// Focus is not guaranteed, so Escape is also polled.
	if win.SetTimer(hwnd, keyPollTimerID, keyPollIntervalMs, 0) == 0 {
		log.Warn("escape key polling unavailable")
	}

	stop := context.AfterFunc(ctx, func() { win.PostMessage(hwnd, wmCancel, 0, 0) })
	defer stop()

	var msg win.MSG
	for {
		switch win.GetMessage(&msg, 0, 0, 0) {
		case 0:
			if err := ctx.Err(); err != nil {
				return image.Rectangle{}, err
			}
			return image.Rectangle{}, ErrCancelled
		case -1:
			return image.Rectangle{}, errors.New("picker message loop failed")
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)

		select {
		case r := <-ov.result:
			return r, nil
		default:
		}
	}
}

func wndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	ov := active
	if ov == nil {
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	}

	switch msg {
	case win.WM_LBUTTONDOWN:
		win.SetCapture(hwnd)
		ov.dragging = true
		ov.start = clientPoint(lParam)
		ov.end = ov.start
		repaint(hwnd)
		return 0

	case win.WM_MOUSEMOVE:
		if ov.dragging {
			ov.end = clientPoint(lParam)
			repaint(hwnd)
		}
		return 0

	case win.WM_LBUTTONUP:
		if !ov.dragging {
			return 0
		}
		win.ReleaseCapture()
		ov.dragging = false
		ov.end = clientPoint(lParam)
		r, ok := dragRect(ov.start, ov.end, ov.origin)
		if !ok {
			ov.log.Debug("selection too small, ignoring", "region", r.String())
			repaint(hwnd)
			return 0
		}
		select {
		case ov.result <- r:
		default:
		}
		return 0

	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		ov.paint(hdc)
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_SETCURSOR:
		if ov.cursor != 0 {
			win.SetCursor(ov.cursor)
		}
		return 1

	case win.WM_TIMER:
		if wParam == keyPollTimerID {
			ov.pollEscape()
		}
		return 0

	case win.WM_KEYDOWN:
		if wParam == win.VK_ESCAPE {
			ov.escWasDown = true
			ov.quit()
		}
		return 0

	case win.WM_KEYUP:
		if wParam == win.VK_ESCAPE {
			ov.escWasDown = false
		}
		return 0

	case wmCancel:
		ov.quit()
		return 0

	case win.WM_NCHITTEST:
		return uintptr(win.HTCLIENT)

	case win.WM_DESTROY:
		win.KillTimer(hwnd, keyPollTimerID)
		// No PostQuitMessage here: a leftover WM_QUIT would end the next
		// picker as soon as it opens.
		return 0
	}
	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

// quit ends the message loop. At most one WM_QUIT is posted per picker.
func (ov *overlay) quit() {
	if ov.quitting {
		return
	}
	ov.quitting = true
	win.PostQuitMessage(0)
}

func (ov *overlay) pollEscape() {
	state, _, _ := procGetAsyncKeyState.Call(uintptr(win.VK_ESCAPE))
	s := uint16(state)
	down := s&0x8000 != 0
	if !ov.escWasDown && (down || s&0x0001 != 0) {
		ov.log.Debug("escape detected by polling")
		ov.quit()
	}
	ov.escWasDown = down
}

func (ov *overlay) paint(hdc win.HDC) {
	ov.drawBackground(hdc)

	win.SetBkMode(hdc, win.TRANSPARENT)
	win.SetTextColor(hdc, win.COLORREF(0x00FFFF))
	win.TextOut(hdc, 16, 16, syscall.StringToUTF16Ptr(selectionHint), int32(len(selectionHint)))

	if !ov.current.Empty() {
		drawRect(hdc, ov.current, psDash, 1, colorGreen)
	}
	if ov.dragging {
		drawRect(hdc, image.Rectangle{Min: ov.start, Max: ov.end}.Canon(), psSolid, 3, colorRed)
	}
}

func (ov *overlay) drawBackground(hdc win.HDC) {
	w, h := ov.size.X, ov.size.Y
	memDC := win.CreateCompatibleDC(hdc)
	defer win.DeleteDC(memDC)

	header := win.BITMAPINFOHEADER{
		BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
		BiWidth:       int32(w),
		BiHeight:      -int32(h), // top-down
		BiPlanes:      1,
		BiBitCount:    32,
		BiCompression: win.BI_RGB,
	}
	var bits unsafe.Pointer
	bmp := win.CreateDIBSection(memDC, &header, win.DIB_RGB_COLORS, &bits, 0, 0)
	if bmp == 0 || bits == nil {
		return
	}
	defer win.DeleteObject(win.HGDIOBJ(bmp))
	old := win.SelectObject(memDC, win.HGDIOBJ(bmp))
	defer win.SelectObject(memDC, old)

	copy(unsafe.Slice((*byte)(bits), len(ov.bgra)), ov.bgra)
	win.BitBlt(hdc, 0, 0, int32(w), int32(h), memDC, 0, 0, win.SRCCOPY)
}

func drawRect(hdc win.HDC, r image.Rectangle, style, width int, color uint32) {
	pen, _, _ := procCreatePen.Call(uintptr(style), uintptr(width), uintptr(color))
	oldPen := win.SelectObject(hdc, win.HGDIOBJ(pen))
	oldBrush := win.SelectObject(hdc, win.GetStockObject(win.NULL_BRUSH))
	procRectangle.Call(uintptr(hdc), uintptr(r.Min.X), uintptr(r.Min.Y), uintptr(r.Max.X), uintptr(r.Max.Y))
	win.SelectObject(hdc, oldPen)
	win.SelectObject(hdc, oldBrush)
	win.DeleteObject(win.HGDIOBJ(pen))
}

func repaint(hwnd win.HWND) {
	win.InvalidateRect(hwnd, nil, false)
	win.UpdateWindow(hwnd)
}

// clientPoint decodes the signed client coordinates packed in lParam.
func clientPoint(lParam uintptr) image.Point {
	return image.Pt(int(int16(win.LOWORD(uint32(lParam)))), int(int16(win.HIWORD(uint32(lParam)))))
}
