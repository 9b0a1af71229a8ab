// Package pipeline runs the capture-recognize-translate loop that feeds the
// overlay.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corona10/goimagehash"

	"screen-translate/src/logutil"
	"screen-translate/src/metrics"
	"screen-translate/src/settings"
)

const (
	// MaxRepeat is the number of consecutive repeats of the same text after
	// which the cached translation is reused instead of calling the backend.
	MaxRepeat = 3

	// DefaultRetryDelay is the pause after a transient failure.
	DefaultRetryDelay = time.Second

	// maxHashDistance is the pHash Hamming distance (of 64 bits) at or below
	// which two frames count as the same picture.
	maxHashDistance = 3

	previewRunes = 50
)

// Capturer grabs a screen rectangle.
type Capturer interface {
	Capture(rect image.Rectangle) (*image.RGBA, error)
}

// Recognizer turns a frame into text. Ensure lazily builds the engine.
type Recognizer interface {
	Ensure() error
	Recognize(img image.Image) string
}

// Translator returns display text for recognized text. An error means the
// translation itself broke, not that the backend reported a failure.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Sink shows translated text.
type Sink interface {
	SetText(text string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(string)

func (f SinkFunc) SetText(text string) { f(text) }

// Status is a point-in-time view of the loop, published after every cycle.
type Status struct {
	Running        bool      `json:"running"`
	LastRecognized string    `json:"last_recognized"`
	LastTranslated string    `json:"last_translated"`
	RepeatCount    int       `json:"repeat_count"`
	Cycles         uint64    `json:"cycles"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Options struct {
	Settings   *settings.Store
	Capturer   Capturer
	Recognizer Recognizer
	Translator Translator
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	// RetryDelay is the pause after a transient failure; zero means
	// DefaultRetryDelay.
	RetryDelay time.Duration
	// OnExit, when set, is called from the loop goroutine as it exits, before
	// Wait returns. err is non-nil when the loop stopped itself.
	OnExit func(err error)
}

// Controller owns one loop. At most one loop goroutine exists at a time.
type Controller struct {
	opts Options
	log  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	running atomic.Bool
	cycles  atomic.Uint64
	status  atomic.Pointer[Status]
}

func New(opts Options) *Controller {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := &Controller{opts: opts, log: opts.Logger.With("component", "pipeline")}
	c.status.Store(&Status{})
	return c
}

// loopState is the dedup state of one run. Only the loop goroutine touches it.
type loopState struct {
	lastText       string
	lastTranslated string
	repeatCount    int

	lastHash *goimagehash.ImageHash
	lastOCR  string
}

// Start begins a fresh run that pushes results to sink. It returns false
// without touching the current run if a loop goroutine still exists, including
// one that was asked to stop but has not finished its cycle yet.
func (c *Controller) Start(sink Sink) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		select {
		case <-c.done:
		default:
			c.log.Info("start ignored, loop already running")
			return false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	c.running.Store(true)
	c.opts.Metrics.SetRunning(true)
	c.publish(&loopState{})

	go c.run(ctx, sink, done)
	c.log.Info("loop started")
	return true
}

// Stop asks the loop to exit. The in-flight call, if any, completes first.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil || !c.running.Load() {
		return
	}
	c.running.Store(false)
	c.cancel()
	c.log.Info("loop stop requested")
}

func (c *Controller) IsRunning() bool { return c.running.Load() }

// Wait blocks until the current loop goroutine, if any, has exited.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Status returns the last published status.
func (c *Controller) Status() Status {
	s := *c.status.Load()
	s.Running = c.running.Load()
	return s
}

func (c *Controller) publish(st *loopState) {
	c.status.Store(&Status{
		Running:        c.running.Load(),
		LastRecognized: st.lastText,
		LastTranslated: st.lastTranslated,
		RepeatCount:    st.repeatCount,
		Cycles:         c.cycles.Load(),
		UpdatedAt:      time.Now(),
	})
}

func (c *Controller) run(ctx context.Context, sink Sink, done chan struct{}) {
	var exitErr error
	st := &loopState{}
	defer close(done)
	defer func() {
		c.running.Store(false)
		c.opts.Metrics.SetRunning(false)
		c.publish(st)
		if exitErr != nil {
			c.log.Error("loop stopped", "error", exitErr)
		} else {
			c.log.Info("loop stopped")
		}
		if c.opts.OnExit != nil {
			c.opts.OnExit(exitErr)
		}
	}()

	for ctx.Err() == nil {
		delay, err := c.cycle(ctx, sink, st)
		c.publish(st)
		if err != nil {
			exitErr = err
			return
		}
		if !sleep(ctx, delay) {
			return
		}
	}
}

// cycle runs one capture-recognize-translate step and returns how long to
// sleep before the next one. A non-nil error ends the loop.
func (c *Controller) cycle(ctx context.Context, sink Sink, st *loopState) (time.Duration, error) {
	s := c.opts.Settings.Snapshot()
	interval := s.PollInterval()
	if interval <= 0 {
		interval = c.opts.RetryDelay
	}

	if s.Region == nil || !s.Region.Valid() {
		c.log.Debug("no capture region selected, waiting")
		return c.opts.RetryDelay, nil
	}

	start := time.Now()
	img, err := c.opts.Capturer.Capture(s.Region.Rect())
	if err != nil {
		c.opts.Metrics.CaptureFailed()
		c.log.Warn("screen capture failed", "region", s.Region.String(), "error", err)
		return c.opts.RetryDelay, nil
	}
	c.cycles.Add(1)
	defer func() { c.opts.Metrics.Cycle(time.Since(start)) }()

	if err := c.opts.Recognizer.Ensure(); err != nil {
		c.opts.Metrics.LoopError("recognizer")
		return 0, fmt.Errorf("OCR engine unavailable: %w", err)
	}
	text := c.recognize(img, s.SkipSimilarFrames, st)
	if text == "" {
		c.opts.Metrics.EmptyText()
		return interval, nil
	}

	if text == st.lastText {
		if st.repeatCount < MaxRepeat {
			st.repeatCount++
		}
		if st.repeatCount >= MaxRepeat {
			c.opts.Metrics.TranslationReused()
		} else {
			translated, err := c.translate(ctx, text)
			if err != nil {
				if ctx.Err() != nil {
					return 0, nil
				}
				c.opts.Metrics.LoopError("translate")
				c.log.Error("translation failed", "text", logutil.Preview(text, previewRunes), "error", err)
				return interval, nil
			}
			st.lastTranslated = translated
		}
	} else {
		st.lastText = text
		st.repeatCount = 0
		c.log.Info("new text recognized", "text", logutil.Preview(text, previewRunes))
		translated, err := c.translate(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return 0, nil
			}
			c.opts.Metrics.LoopError("translate")
			c.log.Error("translation failed", "text", logutil.Preview(text, previewRunes), "error", err)
			return c.opts.RetryDelay, nil
		}
		st.lastTranslated = translated
		c.log.Info("translated", "text", logutil.Preview(translated, previewRunes))
	}

	c.publish(st)
	c.push(sink, st.lastTranslated)
	return interval, nil
}

// recognize runs OCR, or reuses the previous result when similar-frame
// skipping is on and the frame matches the last one.
func (c *Controller) recognize(img *image.RGBA, skipSimilar bool, st *loopState) string {
	if !skipSimilar {
		st.lastHash = nil
		return c.opts.Recognizer.Recognize(img)
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		c.log.Debug("perceptual hash failed", "error", err)
		st.lastHash = nil
		return c.opts.Recognizer.Recognize(img)
	}
	if st.lastHash != nil {
		if dist, err := st.lastHash.Distance(hash); err == nil && dist <= maxHashDistance {
			c.opts.Metrics.FrameSkipped()
			c.log.Debug("skipping OCR for similar frame", "distance", dist)
			return st.lastOCR
		}
	}
	st.lastHash = hash
	st.lastOCR = c.opts.Recognizer.Recognize(img)
	return st.lastOCR
}

func (c *Controller) translate(ctx context.Context, text string) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = "", fmt.Errorf("translator panicked: %v", p)
		}
	}()
	return c.opts.Translator.Translate(ctx, text)
}

func (c *Controller) push(sink Sink, text string) {
	if sink == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			c.opts.Metrics.LoopError("sink")
			c.log.Error("overlay update failed", "panic", p)
		}
	}()
	sink.SetText(text)
}

// sleep waits for d or until ctx is done. It reports whether the loop should
// continue.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
