// Package settings holds the user-editable settings shared by the UI and the
// capture loop. Reads and writes may happen from different goroutines; the last
// write wins.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
)

// Setting keys as they appear in settings.json.
const (
	KeyOCRRegion         = "OCR_REGION"
	KeyOCRInterval       = "OCR_INTERVAL"
	KeySourceLang        = "SOURCE_LANG"
	KeyTargetLang        = "TARGET_LANG"
	KeyAutoDetectLang    = "AUTO_DETECT_LANG"
	KeyEngine            = "ENGINE"
	KeyUseGPU            = "USE_GPU"
	KeyHotkey            = "HOTKEY"
	KeyGlobalHotkey      = "GLOBAL_HOTKEY"
	KeyLibreAPIURL       = "LIBRE_API_URL"
	KeyLibreAPIKey       = "LIBRE_API_KEY"
	KeySkipSimilarFrames = "SKIP_SIMILAR_FRAMES"
)

// ErrUnknownKey is returned by Set for keys that are not part of Settings.
var ErrUnknownKey = errors.New("unknown setting")

// Region is a capture rectangle in physical screen pixels, serialized as
// [left, top, right, bottom].
type Region struct {
	Left, Top, Right, Bottom int
}

// Valid reports whether the region has a positive area.
func (r Region) Valid() bool { return r.Right > r.Left && r.Bottom > r.Top }

// Rect converts the region to a half-open image rectangle.
func (r Region) Rect() image.Rectangle { return image.Rect(r.Left, r.Top, r.Right, r.Bottom) }

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.Left, r.Top, r.Right, r.Bottom)
}

func (r Region) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{r.Left, r.Top, r.Right, r.Bottom})
}

func (r *Region) UnmarshalJSON(data []byte) error {
	var v [4]int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("region must be [left, top, right, bottom]: %w", err)
	}
	*r = Region{Left: v[0], Top: v[1], Right: v[2], Bottom: v[3]}
	return nil
}

// ParseRegion accepts "l,t,r,b" (spaces allowed).
func ParseRegion(s string) (Region, error) {
	parts := strings.FieldsFunc(s, func(c rune) bool { return c == ',' || c == ' ' })
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("region %q: want 4 integers", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	r := Region{Left: v[0], Top: v[1], Right: v[2], Bottom: v[3]}
	if !r.Valid() {
		return Region{}, fmt.Errorf("region %s has no area", r)
	}
	return r, nil
}

// Settings is a snapshot of every setting. A nil Region means "not selected yet".
type Settings struct {
	Region            *Region `json:"OCR_REGION"`
	Interval          float64 `json:"OCR_INTERVAL"`
	SourceLang        string  `json:"SOURCE_LANG"`
	TargetLang        string  `json:"TARGET_LANG"`
	AutoDetectLang    bool    `json:"AUTO_DETECT_LANG"`
	Engine            string  `json:"ENGINE"`
	UseGPU            bool    `json:"USE_GPU"`
	Hotkey            string  `json:"HOTKEY"`
	GlobalHotkey      bool    `json:"GLOBAL_HOTKEY"`
	LibreAPIURL       string  `json:"LIBRE_API_URL"`
	LibreAPIKey       string  `json:"LIBRE_API_KEY"`
	SkipSimilarFrames bool    `json:"SKIP_SIMILAR_FRAMES"`
}

// Defaults returns the factory settings.
func Defaults() Settings {
	return Settings{
		Region:         &Region{Left: 200, Top: 800, Right: 1700, Bottom: 1000},
		Interval:       1.0,
		SourceLang:     "en",
		TargetLang:     "ko",
		AutoDetectLang: true,
		Engine:         "deepl",
		UseGPU:         false,
		Hotkey:         "f8",
		GlobalHotkey:   true,
		LibreAPIURL:    "http://localhost:5001/translate",
	}
}

// PollInterval returns OCR_INTERVAL as a duration.
func (s Settings) PollInterval() time.Duration {
	return time.Duration(s.Interval * float64(time.Second))
}

// Validate replaces out-of-range values with defaults. It reports the keys it
// had to reset so callers can log them.
func (s *Settings) Validate() []string {
	def := Defaults()
	var reset []string
	if s.Interval <= 0 {
		s.Interval = def.Interval
		reset = append(reset, KeyOCRInterval)
	}
	if s.Region != nil && !s.Region.Valid() {
		s.Region = nil
		reset = append(reset, KeyOCRRegion)
	}
	if !validLang(s.SourceLang) {
		s.SourceLang = def.SourceLang
		reset = append(reset, KeySourceLang)
	}
	if !validLang(s.TargetLang) {
		s.TargetLang = def.TargetLang
		reset = append(reset, KeyTargetLang)
	}
	if strings.TrimSpace(s.Engine) == "" {
		s.Engine = def.Engine
		reset = append(reset, KeyEngine)
	}
	return reset
}

func validLang(code string) bool {
	if code == "" {
		return false
	}
	_, err := language.Parse(code)
	return err == nil
}

// ChangeFunc is called after an update with the previous and the new settings.
type ChangeFunc func(old, new Settings)

// Store is the process-wide settings holder.
type Store struct {
	mu        sync.RWMutex
	cur       Settings
	listeners []ChangeFunc
}

// NewStore returns a store initialised with s.
func NewStore(s Settings) *Store {
	return &Store{cur: clone(s)}
}

func clone(s Settings) Settings {
	if s.Region != nil {
		r := *s.Region
		s.Region = &r
	}
	return s
}

// Snapshot returns a copy of the current settings.
func (st *Store) Snapshot() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return clone(st.cur)
}

// OnChange registers fn to run after every Update. Listeners run on the
// updating goroutine.
func (st *Store) OnChange(fn ChangeFunc) {
	st.mu.Lock()
	st.listeners = append(st.listeners, fn)
	st.mu.Unlock()
}

// Update applies fn to a copy of the settings and stores the result.
func (st *Store) Update(fn func(*Settings)) {
	st.mu.Lock()
	old := clone(st.cur)
	next := clone(st.cur)
	fn(&next)
	st.cur = next
	listeners := append([]ChangeFunc(nil), st.listeners...)
	st.mu.Unlock()

	for _, l := range listeners {
		l(old, clone(next))
	}
}

// Replace swaps in a whole new settings value (e.g. after reloading the file).
func (st *Store) Replace(s Settings) {
	st.Update(func(cur *Settings) { *cur = clone(s) })
}

// Get returns the value stored under key.
func (st *Store) Get(key string) (any, bool) {
	s := st.Snapshot()
	switch key {
	case KeyOCRRegion:
		if s.Region == nil {
			return nil, true
		}
		return *s.Region, true
	case KeyOCRInterval:
		return s.Interval, true
	case KeySourceLang:
		return s.SourceLang, true
	case KeyTargetLang:
		return s.TargetLang, true
	case KeyAutoDetectLang:
		return s.AutoDetectLang, true
	case KeyEngine:
		return s.Engine, true
	case KeyUseGPU:
		return s.UseGPU, true
	case KeyHotkey:
		return s.Hotkey, true
	case KeyGlobalHotkey:
		return s.GlobalHotkey, true
	case KeyLibreAPIURL:
		return s.LibreAPIURL, true
	case KeyLibreAPIKey:
		return s.LibreAPIKey, true
	case KeySkipSimilarFrames:
		return s.SkipSimilarFrames, true
	}
	return nil, false
}

// Set stores value under key. The value must have the key's Go type (Region or
// nil for OCR_REGION, float64 for OCR_INTERVAL, string or bool otherwise).
func (st *Store) Set(key string, value any) error {
	var apply func(*Settings)
	switch key {
	case KeyOCRRegion:
		switch v := value.(type) {
		case nil:
			apply = func(s *Settings) { s.Region = nil }
		case Region:
			if !v.Valid() {
				return fmt.Errorf("%s: region %s has no area", key, v)
			}
			apply = func(s *Settings) { s.Region = &v }
		default:
			return fmt.Errorf("%s: want Region, got %T", key, value)
		}
	case KeyOCRInterval:
		v, ok := value.(float64)
		if !ok || v <= 0 {
			return fmt.Errorf("%s: want positive float64, got %v", key, value)
		}
		apply = func(s *Settings) { s.Interval = v }
	case KeySourceLang, KeyTargetLang:
		v, ok := value.(string)
		if !ok || !validLang(v) {
			return fmt.Errorf("%s: invalid language code %v", key, value)
		}
		if key == KeySourceLang {
			apply = func(s *Settings) { s.SourceLang = v }
		} else {
			apply = func(s *Settings) { s.TargetLang = v }
		}
	case KeyEngine, KeyHotkey, KeyLibreAPIURL, KeyLibreAPIKey:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: want string, got %T", key, value)
		}
		apply = func(s *Settings) {
			switch key {
			case KeyEngine:
				s.Engine = v
			case KeyHotkey:
				s.Hotkey = v
			case KeyLibreAPIURL:
				s.LibreAPIURL = v
			case KeyLibreAPIKey:
				s.LibreAPIKey = v
			}
		}
	case KeyAutoDetectLang, KeyUseGPU, KeyGlobalHotkey, KeySkipSimilarFrames:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%s: want bool, got %T", key, value)
		}
		apply = func(s *Settings) {
			switch key {
			case KeyAutoDetectLang:
				s.AutoDetectLang = v
			case KeyUseGPU:
				s.UseGPU = v
			case KeyGlobalHotkey:
				s.GlobalHotkey = v
			case KeySkipSimilarFrames:
				s.SkipSimilarFrames = v
			}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	st.Update(apply)
	return nil
}

// SetString parses raw according to the key's type and stores it. An empty
// value or "none" clears OCR_REGION.
func (st *Store) SetString(key, raw string) error {
	raw = strings.TrimSpace(raw)
	switch key {
	case KeyOCRRegion:
		if raw == "" || strings.EqualFold(raw, "none") {
			return st.Set(key, nil)
		}
		r, err := ParseRegion(raw)
		if err != nil {
			return err
		}
		return st.Set(key, r)
	case KeyOCRInterval:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return st.Set(key, f)
	case KeyAutoDetectLang, KeyUseGPU, KeyGlobalHotkey, KeySkipSimilarFrames:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return st.Set(key, b)
	}
	return st.Set(key, raw)
}

// Load reads settings from path and merges them over the defaults. A missing
// file yields the defaults without error; a malformed file yields the defaults
// and the decode error.
func Load(path string) (Settings, error) {
	s := Defaults()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}
	defer f.Close()

	loaded := Defaults()
	if err := json.NewDecoder(f).Decode(&loaded); err != nil {
		return s, fmt.Errorf("decode %s: %w", path, err)
	}
	loaded.Validate()
	return loaded, nil
}

// Save writes s to path as indented JSON, replacing the file atomically.
func Save(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
