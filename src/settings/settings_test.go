package settings

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Defaults()
	if s.Engine != def.Engine || s.Interval != def.Interval || s.Region == nil || *s.Region != *def.Region {
		t.Fatalf("expected defaults, got %+v", s)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	data := `{"OCR_REGION": [10, 20, 110, 220], "ENGINE": "libretranslate", "OCR_INTERVAL": 0.5, "DPI_SCALE": 1.25}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Region == nil || *s.Region != (Region{10, 20, 110, 220}) {
		t.Errorf("region = %v", s.Region)
	}
	if s.Engine != "libretranslate" {
		t.Errorf("engine = %q", s.Engine)
	}
	if s.PollInterval() != 500*time.Millisecond {
		t.Errorf("interval = %v", s.PollInterval())
	}
	if s.TargetLang != "ko" {
		t.Errorf("target lang should keep default, got %q", s.TargetLang)
	}
}

func TestLoadNullRegionIsUnset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"OCR_REGION": null}`), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Region != nil {
		t.Fatalf("expected unset region, got %v", s.Region)
	}
}

func TestLoadMalformedReturnsDefaultsAndError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if s.Engine != Defaults().Engine {
		t.Fatalf("expected defaults on error, got %+v", s)
	}
}

func TestValidateResetsBadValues(t *testing.T) {
	s := Defaults()
	s.Interval = -1
	s.Region = &Region{Left: 100, Top: 100, Right: 50, Bottom: 200}
	s.SourceLang = "not a language!"
	reset := s.Validate()
	if len(reset) != 3 {
		t.Fatalf("expected 3 resets, got %v", reset)
	}
	if s.Interval != 1.0 || s.Region != nil || s.SourceLang != "en" {
		t.Fatalf("unexpected settings after validate: %+v", s)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := Defaults()
	s.Region = nil
	s.SourceLang = "ja"
	if err := Save(path, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Region != nil || got.SourceLang != "ja" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestStoreSetRejectsUnknownKey(t *testing.T) {
	st := NewStore(Defaults())
	err := st.Set("DPI_SCALE", 1.0)
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestStoreSetStringParsesPerKey(t *testing.T) {
	st := NewStore(Defaults())
	cases := []struct{ key, raw string }{
		{KeyOCRRegion, "0, 0, 640, 480"},
		{KeyOCRInterval, "2.5"},
		{KeyUseGPU, "true"},
		{KeySourceLang, "zh-CN"},
		{KeyEngine, "libretranslate"},
	}
	for _, c := range cases {
		if err := st.SetString(c.key, c.raw); err != nil {
			t.Fatalf("SetString(%s, %q): %v", c.key, c.raw, err)
		}
	}
	s := st.Snapshot()
	if s.Region == nil || *s.Region != (Region{0, 0, 640, 480}) {
		t.Errorf("region = %v", s.Region)
	}
	if s.Interval != 2.5 || !s.UseGPU || s.SourceLang != "zh-CN" || s.Engine != "libretranslate" {
		t.Errorf("unexpected snapshot %+v", s)
	}

	if err := st.SetString(KeyOCRRegion, "none"); err != nil {
		t.Fatal(err)
	}
	if v, _ := st.Get(KeyOCRRegion); v != nil {
		t.Errorf("expected cleared region, got %v", v)
	}
	if err := st.SetString(KeyOCRInterval, "0"); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestStoreOnChangeReceivesOldAndNew(t *testing.T) {
	st := NewStore(Defaults())
	var gotOld, gotNew Settings
	calls := 0
	st.OnChange(func(old, new Settings) {
		calls++
		gotOld, gotNew = old, new
	})
	if err := st.Set(KeySourceLang, "ja"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 || gotOld.SourceLang != "en" || gotNew.SourceLang != "ja" {
		t.Fatalf("calls=%d old=%q new=%q", calls, gotOld.SourceLang, gotNew.SourceLang)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	st := NewStore(Defaults())
	s := st.Snapshot()
	s.Region.Left = 9999
	if st.Snapshot().Region.Left == 9999 {
		t.Fatal("snapshot shares region with store")
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	st := NewStore(Defaults())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = st.Set(KeyOCRInterval, float64(i+1))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if st.Snapshot().Interval <= 0 {
					t.Error("observed non-positive interval")
					return
				}
			}
		}()
	}
	wg.Wait()
}
