package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.URL != "ws://localhost:7125/websocket" {
		t.Errorf("url = %q", cfg.URL)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "helixscreen.yaml")
	in := &Config{
		URL:        "ws://voron.local:7125/websocket",
		TrackedLed: "neopixel chamber_light",
		DebugAddr:  ":9101",
		Limits:     &LimitsConfig{MaxTemp: 280, MaxFeedrate: 12000},
	}
	if err := Save(path, in); err != nil {
		t.Fatal(err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if out.URL != in.URL || out.TrackedLed != in.TrackedLed || out.DebugAddr != in.DebugAddr {
		t.Errorf("round trip lost fields: %+v", out)
	}
	if out.Limits == nil || out.Limits.MaxTemp != 280 {
		t.Errorf("limits = %+v", out.Limits)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("url: [unclosed"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("garbage accepted")
	}
}

func TestBuildLimits(t *testing.T) {
	cfg := Default()
	limits := cfg.BuildLimits()
	if limits.Locked() {
		t.Error("default limits should stay unlocked for discovery")
	}

	cfg.Limits = &LimitsConfig{MaxTemp: 280}
	locked := cfg.BuildLimits()
	if !locked.Locked() {
		t.Error("explicit limits should lock")
	}
	if locked.MaxTemp != 280 {
		t.Errorf("max temp = %v", locked.MaxTemp)
	}
	// Unset fields keep defaults.
	if locked.MaxFeedrate != 18000 {
		t.Errorf("max feedrate = %v", locked.MaxFeedrate)
	}
}
