package config

import (
	"context"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	m := NewManagerAt(dir)
	t.Setenv("TELLER_BASE_URL", "")
	t.Setenv("TELLER_VOICE", "")

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want default", cfg.BaseURL)
	}
	if cfg.DataDir != dir {
		t.Errorf("DataDir = %q, want config dir", cfg.DataDir)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	m := NewManagerAt(t.TempDir())
	if err := m.Save(&Config{BaseURL: "http://from-file:1000", Voice: "nova"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Setenv("TELLER_BASE_URL", "http://from-env:2000")

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "http://from-env:2000" {
		t.Errorf("BaseURL = %q, env should win", cfg.BaseURL)
	}
	if cfg.Voice != "nova" {
		t.Errorf("Voice = %q, file value should survive", cfg.Voice)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := NewManagerAt(t.TempDir())
	want := &Config{BaseURL: "http://bank:8000", Voice: "alloy", DataDir: "/tmp/teller-data"}
	if err := m.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !m.Exists() {
		t.Fatal("Exists() false after Save")
	}

	got, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.BaseURL != want.BaseURL || got.Voice != want.Voice || got.DataDir != want.DataDir {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	m := NewManagerAt(t.TempDir())
	if err := m.Save(&Config{BaseURL: "http://before:8000"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	stop, err := m.Watch(ctx, nil, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()

	if err := m.Save(&Config{BaseURL: "http://after:9000"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.BaseURL != "http://after:9000" {
			t.Errorf("reloaded BaseURL = %q", cfg.BaseURL)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("onChange never fired after a write")
	}
}
