package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.Browser.Engine = "chromedp"
	cfg.Timeouts.ChatLoad = Duration{12 * time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.Browser.Engine != "chromedp" {
		t.Errorf("Browser.Engine = %q, want chromedp", loaded.Browser.Engine)
	}
	if loaded.Timeouts.ChatLoad.Duration != 12*time.Second {
		t.Errorf("Timeouts.ChatLoad = %v, want 12s", loaded.Timeouts.ChatLoad)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadOrDefaultMissing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Scan.UnreadStrategy != "v3" {
		t.Errorf("UnreadStrategy = %q, want v3", cfg.Scan.UnreadStrategy)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "default_session = \"main\"\n\n[settle]\ninterval = \"100ms\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Settle.Interval.Duration != 100*time.Millisecond {
		t.Errorf("Settle.Interval = %v, want 100ms", cfg.Settle.Interval)
	}
	if cfg.Settle.Quiet != 3 {
		t.Errorf("Settle.Quiet = %d, want default 3", cfg.Settle.Quiet)
	}
	if cfg.Browser.URL != "https://web.whatsapp.com" {
		t.Errorf("Browser.URL = %q, want default", cfg.Browser.URL)
	}
}

func TestBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[timeouts]\nelement = \"soon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid duration")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
