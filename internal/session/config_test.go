package session

import (
	"os"
	"path/filepath"
	"testing"
)

func loadTestSettings(t *testing.T, configTOML string) *Settings {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SHELL", "")
	ResetSettingsCache()
	t.Cleanup(ResetSettingsCache)

	if configTOML != "" {
		base := filepath.Join(home, ".detached")
		if err := os.MkdirAll(base, 0700); err != nil {
			t.Fatalf("failed to create base dir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(base, UserConfigFileName), []byte(configTOML), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
	}

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("failed to load settings: %v", err)
	}
	return s
}

func TestLoadSettingsDefaults(t *testing.T) {
	s := loadTestSettings(t, "")

	if s.Shell != "sh" {
		t.Errorf("expected default shell sh, got %s", s.Shell)
	}
	if s.DtachProgram != "dtach" {
		t.Errorf("expected dtach program, got %s", s.DtachProgram)
	}
	if filepath.Base(s.SessionDir) != "sessions" {
		t.Errorf("expected sessions dir, got %s", s.SessionDir)
	}
	if !s.Notifications.Enabled {
		t.Error("expected notifications enabled by default")
	}
	if s.Logs.Level != "info" || s.Logs.Format != "json" {
		t.Errorf("unexpected log defaults: %s/%s", s.Logs.Level, s.Logs.Format)
	}
	if s.Registry.SweepIntervalSecs != 1 {
		t.Errorf("expected sweep interval 1, got %d", s.Registry.SweepIntervalSecs)
	}
	if s.Registry.IOTimeoutSecs != 0 {
		t.Errorf("expected io timeout disabled, got %d", s.Registry.IOTimeoutSecs)
	}
}

func TestLoadSettingsPartialFileKeepsDefaults(t *testing.T) {
	s := loadTestSettings(t, `
shell = "zsh"
nonattachable_commands = ["^watch", "^top"]

[notifications]
enabled = false

[registry]
sweep_interval_secs = 5
`)

	if s.Shell != "zsh" {
		t.Errorf("expected configured shell zsh, got %s", s.Shell)
	}
	if len(s.NonAttachableCommands) != 2 {
		t.Errorf("expected 2 nonattachable patterns, got %v", s.NonAttachableCommands)
	}
	if s.Notifications.Enabled {
		t.Error("expected notifications disabled by config")
	}
	if s.Registry.SweepIntervalSecs != 5 {
		t.Errorf("expected sweep interval 5, got %d", s.Registry.SweepIntervalSecs)
	}

	// Unspecified fields still default.
	if s.DtachProgram != "dtach" {
		t.Errorf("expected default dtach program, got %s", s.DtachProgram)
	}
	if s.Logs.MaxSizeMB != 10 || s.Logs.MaxBackups != 3 {
		t.Errorf("unexpected log rotation defaults: %d/%d", s.Logs.MaxSizeMB, s.Logs.MaxBackups)
	}
}

func TestLoadSettingsMalformedFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	ResetSettingsCache()
	t.Cleanup(ResetSettingsCache)

	base := filepath.Join(home, ".detached")
	if err := os.MkdirAll(base, 0700); err != nil {
		t.Fatalf("failed to create base dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(base, UserConfigFileName), []byte("shell = [broken"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := LoadSettings(); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestLoadSettingsCached(t *testing.T) {
	s1 := loadTestSettings(t, "")
	s2, err := LoadSettings()
	if err != nil {
		t.Fatalf("failed to load settings: %v", err)
	}
	if s1 != s2 {
		t.Error("expected cached settings pointer on second load")
	}
}
