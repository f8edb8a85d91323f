package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// UserConfigFileName is the TOML config file for user preferences
const UserConfigFileName = "config.toml"

// Settings represents user-facing configuration in TOML format.
type Settings struct {
	// Shell is the shell used to run wrapped commands (default: $SHELL or sh)
	Shell string `toml:"shell"`

	// DtachProgram is the dtach binary to invoke (default: "dtach")
	DtachProgram string `toml:"dtach_program"`

	// SessionDir holds per-session socket and log files
	// (default: <base>/sessions)
	SessionDir string `toml:"session_dir"`

	// DBDir is the directory containing the session database file
	// (default: <base>)
	DBDir string `toml:"db_dir"`

	// EnvReporter is an optional wrapper program prepended to commands; it
	// reports the exit status by appending a sentinel line to the log.
	// Empty disables the wrapper.
	EnvReporter string `toml:"env_reporter"`

	// ShowOutputOnAttach dumps current log contents before re-attaching
	ShowOutputOnAttach bool `toml:"show_output_on_attach"`

	// NonAttachableCommands are regexp patterns; matching commands never
	// support live re-attachment and always fall back to tailing output.
	NonAttachableCommands []string `toml:"nonattachable_commands"`

	// PlainTextCommands are regexp patterns selecting plain-text env mode
	// instead of terminal-data.
	PlainTextCommands []string `toml:"plain_text_commands"`

	// Annotators names the metadata annotators run at session creation
	Annotators []string `toml:"annotators"`

	// Notifications configures completion notification delivery
	Notifications NotificationSettings `toml:"notifications"`

	// Logs configures structured logging
	Logs LogSettings `toml:"logs"`

	// Registry configures database behavior
	Registry RegistrySettings `toml:"registry"`
}

// NotificationSettings configures completion notifications.
type NotificationSettings struct {
	// Enabled turns desktop notifications on (default: true)
	Enabled bool `toml:"enabled"`
}

// LogSettings configures the debug log.
type LogSettings struct {
	// Level is "debug", "info", "warn" or "error" (default: "info")
	Level string `toml:"level"`

	// Format is "json" (default) or "text"
	Format string `toml:"format"`

	// MaxSizeMB before rotation (default: 10)
	MaxSizeMB int `toml:"max_size_mb"`

	// MaxBackups rotated files kept (default: 3)
	MaxBackups int `toml:"max_backups"`
}

// RegistrySettings configures database behavior.
type RegistrySettings struct {
	// SweepIntervalSecs throttles display-triggered reconciliation sweeps;
	// at most one sweep per interval (default: 1)
	SweepIntervalSecs int `toml:"sweep_interval_secs"`

	// IOTimeoutSecs bounds stat calls during sweeps on network filesystems.
	// 0 disables the bound.
	IOTimeoutSecs int `toml:"io_timeout_secs"`
}

var (
	settingsMu     sync.Mutex
	cachedSettings *Settings
)

// BaseDir returns the base detached directory (~/.detached).
func BaseDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".detached"), nil
}

// LoadSettings reads and caches config.toml from the base directory. A
// missing file yields pure defaults; a malformed file is an error.
func LoadSettings() (*Settings, error) {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	if cachedSettings != nil {
		return cachedSettings, nil
	}

	base, err := BaseDir()
	if err != nil {
		return nil, err
	}

	s := defaultSettings(base)
	path := filepath.Join(base, UserConfigFileName)
	if _, statErr := os.Stat(path); statErr == nil {
		if _, err := toml.DecodeFile(path, s); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		applyDefaults(s, base)
	}

	cachedSettings = s
	return s, nil
}

// ResetSettingsCache drops the cached settings. Used by tests.
func ResetSettingsCache() {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	cachedSettings = nil
}

func defaultSettings(base string) *Settings {
	s := &Settings{}
	applyDefaults(s, base)
	s.Notifications.Enabled = true
	return s
}

// applyDefaults fills zero values after decode so a partial config file
// inherits the remaining defaults.
func applyDefaults(s *Settings, base string) {
	if s.Shell == "" {
		if sh := os.Getenv("SHELL"); sh != "" {
			s.Shell = sh
		} else {
			s.Shell = "sh"
		}
	}
	if s.DtachProgram == "" {
		s.DtachProgram = "dtach"
	}
	if s.SessionDir == "" {
		s.SessionDir = filepath.Join(base, "sessions")
	}
	if s.DBDir == "" {
		s.DBDir = base
	}
	if s.Logs.Level == "" {
		s.Logs.Level = "info"
	}
	if s.Logs.Format == "" {
		s.Logs.Format = "json"
	}
	if s.Logs.MaxSizeMB <= 0 {
		s.Logs.MaxSizeMB = 10
	}
	if s.Logs.MaxBackups <= 0 {
		s.Logs.MaxBackups = 3
	}
	if s.Registry.SweepIntervalSecs <= 0 {
		s.Registry.SweepIntervalSecs = 1
	}
}
