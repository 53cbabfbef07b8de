package am

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeUserConfig(t *testing.T, home, content string) string {
	t.Helper()
	configDir := filepath.Join(home, ".langgate")
	if err := os.MkdirAll(configDir, DefaultDirPermissions); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	configPath := filepath.Join(configDir, "am.toml")
	if err := os.WriteFile(configPath, []byte(content), DefaultFilePermissions); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestWatcherReloadsOnChange(t *testing.T) {
	home := setTestHome(t)
	configPath := writeUserConfig(t, home, "[gateway]\nport = 9150\n")

	Reset()
	t.Cleanup(Reset)

	cw, err := NewConfigWatcher(configPath)
	if err != nil {
		t.Fatalf("NewConfigWatcher() failed: %v", err)
	}
	cw.debouncePeriod = 20 * time.Millisecond
	t.Cleanup(func() { cw.Stop() })

	reloaded := make(chan *Config, 1)
	cw.OnReload(func(cfg *Config) error {
		select {
		case reloaded <- cfg:
		default:
		}
		return nil
	})
	cw.Start()

	if err := os.WriteFile(configPath, []byte("[gateway]\nport = 9151\n"), DefaultFilePermissions); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Gateway.Port == nil || *cfg.Gateway.Port != 9151 {
			t.Errorf("expected reloaded port 9151, got %v", cfg.Gateway.Port)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

func TestWatcherCallbackFailureDoesNotStopOthers(t *testing.T) {
	home := setTestHome(t)
	configPath := writeUserConfig(t, home, "[gateway]\nport = 9150\n")

	Reset()
	t.Cleanup(Reset)

	cw, err := NewConfigWatcher(configPath)
	if err != nil {
		t.Fatalf("NewConfigWatcher() failed: %v", err)
	}
	t.Cleanup(func() { cw.Stop() })

	second := make(chan struct{}, 1)
	cw.OnReload(func(*Config) error { return os.ErrInvalid })
	cw.OnReload(func(*Config) error {
		select {
		case second <- struct{}{}:
		default:
		}
		return nil
	})

	if err := cw.reload(); err != nil {
		t.Fatalf("reload() failed: %v", err)
	}

	select {
	case <-second:
	default:
		t.Error("second callback was not invoked after the first failed")
	}
}

func TestMarkOwnWriteConsumedOnce(t *testing.T) {
	cw := &ConfigWatcher{}

	if cw.consumeOwnWrite() {
		t.Error("own-write flag should start clear")
	}
	cw.MarkOwnWrite()
	if !cw.consumeOwnWrite() {
		t.Error("expected flagged write to be consumed")
	}
	if cw.consumeOwnWrite() {
		t.Error("own-write flag should clear after one consume")
	}
}

func TestIsBackupFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/home/u/.langgate/am_from_ui.toml.back1", true},
		{"/home/u/.langgate/am.toml.back2", true},
		{"/home/u/.langgate/config.toml.back3", true},
		{"/home/u/.langgate/am_from_ui.toml", false},
		{"/home/u/.langgate/am.toml", false},
		{"/etc/langgate/config.toml", false},
	}
	for _, tt := range tests {
		if got := isBackupFile(tt.path); got != tt.want {
			t.Errorf("isBackupFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestConfigFileUsed(t *testing.T) {
	home := setTestHome(t)

	userConfig := writeUserConfig(t, home, "[gateway]\nport = 9150\n")
	if got := ConfigFileUsed(); got != userConfig {
		t.Errorf("ConfigFileUsed() = %q, want %q", got, userConfig)
	}

	// UI-managed overrides take precedence over the user config
	uiConfig := filepath.Join(home, ".langgate", "am_from_ui.toml")
	if err := os.WriteFile(uiConfig, []byte("[gateway]\nport = 9151\n"), DefaultFilePermissions); err != nil {
		t.Fatalf("failed to write UI config: %v", err)
	}
	if got := ConfigFileUsed(); got != uiConfig {
		t.Errorf("ConfigFileUsed() = %q, want %q", got, uiConfig)
	}
}
