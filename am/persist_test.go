package am

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
)

// setTestHome points $HOME at a temp dir so persist writes stay isolated.
func setTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func readUIConfig(t *testing.T, home string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(home, ".langgate", "am_from_ui.toml"))
	if err != nil {
		t.Fatalf("failed to read UI config: %v", err)
	}
	var config map[string]interface{}
	if err := toml.Unmarshal(data, &config); err != nil {
		t.Fatalf("failed to parse UI config: %v", err)
	}
	return config
}

func TestUpdateGatewayPort(t *testing.T) {
	home := setTestHome(t)

	if err := UpdateGatewayPort(9100); err != nil {
		t.Fatalf("UpdateGatewayPort() failed: %v", err)
	}

	config := readUIConfig(t, home)
	gateway, ok := config["gateway"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected gateway section, got %v", config)
	}
	if port, ok := gateway["port"].(int64); !ok || port != 9100 {
		t.Errorf("expected port 9100, got %v", gateway["port"])
	}
}

func TestUpdatesMergeIntoExistingConfig(t *testing.T) {
	home := setTestHome(t)

	if err := UpdateLanguageExecutable("rust", "/opt/rust-analyzer/bin/rust-analyzer"); err != nil {
		t.Fatalf("UpdateLanguageExecutable() failed: %v", err)
	}
	if err := UpdateLanguageArgs("rust", "--log-file /tmp/ra.log"); err != nil {
		t.Fatalf("UpdateLanguageArgs() failed: %v", err)
	}
	if err := UpdateGatewayLogTheme("gruvbox"); err != nil {
		t.Fatalf("UpdateGatewayLogTheme() failed: %v", err)
	}

	// Later updates must not clobber earlier sections
	config := readUIConfig(t, home)

	languages, _ := config["languages"].(map[string]interface{})
	rust, _ := languages["rust"].(map[string]interface{})
	if rust["executable"] != "/opt/rust-analyzer/bin/rust-analyzer" {
		t.Errorf("unexpected executable %v", rust["executable"])
	}
	if rust["args"] != "--log-file /tmp/ra.log" {
		t.Errorf("unexpected args %v", rust["args"])
	}

	gateway, _ := config["gateway"].(map[string]interface{})
	if gateway["log_theme"] != "gruvbox" {
		t.Errorf("unexpected log theme %v", gateway["log_theme"])
	}
}

func TestBackupRotation(t *testing.T) {
	home := setTestHome(t)
	configPath := filepath.Join(home, ".langgate", "am_from_ui.toml")

	// First write has nothing to back up; the next three rotate
	for _, port := range []int{9001, 9002, 9003, 9004} {
		if err := UpdateGatewayPort(port); err != nil {
			t.Fatalf("UpdateGatewayPort(%d) failed: %v", port, err)
		}
	}

	tests := []struct {
		suffix string
		port   string
	}{
		{".back1", "9003"},
		{".back2", "9002"},
		{".back3", "9001"},
	}
	for _, tt := range tests {
		data, err := os.ReadFile(configPath + tt.suffix)
		if err != nil {
			t.Fatalf("expected backup %s: %v", tt.suffix, err)
		}
		if !strings.Contains(string(data), tt.port) {
			t.Errorf("backup %s should hold port %s, got:\n%s", tt.suffix, tt.port, data)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read current config: %v", err)
	}
	if !strings.Contains(string(data), "9004") {
		t.Errorf("current config should hold port 9004, got:\n%s", data)
	}
}
