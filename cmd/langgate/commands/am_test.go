package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/langgate/am"
)

func TestSplitLanguageKey(t *testing.T) {
	tests := []struct {
		key      string
		language string
		field    string
		ok       bool
	}{
		{"languages.rust.executable", "rust", "executable", true},
		{"languages.rust.args", "rust", "args", true},
		{"languages..executable", "", "", false},
		{"gateway.port", "", "", false},
		{"languages.rust", "", "", false},
		{"languages.rust.env.RUST_LOG", "", "", false},
	}
	for _, tt := range tests {
		language, field, ok := splitLanguageKey(tt.key)
		assert.Equal(t, tt.ok, ok, "key %q", tt.key)
		assert.Equal(t, tt.language, language, "key %q", tt.key)
		assert.Equal(t, tt.field, field, "key %q", tt.key)
	}
}

func TestRunAmSetPersistsValues(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, runAmSet(nil, []string{"gateway.port", "9100"}))
	require.NoError(t, runAmSet(nil, []string{"languages.rust.executable", "/opt/rust-analyzer"}))

	cfg, err := am.LoadFromFile(filepath.Join(home, ".langgate", "am_from_ui.toml"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Gateway.Port)
	assert.Equal(t, 9100, *cfg.Gateway.Port)
	assert.Equal(t, "/opt/rust-analyzer", cfg.GetLanguage("rust").Executable)
}

func TestRunAmSetRejectsBadInput(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	assert.Error(t, runAmSet(nil, []string{"gateway.port", "not-a-number"}))
	assert.Error(t, runAmSet(nil, []string{"bogus.key", "value"}))
	assert.Error(t, runAmSet(nil, []string{"languages.rust.env", "RUST_LOG=debug"}))

	// Nothing persisted from the rejected writes
	_, err := os.Stat(filepath.Join(os.Getenv("HOME"), ".langgate", "am_from_ui.toml"))
	assert.True(t, os.IsNotExist(err))
}
