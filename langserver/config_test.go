package langserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/langgate/am"
)

func TestServerConfigBuilder(t *testing.T) {
	cfg := NewServerConfig("/work/project").
		WithExecutable("/usr/bin/rust-analyzer").
		WithArgs("--log-file", "/tmp/ra.log").
		WithEnv("RUST_BACKTRACE", "1")

	assert.Equal(t, "/work/project", cfg.RootPath)
	assert.Equal(t, "/usr/bin/rust-analyzer", cfg.ExecutablePath)
	assert.Equal(t, []string{"--log-file", "/tmp/ra.log"}, cfg.Args)
	assert.Equal(t, "1", cfg.Env["RUST_BACKTRACE"])
}

func TestFromLanguageConfig(t *testing.T) {
	cfg, err := FromLanguageConfig("/work/project", am.LanguageConfig{
		Executable: "rust-analyzer",
		Args:       `--log-file "/tmp/dir with spaces/ra.log" -v`,
		Env:        map[string]string{"RUST_BACKTRACE": "full"},
	})
	require.NoError(t, err)

	assert.Equal(t, "rust-analyzer", cfg.ExecutablePath)
	assert.Equal(t, []string{"--log-file", "/tmp/dir with spaces/ra.log", "-v"}, cfg.Args,
		"args string must be split with shell quoting rules")
	assert.Equal(t, "full", cfg.Env["RUST_BACKTRACE"])
}

func TestFromLanguageConfigBadQuoting(t *testing.T) {
	_, err := FromLanguageConfig("/work", am.LanguageConfig{
		Args: `--flag "unterminated`,
	})
	require.Error(t, err)
}

func TestFromLanguageConfigEmpty(t *testing.T) {
	cfg, err := FromLanguageConfig("/work", am.LanguageConfig{})
	require.NoError(t, err)
	assert.Empty(t, cfg.ExecutablePath)
	assert.Empty(t, cfg.Args)
}

func TestEnvironIncludesOverrides(t *testing.T) {
	cfg := NewServerConfig("/work").WithEnv("LANGGATE_TEST_MARKER", "yes")

	found := false
	for _, entry := range cfg.Environ() {
		if entry == "LANGGATE_TEST_MARKER=yes" {
			found = true
		}
	}
	assert.True(t, found)
}
