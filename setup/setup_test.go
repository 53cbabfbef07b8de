package setup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/langgate/am"
)

func TestLanguagesSorted(t *testing.T) {
	cfg := &am.Config{
		Setup: am.SetupConfig{
			Sources: map[string]string{
				"typescript": "https://example.com/ts.tar.gz",
				"rust":       "https://example.com/ra.gz",
			},
		},
	}
	fetcher := NewFetcher(cfg, zap.NewNop().Sugar())

	assert.Equal(t, []string{"rust", "typescript"}, fetcher.Languages())
}

func TestFetchNoSourceConfigured(t *testing.T) {
	fetcher := NewFetcher(&am.Config{}, zap.NewNop().Sugar())

	_, err := fetcher.Fetch(context.Background(), "rust")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no setup source configured")
}

func TestFetchNoConfig(t *testing.T) {
	fetcher := NewFetcher(nil, zap.NewNop().Sugar())

	_, err := fetcher.Fetch(context.Background(), "rust")
	require.Error(t, err)
}

func TestFetchLocalSource(t *testing.T) {
	// go-getter serves local files without network; stage a fake release
	srcDir := t.TempDir()
	binary := filepath.Join(srcDir, "rust-analyzer")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0755))

	installDir := t.TempDir()
	cfg := &am.Config{
		Setup: am.SetupConfig{
			Sources: map[string]string{"rust": binary},
			Dir:     installDir,
		},
	}
	fetcher := NewFetcher(cfg, zap.NewNop().Sugar())

	dest, err := fetcher.Fetch(context.Background(), "rust")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(installDir, "rust"), dest)

	fetched := filepath.Join(dest, "rust-analyzer")
	_, statErr := os.Stat(fetched)
	assert.NoError(t, statErr, "fetched binary should exist at %s", fetched)
}
