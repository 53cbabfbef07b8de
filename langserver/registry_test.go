package langserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.uber.org/zap"

	"github.com/teranos/langgate/errors"
)

// fakeAdapter satisfies LanguageServer without spawning anything.
type fakeAdapter struct {
	language    string
	config      *ServerConfig
	initErr     error
	initialized atomic.Bool
	shutdowns   atomic.Int32
	docs        *DocumentStore
}

func newFakeAdapter(language string, config *ServerConfig, initErr error) *fakeAdapter {
	return &fakeAdapter{
		language: language,
		config:   config,
		initErr:  initErr,
		docs:     NewDocumentStore(),
	}
}

func (f *fakeAdapter) ID() string            { return "fake-" + f.language }
func (f *fakeAdapter) Name() string          { return "fake-analyzer" }
func (f *fakeAdapter) Language() string      { return f.language }
func (f *fakeAdapter) Config() *ServerConfig { return f.config }
func (f *fakeAdapter) Initialize(ctx context.Context) error {
	if f.initErr != nil {
		return f.initErr
	}
	f.initialized.Store(true)
	return nil
}
func (f *fakeAdapter) Shutdown() error {
	f.shutdowns.Add(1)
	f.initialized.Store(false)
	return nil
}
func (f *fakeAdapter) IsRunning() bool { return f.initialized.Load() }
func (f *fakeAdapter) Pid() int        { return 12345 }
func (f *fakeAdapter) InitializeProtocol(ctx context.Context, params json.RawMessage) (*protocol.InitializeResult, error) {
	return defaultInitializeResult(), nil
}
func (f *fakeAdapter) Initialized(ctx context.Context) error { return nil }
func (f *fakeAdapter) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	return nil
}
func (f *fakeAdapter) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	return nil
}
func (f *fakeAdapter) DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	return nil
}
func (f *fakeAdapter) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	return nil
}
func (f *fakeAdapter) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	return nil, nil
}
func (f *fakeAdapter) Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	return nil, nil
}
func (f *fakeAdapter) Definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	return nil, nil
}
func (f *fakeAdapter) References(ctx context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	return nil, nil
}
func (f *fakeAdapter) Formatting(ctx context.Context, params *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error) {
	return nil, nil
}
func (f *fakeAdapter) Documents() *DocumentStore { return f.docs }

// testRegistry builds a registry whose factory records every launch and
// hands back fake adapters.
func testRegistry(t *testing.T, initErr error) (*Registry, *atomic.Int32, *atomic.Value) {
	t.Helper()
	registry := NewRegistry(NewMemoryStore(), nil, zap.NewNop().Sugar())

	var launches atomic.Int32
	var lastLanguage atomic.Value
	registry.newAdapter = func(language string, config *ServerConfig, publish DiagnosticsFunc, log *zap.SugaredLogger) (LanguageServer, error) {
		launches.Add(1)
		lastLanguage.Store(language)
		return newFakeAdapter(language, config, initErr), nil
	}

	return registry, &launches, &lastLanguage
}

// rustFile creates a real file with a .rs extension for path validation.
func rustFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.rs")
	require.NoError(t, os.WriteFile(path, []byte("fn main() {}"), 0644))
	return path
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestStartServerPathNotFound(t *testing.T) {
	registry, launches, _ := testRegistry(t, nil)

	_, err := registry.StartServer(context.Background(), "rust", "/nonexistent/main.rs")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPathNotFound))
	assert.Equal(t, int32(0), launches.Load())
}

func TestStartServerUnsupportedLanguage(t *testing.T) {
	registry, launches, _ := testRegistry(t, nil)
	path := rustFile(t)

	_, err := registry.StartServer(context.Background(), "cobol", path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedLanguage))
	assert.Contains(t, err.Error(), "rust", "error should list supported languages")

	// Registry left unchanged
	active, storeErr := registry.store.IsActive("cobol")
	require.NoError(t, storeErr)
	assert.False(t, active)
	assert.Equal(t, int32(0), launches.Load())
}

func TestStartServerSingleton(t *testing.T) {
	registry, launches, _ := testRegistry(t, nil)
	path := rustFile(t)

	_, err := registry.StartServer(context.Background(), "rust", path)
	require.NoError(t, err)

	waitFor(t, func() bool {
		adapter, ok := registry.Adapter("rust")
		return ok && adapter.IsRunning()
	}, "adapter never initialized")

	// Second start must not launch a second adapter
	msg, err := registry.StartServer(context.Background(), "rust", path)
	require.NoError(t, err)
	assert.Contains(t, msg, "already running")
	assert.Equal(t, int32(1), launches.Load())

	servers, err := registry.ActiveServers()
	require.NoError(t, err)
	assert.Len(t, servers, 1)
}

func TestStartServerExtensionInference(t *testing.T) {
	registry, _, lastLanguage := testRegistry(t, nil)
	path := rustFile(t)

	_, err := registry.StartServer(context.Background(), "unknown", path)
	require.NoError(t, err)

	waitFor(t, func() bool {
		_, ok := registry.Adapter("rust")
		return ok
	}, "inferred rust adapter never registered")
	assert.Equal(t, "rust", lastLanguage.Load())
}

func TestStartServerLaunchFailureReleases(t *testing.T) {
	registry, _, _ := testRegistry(t, errors.Wrap(errors.ErrProcessSpawn, "no such binary"))
	path := rustFile(t)

	_, err := registry.StartServer(context.Background(), "rust", path)
	require.NoError(t, err, "spawn failure happens after the optimistic acknowledgment")

	// Background failure must release the language so a retry works
	waitFor(t, func() bool {
		active, err := registry.store.IsActive("rust")
		return err == nil && !active
	}, "language never released after launch failure")

	// Retry with a working factory succeeds
	registry.newAdapter = func(language string, config *ServerConfig, publish DiagnosticsFunc, log *zap.SugaredLogger) (LanguageServer, error) {
		return newFakeAdapter(language, config, nil), nil
	}
	_, err = registry.StartServer(context.Background(), "rust", path)
	require.NoError(t, err)

	waitFor(t, func() bool {
		adapter, ok := registry.Adapter("rust")
		return ok && adapter.IsRunning()
	}, "retry never initialized")
}

func TestStopServer(t *testing.T) {
	registry, _, _ := testRegistry(t, nil)
	path := rustFile(t)

	_, err := registry.StartServer(context.Background(), "rust", path)
	require.NoError(t, err)
	waitFor(t, func() bool {
		adapter, ok := registry.Adapter("rust")
		return ok && adapter.IsRunning()
	}, "adapter never initialized")

	require.NoError(t, registry.StopServer("rust"))

	_, ok := registry.Adapter("rust")
	assert.False(t, ok)
	active, err := registry.store.IsActive("rust")
	require.NoError(t, err)
	assert.False(t, active)

	// Stopping again is a no-op success
	require.NoError(t, registry.StopServer("rust"))
}

func TestAdapterForURI(t *testing.T) {
	registry, _, _ := testRegistry(t, nil)
	path := rustFile(t)

	_, err := registry.StartServer(context.Background(), "rust", path)
	require.NoError(t, err)
	waitFor(t, func() bool {
		_, ok := registry.Adapter("rust")
		return ok
	}, "adapter never registered")

	adapter, ok := registry.AdapterForURI("file:///src/main.rs")
	require.True(t, ok)
	assert.Equal(t, "rust", adapter.Language())

	_, ok = registry.AdapterForURI("file:///src/main.zig")
	assert.False(t, ok)
}

func TestSubscribeRelaysDiagnostics(t *testing.T) {
	registry, _, _ := testRegistry(t, nil)

	received := make(chan string, 1)
	registry.Subscribe("session-1", func(language string, params *protocol.PublishDiagnosticsParams) {
		received <- string(params.URI)
	})

	registry.publishDiagnostics("rust", &protocol.PublishDiagnosticsParams{
		URI: "file:///src/main.rs",
	})

	select {
	case uri := <-received:
		assert.Equal(t, "file:///src/main.rs", uri)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received diagnostics")
	}

	registry.Unsubscribe("session-1")
	registry.publishDiagnostics("rust", &protocol.PublishDiagnosticsParams{
		URI: "file:///src/other.rs",
	})
	select {
	case uri := <-received:
		t.Fatalf("unsubscribed relay still received %s", uri)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		language string
		filePath string
		want     string
	}{
		{"RUST", "/x/main.rs", "rust"},
		{"", "/x/main.rs", "rust"},
		{"unknown", "/x/script.py", "python"},
		{"unknown", "/x/app.js", "javascript"},
		{"unknown", "/x/app.ts", "typescript"},
		{"unknown", "/x/readme.md", "unknown"},
		{"python", "/x/main.rs", "python"},
	}

	for _, tt := range tests {
		t.Run(tt.language+"_"+filepath.Base(tt.filePath), func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLanguage(tt.language, tt.filePath))
		})
	}
}

func TestSupportedAndRecognizedLanguages(t *testing.T) {
	registry, _, _ := testRegistry(t, nil)

	assert.Equal(t, []string{"rust"}, registry.SupportedLanguages())
	assert.Contains(t, registry.RecognizedLanguages(), "python")
	assert.True(t, registry.IsRecognized("typescript"))
	assert.False(t, registry.IsRecognized("cobol"))
}
