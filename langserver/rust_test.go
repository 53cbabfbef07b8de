package langserver

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.uber.org/zap"

	"github.com/teranos/langgate/errors"
)

// fakeAnalyzerScript emits one framed diagnostics notification, then consumes
// stdin so adapter notifications do not fail on a closed pipe.
const fakeAnalyzerScript = `
json='{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics","params":{"uri":"file:///x/main.rs","diagnostics":[]}}'
printf 'Content-Length: %s\r\n\r\n%s' "${#json}" "$json"
cat > /dev/null
`

func fakeAnalyzerConfig(t *testing.T) *ServerConfig {
	t.Helper()
	return NewServerConfig(t.TempDir()).
		WithExecutable("sh").
		WithArgs("-c", fakeAnalyzerScript)
}

func TestRustServerInitializeAndDrain(t *testing.T) {
	var published atomic.Bool
	publish := func(language string, params *protocol.PublishDiagnosticsParams) {
		assert.Equal(t, "rust", language)
		assert.Equal(t, protocol.DocumentUri("file:///x/main.rs"), params.URI)
		published.Store(true)
	}

	server := NewRustServer(fakeAnalyzerConfig(t), publish, zap.NewNop().Sugar())
	t.Cleanup(func() { server.Shutdown() })

	require.NoError(t, server.Initialize(context.Background()))
	assert.True(t, server.IsRunning())
	assert.Greater(t, server.Pid(), 0)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !published.Load() {
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, published.Load(), "diagnostics never relayed")

	// The drain task also records diagnostics in the document store
	doc, ok := server.Documents().Get("file:///x/main.rs")
	require.True(t, ok)
	assert.NotNil(t, doc.Diagnostics)
}

func TestRustServerDidOpenTracksDocument(t *testing.T) {
	server := NewRustServer(fakeAnalyzerConfig(t), nil, zap.NewNop().Sugar())
	t.Cleanup(func() { server.Shutdown() })
	require.NoError(t, server.Initialize(context.Background()))

	err := server.DidOpen(context.Background(), &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:  "file:///x/lib.rs",
			Text: "pub fn f() {}",
		},
	})
	require.NoError(t, err)

	doc, ok := server.Documents().Get("file:///x/lib.rs")
	require.True(t, ok)
	assert.Equal(t, "pub fn f() {}", doc.Content)
}

func TestRustServerInitializeLeavesConfigUntouched(t *testing.T) {
	config := fakeAnalyzerConfig(t)
	server := NewRustServer(config, nil, zap.NewNop().Sugar())
	t.Cleanup(func() { server.Shutdown() })

	require.NoError(t, server.Initialize(context.Background()))

	_, ok := config.Env["RUST_BACKTRACE"]
	assert.False(t, ok, "launch defaults must not be written back into the config")
	assert.Empty(t, config.Env)
}

func TestRustServerNotificationsFailWhenStopped(t *testing.T) {
	server := NewRustServer(fakeAnalyzerConfig(t), nil, zap.NewNop().Sugar())

	err := server.DidOpen(context.Background(), &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///x/lib.rs", Text: "x"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDisconnected))
}

func TestRustServerInitializeSpawnFailure(t *testing.T) {
	config := NewServerConfig(t.TempDir()).WithExecutable("/nonexistent/rust-analyzer")
	server := NewRustServer(config, nil, zap.NewNop().Sugar())

	err := server.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProcessSpawn))
	assert.False(t, server.IsRunning())
}

func TestRustServerShutdownIdempotent(t *testing.T) {
	server := NewRustServer(fakeAnalyzerConfig(t), nil, zap.NewNop().Sugar())
	require.NoError(t, server.Initialize(context.Background()))

	require.NoError(t, server.Shutdown())
	assert.False(t, server.IsRunning())
	require.NoError(t, server.Shutdown())
}
