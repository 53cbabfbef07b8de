package langserver

import (
	"context"
	"encoding/json"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// DiagnosticsFunc receives diagnostics relayed from a running analyzer.
type DiagnosticsFunc func(language string, params *protocol.PublishDiagnosticsParams)

// LanguageServer is the lifecycle and protocol surface one language adapter
// presents to the registry and the gateway. One instance per language runs at
// a time; the registry enforces that.
type LanguageServer interface {
	// ID uniquely identifies this adapter instance.
	ID() string
	// Name is the human-readable analyzer name (e.g. "rust-analyzer").
	Name() string
	// Language is the language identifier this adapter serves.
	Language() string
	// Config returns the launch configuration.
	Config() *ServerConfig

	// Initialize spawns the analyzer process and starts the notification
	// drain. Fails with ErrProcessSpawn when the executable cannot launch.
	Initialize(ctx context.Context) error
	// Shutdown stops the analyzer: best-effort graceful protocol teardown,
	// then kill. Idempotent; a stopped adapter returns nil.
	Shutdown() error
	// IsRunning reports whether the analyzer process connection is live.
	IsRunning() bool

	// InitializeProtocol forwards the front-end's initialize handshake to
	// the analyzer. On forwarding failure or a malformed response it returns
	// a conservative default capability set so the session stays alive.
	InitializeProtocol(ctx context.Context, params json.RawMessage) (*protocol.InitializeResult, error)
	// Initialized forwards the initialized notification.
	Initialized(ctx context.Context) error

	// Document synchronization: update the store, then forward to the
	// analyzer in arrival order.
	DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error
	DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error
	DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error
	DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error

	// Feature requests forward to the analyzer and translate the raw result.
	// A null result or a shape the types cannot hold yields a nil result,
	// never an error.
	Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error)
	Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error)
	Definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error)
	References(ctx context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error)
	Formatting(ctx context.Context, params *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error)

	// Documents exposes the per-document state tracked by this adapter.
	Documents() *DocumentStore
}
