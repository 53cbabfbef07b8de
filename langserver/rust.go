package langserver

import (
	"context"
	"encoding/json"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.uber.org/zap"

	"github.com/teranos/langgate/errors"
	"github.com/teranos/langgate/logger"
)

const (
	// rustAnalyzerBinary is the compiled-in fallback; config overrides it
	rustAnalyzerBinary = "rust-analyzer"

	// shutdownGracePeriod bounds the graceful shutdown request before the
	// process is killed outright
	shutdownGracePeriod = 2 * time.Second
)

// RustServer adapts rust-analyzer to the LanguageServer contract.
type RustServer struct {
	id      string
	config  *ServerConfig
	docs    *DocumentStore
	log     *zap.SugaredLogger
	publish DiagnosticsFunc

	conn    *Conn
	running atomic.Bool
	mu      sync.Mutex
}

// NewRustServer creates a rust-analyzer adapter. publish receives relayed
// diagnostics and may be nil.
func NewRustServer(config *ServerConfig, publish DiagnosticsFunc, log *zap.SugaredLogger) *RustServer {
	if log == nil {
		log = logger.Logger
	}
	return &RustServer{
		id:      uuid.New().String(),
		config:  config,
		docs:    NewDocumentStore(),
		log:     log.Named("langserver.rust"),
		publish: publish,
	}
}

// ID returns the unique adapter instance id.
func (s *RustServer) ID() string { return s.id }

// Name returns the analyzer binary name.
func (s *RustServer) Name() string { return rustAnalyzerBinary }

// Language returns "rust".
func (s *RustServer) Language() string { return "rust" }

// Config returns the launch configuration.
func (s *RustServer) Config() *ServerConfig { return s.config }

// Documents returns the per-document state.
func (s *RustServer) Documents() *DocumentStore { return s.docs }

// IsRunning reports whether the analyzer connection is live.
func (s *RustServer) IsRunning() bool { return s.running.Load() }

// Pid returns the analyzer process id, 0 when not running.
func (s *RustServer) Pid() int {
	if s.conn == nil {
		return 0
	}
	return s.conn.Pid()
}

// Initialize spawns rust-analyzer and starts the notification drain task.
func (s *RustServer) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil
	}

	executable := s.config.ExecutablePath
	if executable == "" {
		executable = rustAnalyzerBinary
	}

	cmd := exec.Command(executable, s.config.Args...)
	cmd.Dir = s.config.RootPath
	cmd.Env = s.config.Environ()
	// Default the backtrace setting on the child only; the config is
	// immutable once handed to the adapter
	if _, ok := s.config.Env["RUST_BACKTRACE"]; !ok {
		cmd.Env = append(cmd.Env, "RUST_BACKTRACE=1")
	}

	conn, err := Open(cmd, s.log)
	if err != nil {
		return errors.Wrapf(err, "failed to launch rust-analyzer from %q", executable)
	}

	s.conn = conn
	s.running.Store(true)

	go s.drainNotifications(conn)

	s.log.Infow("Analyzer started",
		"language", "rust",
		"binary", executable,
		"pid", conn.Pid(),
		"root", s.config.RootPath)

	return nil
}

// Shutdown stops the analyzer. The shutdown request and exit notification
// are best-effort; the process is killed regardless. Idempotent.
func (s *RustServer) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() || s.conn == nil {
		return nil
	}
	s.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()

	if err := s.conn.Call(ctx, "shutdown", nil, nil); err != nil {
		s.log.Debugw("Graceful shutdown request failed",
			"language", "rust",
			"error", err)
	}
	if err := s.conn.Notify("exit", nil); err != nil {
		s.log.Debugw("Exit notification failed",
			"language", "rust",
			"error", err)
	}

	s.conn.Close()
	s.log.Infow("Analyzer stopped", "language", "rust")

	return nil
}

// InitializeProtocol forwards the front-end's initialize handshake. When the
// forward fails or the response does not parse, a conservative default
// capability set keeps the session alive.
func (s *RustServer) InitializeProtocol(ctx context.Context, params json.RawMessage) (*protocol.InitializeResult, error) {
	raw, err := s.request(ctx, "initialize", params)
	if err != nil {
		s.log.Warnw("Initialize forward failed, using default capabilities",
			"language", "rust",
			"error", err)
		return defaultInitializeResult(), nil
	}
	if raw == nil {
		return defaultInitializeResult(), nil
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		s.log.Warnw("Initialize response did not parse, using default capabilities",
			"language", "rust",
			"error", err)
		return defaultInitializeResult(), nil
	}

	return &result, nil
}

// Initialized forwards the initialized notification.
func (s *RustServer) Initialized(ctx context.Context) error {
	if !s.running.Load() || s.conn == nil {
		return errors.Wrap(errors.ErrDisconnected, "initialized")
	}
	return s.conn.Notify("initialized", map[string]interface{}{})
}

// DidOpen tracks the document and forwards the notification.
func (s *RustServer) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	s.docs.Open(uri, params.TextDocument.Text)

	if !s.running.Load() || s.conn == nil {
		return errors.Wrap(errors.ErrDisconnected, "textDocument/didOpen")
	}
	return s.conn.Notify("textDocument/didOpen", params)
}

// DidChange replaces tracked content and forwards the notification.
func (s *RustServer) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	for _, change := range params.ContentChanges {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			s.docs.Replace(uri, c.Text)
		case *protocol.TextDocumentContentChangeEventWhole:
			s.docs.Replace(uri, c.Text)
		case map[string]interface{}:
			// Raw JSON shape: a full-replace event has text and no range
			if _, hasRange := c["range"]; !hasRange {
				if text, ok := c["text"].(string); ok {
					s.docs.Replace(uri, text)
				}
			}
		}
	}

	if !s.running.Load() || s.conn == nil {
		return errors.Wrap(errors.ErrDisconnected, "textDocument/didChange")
	}
	return s.conn.Notify("textDocument/didChange", params)
}

// DidSave forwards the notification, updating content when included.
func (s *RustServer) DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	if params.Text != nil {
		s.docs.Replace(string(params.TextDocument.URI), *params.Text)
	}

	if !s.running.Load() || s.conn == nil {
		return errors.Wrap(errors.ErrDisconnected, "textDocument/didSave")
	}
	return s.conn.Notify("textDocument/didSave", params)
}

// DidClose drops the tracked document and forwards the notification.
func (s *RustServer) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.docs.Close(string(params.TextDocument.URI))

	if !s.running.Load() || s.conn == nil {
		return errors.Wrap(errors.ErrDisconnected, "textDocument/didClose")
	}
	return s.conn.Notify("textDocument/didClose", params)
}

// Completion forwards a completion request. The analyzer may answer with a
// CompletionList or a bare item array.
func (s *RustServer) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	raw, err := s.request(ctx, "textDocument/completion", params)
	if err != nil || raw == nil {
		return nil, err
	}

	var list protocol.CompletionList
	if err := json.Unmarshal(raw, &list); err == nil {
		return &list, nil
	}

	var items []protocol.CompletionItem
	if err := json.Unmarshal(raw, &items); err == nil {
		return &protocol.CompletionList{Items: items}, nil
	}

	s.log.Debugw("Completion result did not parse, returning no result",
		"language", "rust")
	return nil, nil
}

// Hover forwards a hover request.
func (s *RustServer) Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	raw, err := s.request(ctx, "textDocument/hover", params)
	if err != nil || raw == nil {
		return nil, err
	}

	var hover protocol.Hover
	if err := json.Unmarshal(raw, &hover); err != nil {
		s.log.Debugw("Hover result did not parse, returning no result",
			"language", "rust")
		return nil, nil
	}
	return &hover, nil
}

// Definition forwards a definition request. The analyzer may answer with a
// single Location or an array.
func (s *RustServer) Definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	raw, err := s.request(ctx, "textDocument/definition", params)
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeLocations(raw, s.log)
}

// References forwards a references request.
func (s *RustServer) References(ctx context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	raw, err := s.request(ctx, "textDocument/references", params)
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeLocations(raw, s.log)
}

// Formatting forwards a formatting request.
func (s *RustServer) Formatting(ctx context.Context, params *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error) {
	raw, err := s.request(ctx, "textDocument/formatting", params)
	if err != nil || raw == nil {
		return nil, err
	}

	var edits []protocol.TextEdit
	if err := json.Unmarshal(raw, &edits); err != nil {
		s.log.Debugw("Formatting result did not parse, returning no result",
			"language", "rust")
		return nil, nil
	}
	return edits, nil
}

// request forwards one raw request. A null result becomes a nil RawMessage.
func (s *RustServer) request(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if !s.running.Load() || s.conn == nil {
		return nil, errors.Wrap(errors.ErrDisconnected, method)
	}

	var raw json.RawMessage
	if err := s.conn.Call(ctx, method, params, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return raw, nil
}

// drainNotifications consumes analyzer notifications for the adapter's
// lifetime. Diagnostics update the document store and are relayed; anything
// else is logged and dropped. Ends when the connection dies.
func (s *RustServer) drainNotifications(conn *Conn) {
	for n := range conn.Notifications() {
		switch n.Method {
		case "textDocument/publishDiagnostics":
			var params protocol.PublishDiagnosticsParams
			if err := json.Unmarshal(n.Params, &params); err != nil {
				s.log.Warnw("Diagnostics notification did not parse",
					"language", "rust",
					"error", err)
				continue
			}
			s.docs.SetDiagnostics(string(params.URI), params.Diagnostics)
			if s.publish != nil {
				s.publish("rust", &params)
			}
		default:
			s.log.Debugw("Unhandled analyzer notification",
				"language", "rust",
				"method", n.Method)
		}
	}

	// Connection gone; reflect it so state queries stop reporting running
	s.running.Store(false)
}

// decodeLocations handles both the single-Location and Location-array answer
// shapes. Anything else yields no result.
func decodeLocations(raw json.RawMessage, log *zap.SugaredLogger) ([]protocol.Location, error) {
	var locations []protocol.Location
	if err := json.Unmarshal(raw, &locations); err == nil {
		return locations, nil
	}

	var single protocol.Location
	if err := json.Unmarshal(raw, &single); err == nil {
		return []protocol.Location{single}, nil
	}

	log.Debugw("Location result did not parse, returning no result")
	return nil, nil
}

// defaultInitializeResult is the conservative capability set used when the
// analyzer's own answer is unavailable. Full-document sync plus the feature
// set every adapter implements.
func defaultInitializeResult() *protocol.InitializeResult {
	syncKind := protocol.TextDocumentSyncKindFull
	version := "unknown"
	t := true
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: &t,
				Change:    &syncKind,
			},
			CompletionProvider:         &protocol.CompletionOptions{},
			HoverProvider:              &protocol.HoverOptions{},
			DefinitionProvider:         &protocol.DefinitionOptions{},
			ReferencesProvider:         &protocol.ReferenceOptions{},
			DocumentFormattingProvider: &protocol.DocumentFormattingOptions{},
		},
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    rustAnalyzerBinary,
			Version: &version,
		},
	}
}
