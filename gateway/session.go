package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/langgate/errors"
	"github.com/teranos/langgate/langserver"
)

// WebSocket timeout constants following Gorilla best practices
// See: https://github.com/gorilla/websocket/blob/master/examples/chat/client.go
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer unless config overrides it
	defaultMaxMessageSize = 1024 * 1024

	// Outbound queue depth per session
	sendBuffer = 64
)

// JSON-RPC 2.0 error codes relayed to front-ends
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// wireMessage is the JSON-RPC 2.0 envelope exchanged with front-ends. The id
// is kept raw so numeric and string ids echo back unchanged.
type wireMessage struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Session is one connected front-end. The write pump owns all writes to the
// WebSocket; every other goroutine queues onto the send channel.
type Session struct {
	id      string
	gateway *Gateway
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	log     *zap.SugaredLogger

	closeOnce sync.Once
	closeMu   sync.RWMutex
	closed    bool
}

func newSession(g *Gateway, conn *websocket.Conn) *Session {
	cfg := g.config()
	limit := rate.Inf
	burst := 0
	if cfg != nil && cfg.Gateway.RatePerSecond > 0 {
		limit = rate.Limit(cfg.Gateway.RatePerSecond)
		burst = cfg.Gateway.RateBurst
		if burst <= 0 {
			burst = int(cfg.Gateway.RatePerSecond)
		}
	}

	id := uuid.New().String()[:8]
	return &Session{
		id:      id,
		gateway: g,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: rate.NewLimiter(limit, burst),
		log:     g.log.Named("session").With("session_id", id),
	}
}

// maxMessageSize returns the configured inbound frame limit.
func (s *Session) maxMessageSize() int64 {
	if cfg := s.gateway.config(); cfg != nil && cfg.Gateway.MaxMessageSize > 0 {
		return cfg.Gateway.MaxMessageSize
	}
	return defaultMaxMessageSize
}

// readPump handles reading messages from the WebSocket connection
func (s *Session) readPump() {
	defer func() {
		s.gateway.registry.Unsubscribe(s.id)
		s.gateway.removeSession(s)
		s.conn.Close()
	}()

	// Relay analyzer diagnostics to this front-end for the session lifetime
	s.gateway.registry.Subscribe(s.id, s.relayDiagnostics)

	s.conn.SetReadLimit(s.maxMessageSize())
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	s.log.Debugw("Read pump started")

	for {
		_, messageBytes, err := s.conn.ReadMessage()
		if err != nil {
			s.handleReadError(err)
			break
		}

		if !s.limiter.Allow() {
			s.log.Warnw("Inbound message rate limit exceeded, dropping frame",
				"size", len(messageBytes))
			continue
		}

		var msg wireMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			s.log.Warnw("JSON unmarshal error",
				"error", err.Error())
			s.writeError(nil, codeParseError, "parse error")
			continue
		}

		s.routeMessage(&msg)
	}
}

// handleReadError logs unexpected WebSocket read errors. Expected closure
// codes (going away, abnormal, no status) are silently ignored.
func (s *Session) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		s.log.Warnw("WebSocket read error",
			"error", err)
	}
}

// writePump writes queued messages and pings to the WebSocket connection
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	s.log.Debugw("Write pump started")

	for {
		select {
		case <-s.gateway.ctx.Done():
			s.log.Debugw("Write pump stopping due to gateway shutdown")
			return
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.log.Warnw("Message write error",
					"error", err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// routeMessage dispatches one front-end JSON-RPC message. Document and
// feature methods route to the adapter serving the document's language.
func (s *Session) routeMessage(msg *wireMessage) {
	switch msg.Method {
	case "initialize":
		s.handleInitialize(msg)
	case "initialized":
		if adapter, ok := s.runningAdapter(); ok {
			if err := adapter.Initialized(s.gateway.ctx); err != nil {
				s.log.Debugw("Initialized forward failed",
					"error", err)
			}
		}
	case "shutdown":
		s.writeResult(msg.ID, nil)
	case "exit":
		s.close()
	case "textDocument/didOpen":
		s.handleDidOpen(msg)
	case "textDocument/didChange":
		s.handleDidChange(msg)
	case "textDocument/didSave":
		s.handleDidSave(msg)
	case "textDocument/didClose":
		s.handleDidClose(msg)
	case "textDocument/completion":
		s.handleCompletion(msg)
	case "textDocument/hover":
		s.handleHover(msg)
	case "textDocument/definition":
		s.handleDefinition(msg)
	case "textDocument/references":
		s.handleReferences(msg)
	case "textDocument/formatting":
		s.handleFormatting(msg)
	default:
		if msg.ID != nil {
			s.writeError(msg.ID, codeMethodNotFound, "method not found: "+msg.Method)
		} else {
			s.log.Debugw("Unknown notification method",
				"method", msg.Method)
		}
	}
}

// runningAdapter returns the single running adapter when exactly one
// language is active.
func (s *Session) runningAdapter() (langserver.LanguageServer, bool) {
	for _, language := range s.gateway.registry.SupportedLanguages() {
		if adapter, ok := s.gateway.registry.Adapter(language); ok {
			return adapter, true
		}
	}
	return nil, false
}

// adapterForParams routes by the textDocument.uri inside params.
func (s *Session) adapterForParams(params json.RawMessage) (langserver.LanguageServer, bool) {
	var probe struct {
		TextDocument struct {
			URI string `json:"uri"`
		} `json:"textDocument"`
	}
	if err := json.Unmarshal(params, &probe); err != nil || probe.TextDocument.URI == "" {
		return nil, false
	}
	return s.gateway.registry.AdapterForURI(probe.TextDocument.URI)
}

func (s *Session) handleInitialize(msg *wireMessage) {
	adapter, ok := s.runningAdapter()
	if !ok {
		// No analyzer yet; answer with the conservative default so the
		// front-end session proceeds
		s.writeResult(msg.ID, defaultSessionCapabilities())
		return
	}

	result, err := adapter.InitializeProtocol(s.gateway.ctx, msg.Params)
	if err != nil {
		s.log.Warnw("Initialize failed",
			"error", err)
		s.writeResult(msg.ID, defaultSessionCapabilities())
		return
	}
	s.writeResult(msg.ID, result)
}

func (s *Session) handleDidOpen(msg *wireMessage) {
	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.log.Warnw("didOpen params did not parse",
			"error", err)
		return
	}
	adapter, ok := s.gateway.registry.AdapterForURI(string(params.TextDocument.URI))
	if !ok {
		s.log.Debugw("didOpen for language with no running analyzer",
			"uri", params.TextDocument.URI)
		return
	}
	if err := adapter.DidOpen(s.gateway.ctx, &params); err != nil {
		s.log.Warnw("didOpen forward failed",
			"uri", params.TextDocument.URI,
			"error", err)
	}
}

func (s *Session) handleDidChange(msg *wireMessage) {
	var params protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.log.Warnw("didChange params did not parse",
			"error", err)
		return
	}
	adapter, ok := s.gateway.registry.AdapterForURI(string(params.TextDocument.URI))
	if !ok {
		return
	}
	if err := adapter.DidChange(s.gateway.ctx, &params); err != nil {
		s.log.Warnw("didChange forward failed",
			"uri", params.TextDocument.URI,
			"error", err)
	}
}

func (s *Session) handleDidSave(msg *wireMessage) {
	var params protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.log.Warnw("didSave params did not parse",
			"error", err)
		return
	}
	adapter, ok := s.gateway.registry.AdapterForURI(string(params.TextDocument.URI))
	if !ok {
		return
	}
	if err := adapter.DidSave(s.gateway.ctx, &params); err != nil {
		s.log.Warnw("didSave forward failed",
			"uri", params.TextDocument.URI,
			"error", err)
	}
}

func (s *Session) handleDidClose(msg *wireMessage) {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.log.Warnw("didClose params did not parse",
			"error", err)
		return
	}
	adapter, ok := s.gateway.registry.AdapterForURI(string(params.TextDocument.URI))
	if !ok {
		return
	}
	if err := adapter.DidClose(s.gateway.ctx, &params); err != nil {
		s.log.Warnw("didClose forward failed",
			"uri", params.TextDocument.URI,
			"error", err)
	}
}

func (s *Session) handleCompletion(msg *wireMessage) {
	adapter, ok := s.adapterForParams(msg.Params)
	if !ok {
		s.writeResult(msg.ID, nil)
		return
	}
	var params protocol.CompletionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.writeError(msg.ID, codeInvalidParams, "invalid completion params")
		return
	}
	result, err := adapter.Completion(s.gateway.ctx, &params)
	s.writeFeatureResult(msg.ID, result, err)
}

func (s *Session) handleHover(msg *wireMessage) {
	adapter, ok := s.adapterForParams(msg.Params)
	if !ok {
		s.writeResult(msg.ID, nil)
		return
	}
	var params protocol.HoverParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.writeError(msg.ID, codeInvalidParams, "invalid hover params")
		return
	}
	result, err := adapter.Hover(s.gateway.ctx, &params)
	s.writeFeatureResult(msg.ID, result, err)
}

func (s *Session) handleDefinition(msg *wireMessage) {
	adapter, ok := s.adapterForParams(msg.Params)
	if !ok {
		s.writeResult(msg.ID, nil)
		return
	}
	var params protocol.DefinitionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.writeError(msg.ID, codeInvalidParams, "invalid definition params")
		return
	}
	result, err := adapter.Definition(s.gateway.ctx, &params)
	s.writeFeatureResult(msg.ID, result, err)
}

func (s *Session) handleReferences(msg *wireMessage) {
	adapter, ok := s.adapterForParams(msg.Params)
	if !ok {
		s.writeResult(msg.ID, nil)
		return
	}
	var params protocol.ReferenceParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.writeError(msg.ID, codeInvalidParams, "invalid references params")
		return
	}
	result, err := adapter.References(s.gateway.ctx, &params)
	s.writeFeatureResult(msg.ID, result, err)
}

func (s *Session) handleFormatting(msg *wireMessage) {
	adapter, ok := s.adapterForParams(msg.Params)
	if !ok {
		s.writeResult(msg.ID, nil)
		return
	}
	var params protocol.DocumentFormattingParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.writeError(msg.ID, codeInvalidParams, "invalid formatting params")
		return
	}
	result, err := adapter.Formatting(s.gateway.ctx, &params)
	s.writeFeatureResult(msg.ID, result, err)
}

// writeFeatureResult sends a feature response: remote errors relay their
// code and message, anything else internal-errors, nil results answer null.
func (s *Session) writeFeatureResult(id json.RawMessage, result interface{}, err error) {
	if err != nil {
		if remote, ok := errors.IsRemoteError(err); ok {
			s.writeError(id, remote.Code, remote.Message)
			return
		}
		s.writeError(id, codeInternalError, err.Error())
		return
	}
	s.writeResult(id, result)
}

// relayDiagnostics forwards analyzer diagnostics to the front-end as a
// publishDiagnostics notification.
func (s *Session) relayDiagnostics(language string, params *protocol.PublishDiagnosticsParams) {
	raw, err := json.Marshal(params)
	if err != nil {
		s.log.Warnw("Failed to marshal diagnostics",
			"language", language,
			"error", err)
		return
	}
	s.enqueue(wireMessage{
		Jsonrpc: "2.0",
		Method:  "textDocument/publishDiagnostics",
		Params:  raw,
	})
}

func (s *Session) writeResult(id json.RawMessage, result interface{}) {
	if result == nil {
		// A response carries result or error; an absent result field is
		// neither, so a missing value answers explicit null
		result = json.RawMessage("null")
	}
	s.enqueue(wireMessage{
		Jsonrpc: "2.0",
		ID:      id,
		Result:  result,
	})
}

func (s *Session) writeError(id json.RawMessage, code int, message string) {
	s.enqueue(wireMessage{
		Jsonrpc: "2.0",
		ID:      id,
		Error:   &wireError{Code: code, Message: message},
	})
}

// enqueue queues one outbound message for the write pump, dropping when the
// session is backed up.
func (s *Session) enqueue(msg wireMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Warnw("Failed to marshal outbound message",
			"error", err)
		return
	}

	// The closed flag is held for the send so close cannot slip between the
	// check and the channel write
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.send <- data:
	default:
		s.log.Warnw("Session send queue full, dropping message")
	}
}

// close safely shuts the session down once.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.gateway.registry.Unsubscribe(s.id)
		s.closeMu.Lock()
		s.closed = true
		close(s.send)
		s.closeMu.Unlock()
		s.conn.Close()
	})
}

// defaultSessionCapabilities is the answer to initialize when no analyzer is
// running yet.
func defaultSessionCapabilities() *protocol.InitializeResult {
	syncKind := protocol.TextDocumentSyncKindFull
	t := true
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: &t,
				Change:    &syncKind,
			},
		},
	}
}
