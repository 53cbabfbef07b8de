// Package gateway serves the aggregate language-server service to editor
// front-ends over a WebSocket endpoint with port fallback and idempotent
// lifecycle control.
package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/langgate/am"
	"github.com/teranos/langgate/errors"
	"github.com/teranos/langgate/langserver"
	"github.com/teranos/langgate/logger"
)

const (
	// maxBindAttempts bounds the ascending-port retry when the requested
	// port fails to bind
	maxBindAttempts = 5

	// ShutdownTimeout bounds the wait for session goroutines during Stop
	ShutdownTimeout = 5 * time.Second
)

// Gateway binds a WebSocket listener and relays JSON-RPC LSP traffic between
// connected front-ends and the running language adapters.
//
// Start is idempotent and optimistic: a port already in use is assumed to be
// a prior instance of this gateway, and bind failures after the ascending
// retries surface only through IsRunning, never through Start's return.
type Gateway struct {
	registry *langserver.Registry
	log      *zap.SugaredLogger

	cfgMu sync.RWMutex
	cfg   *am.Config

	running   atomic.Bool
	boundPort atomic.Int32

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server

	sessMu   sync.Mutex
	sessions map[*Session]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a gateway serving the given registry.
func New(registry *langserver.Registry, cfg *am.Config, log *zap.SugaredLogger) *Gateway {
	if log == nil {
		log = logger.Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		registry: registry,
		cfg:      cfg,
		log:      log.Named("gateway"),
		sessions: make(map[*Session]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start brings the listener up on port, retrying on ascending ports. The
// returned status is an optimistic acknowledgment; the actual bind happens
// asynchronously and its failure is reflected in IsRunning, not here.
func (g *Gateway) Start(port int) (string, error) {
	if g.running.Load() {
		return fmt.Sprintf("LSP gateway already running on port %d", g.boundPort.Load()), nil
	}

	// A restart after Stop needs a fresh context for the session pumps
	g.mu.Lock()
	if g.ctx.Err() != nil {
		g.ctx, g.cancel = context.WithCancel(context.Background())
	}
	g.mu.Unlock()

	// An occupied port is assumed to be a prior instance of this gateway
	// already serving. The probe cannot tell ours from an unrelated process;
	// log the caveat and report success.
	if !isPortAvailable(port) {
		g.log.Infow("Port occupied, assuming a prior gateway instance is serving",
			"port", port,
			"caveat", "cannot distinguish our own instance from an unrelated process")
		g.running.Store(true)
		g.boundPort.Store(int32(port))
		return fmt.Sprintf("LSP gateway already running on port %d", port), nil
	}

	g.running.Store(true)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.bindAndServe(port)
	}()

	return fmt.Sprintf("LSP gateway starting on port %d", port), nil
}

// bindAndServe attempts the requested port and up to maxBindAttempts
// ascending candidates. Exhaustion forces the running flag back off.
func (g *Gateway) bindAndServe(port int) {
	var listener net.Listener
	var boundPort int
	var lastErr error

	for attempt := 0; attempt < maxBindAttempts; attempt++ {
		candidate := port + attempt
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", candidate))
		if err != nil {
			lastErr = err
			g.log.Warnw("Port bind failed, trying next",
				"port", candidate,
				"attempt", attempt+1,
				"error", err)
			continue
		}
		listener = l
		boundPort = candidate
		break
	}

	if listener == nil {
		// The caller already got an optimistic acknowledgment; the failure
		// is reflected in the running flag and the log only.
		g.running.Store(false)
		g.log.Errorw("All candidate ports exhausted, gateway not started",
			"first_port", port,
			"attempts", maxBindAttempts,
			"error", errors.Wrapf(errors.ErrPortBindFailure, "last bind error: %v", lastErr))
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/lsp", g.handleWebSocket)
	server := &http.Server{Handler: mux}

	g.mu.Lock()
	g.listener = listener
	g.httpServer = server
	g.mu.Unlock()

	g.boundPort.Store(int32(boundPort))
	if boundPort != port {
		g.log.Infow("Requested port unavailable, bound alternative",
			"requested_port", port,
			"port", boundPort)
	}
	g.log.Infow("LSP gateway listening",
		"address", listener.Addr().String(),
		"port", boundPort)

	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		g.log.Warnw("Gateway serve loop ended",
			"error", err)
	}
	g.running.Store(false)
}

// SetConfig swaps the gateway configuration, typically on a config file
// reload. New sessions pick up the new origins and limits; established
// sessions keep the settings they connected with.
func (g *Gateway) SetConfig(cfg *am.Config) {
	g.cfgMu.Lock()
	g.cfg = cfg
	g.cfgMu.Unlock()
}

// config returns the current configuration, nil when none was loaded.
func (g *Gateway) config() *am.Config {
	g.cfgMu.RLock()
	defer g.cfgMu.RUnlock()
	return g.cfg
}

// IsRunning reflects the running flag only; it does not verify the socket is
// accepting connections.
func (g *Gateway) IsRunning() bool {
	return g.running.Load()
}

// BoundPort returns the port the gateway considers itself bound to.
func (g *Gateway) BoundPort() int {
	return int(g.boundPort.Load())
}

// Stop closes the listener and all sessions. No-op success when not running.
func (g *Gateway) Stop() (string, error) {
	if !g.running.Load() {
		return "LSP gateway not running", nil
	}
	g.running.Store(false)

	// Close sessions before cancelling the context so their pumps exit on
	// the connection close, not on a context race
	g.sessMu.Lock()
	sessions := make([]*Session, 0, len(g.sessions))
	for session := range g.sessions {
		sessions = append(sessions, session)
		delete(g.sessions, session)
	}
	g.sessMu.Unlock()

	if len(sessions) > 0 {
		g.log.Infow("Closing gateway sessions",
			"count", len(sessions))
		for _, session := range sessions {
			session.close()
		}
	}

	g.mu.Lock()
	server := g.httpServer
	listener := g.listener
	g.httpServer = nil
	g.listener = nil
	g.mu.Unlock()

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			g.log.Warnw("HTTP server shutdown error",
				"error", err)
		}
	} else if listener != nil {
		listener.Close()
	}

	g.cancel()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.log.Infow("Gateway stopped cleanly")
	case <-time.After(ShutdownTimeout):
		g.log.Warnw("Gateway goroutine shutdown timed out",
			"timeout", ShutdownTimeout)
	}

	return "LSP gateway stopped", nil
}

// CleanupOnExit is the best-effort stop used during process teardown.
// Failures are logged, never propagated, since the host is exiting anyway.
func (g *Gateway) CleanupOnExit() {
	if !g.running.Load() {
		return
	}
	if _, err := g.Stop(); err != nil {
		g.log.Warnw("Gateway cleanup on exit failed",
			"error", err)
	}
}

// handleWebSocket upgrades one front-end connection into a session.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := newUpgrader(g.config())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Errorw("WebSocket upgrade failed",
			"remote", r.RemoteAddr,
			"error", err)
		return
	}

	session := newSession(g, conn)

	g.sessMu.Lock()
	g.sessions[session] = struct{}{}
	g.sessMu.Unlock()

	g.log.Infow("Front-end session opened",
		"session_id", session.id,
		"remote", r.RemoteAddr)

	g.wg.Add(2)
	go func() {
		defer g.wg.Done()
		session.writePump()
	}()
	go func() {
		defer g.wg.Done()
		session.readPump()
	}()
}

// removeSession drops a finished session from the set.
func (g *Gateway) removeSession(session *Session) {
	g.sessMu.Lock()
	delete(g.sessions, session)
	g.sessMu.Unlock()
}
