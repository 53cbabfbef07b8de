// Package langserver manages external language-analysis processes: the
// JSON-RPC stdio bridge, per-language adapters, and the singleton registry
// that owns them.
package langserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/teranos/langgate/errors"
)

// notificationBuffer bounds the inbound notification queue. The drain task
// normally keeps up; if it is gone, excess notifications are dropped with a
// warning instead of stalling the read loop.
const notificationBuffer = 256

// Notification is a JSON-RPC message with a method and no id.
type Notification struct {
	Method string
	Params json.RawMessage
}

// Conn owns one analyzer child process and speaks JSON-RPC 2.0 over its
// stdin/stdout using Content-Length framing. Outbound writes are serialized;
// inbound messages are demultiplexed into pending-call slots and a
// notification channel by a background read loop.
type Conn struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	log    *zap.SugaredLogger

	nextID  atomic.Int64
	pending map[int64]chan *jsonrpcResponse
	mu      sync.Mutex
	closed  bool

	writeMu       sync.Mutex
	notifications chan Notification
	closeOnce     sync.Once
	closeErr      error
}

// jsonrpcRequest represents a JSON-RPC 2.0 request
type jsonrpcRequest struct {
	Jsonrpc string      `json:"jsonrpc"`
	ID      int64       `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// jsonrpcResponse represents a JSON-RPC 2.0 response
type jsonrpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      int64           `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

// jsonrpcError represents a JSON-RPC 2.0 error
type jsonrpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// jsonrpcInbound is the superset shape used to classify incoming messages:
// responses carry an id, notifications carry a method and no id.
type jsonrpcInbound struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonrpcError   `json:"error"`
}

// Open starts cmd and wraps its stdio pipes in a Conn. The command must not
// have been started. Spawn failures carry ErrProcessSpawn.
func Open(cmd *exec.Cmd, log *zap.SugaredLogger) (*Conn, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to create analyzer stdin pipe"), errors.ErrProcessSpawn)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to create analyzer stdout pipe"), errors.ErrProcessSpawn)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to create analyzer stderr pipe"), errors.ErrProcessSpawn)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to start analyzer process %s", cmd.Path), errors.ErrProcessSpawn)
	}

	conn := &Conn{
		cmd:           cmd,
		stdin:         stdin,
		stdout:        stdout,
		stderr:        stderr,
		log:           log,
		pending:       make(map[int64]chan *jsonrpcResponse),
		notifications: make(chan Notification, notificationBuffer),
	}

	// Read responses and notifications in background
	go conn.readLoop()

	// Consume stderr to prevent the analyzer from blocking on a full pipe
	go conn.stderrLoop()

	return conn, nil
}

// Pid returns the OS process id of the child analyzer.
func (c *Conn) Pid() int {
	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Notifications returns the channel of decoded server notifications. The
// channel is closed when the connection dies.
func (c *Conn) Notifications() <-chan Notification {
	return c.notifications
}

// Call sends a JSON-RPC request and waits for its response. Remote errors
// surface as *errors.RemoteError; a dead connection surfaces as
// ErrDisconnected; a done context returns ctx.Err().
func (c *Conn) Call(ctx context.Context, method string, params, result interface{}) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.Wrapf(errors.ErrDisconnected, "call %s", method)
	}

	id := c.nextID.Add(1)
	responseChan := make(chan *jsonrpcResponse, 1)
	c.pending[id] = responseChan
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req := jsonrpcRequest{
		Jsonrpc: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}

	if err := c.writeMessage(req); err != nil {
		return errors.Wrapf(err, "failed to write JSON-RPC request for method %s", method)
	}

	select {
	case resp, ok := <-responseChan:
		if !ok || resp == nil {
			// Channel closed by teardown while the call was in flight
			return errors.Wrapf(errors.ErrDisconnected, "call %s", method)
		}
		if resp.Error != nil {
			remote := &errors.RemoteError{Code: resp.Error.Code, Message: resp.Error.Message}
			return errors.Wrapf(remote, "method %s", method)
		}
		if result != nil && resp.Result != nil {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return errors.Mark(
					errors.Wrapf(err, "failed to unmarshal JSON-RPC response for method %s", method),
					errors.ErrResponseParse)
			}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify sends a JSON-RPC notification (no response expected).
func (c *Conn) Notify(method string, params interface{}) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.Wrapf(errors.ErrDisconnected, "notify %s", method)
	}
	c.mu.Unlock()

	req := jsonrpcRequest{
		Jsonrpc: "2.0",
		Method:  method,
		Params:  params,
	}
	if err := c.writeMessage(req); err != nil {
		return errors.Wrapf(err, "failed to write JSON-RPC notification %s", method)
	}
	return nil
}

// Close tears down the connection: kills the child process, releases the
// pipes, and fails all pending calls with ErrDisconnected. Idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		if c.stdin != nil {
			c.stdin.Close()
		}

		if c.cmd != nil && c.cmd.Process != nil {
			if err := c.cmd.Process.Kill(); err != nil {
				// Process may already be gone
				c.log.Debugw("Kill on analyzer process returned error",
					"pid", c.cmd.Process.Pid,
					"error", err)
			}
			// Reap the child; also closes the stdout/stderr pipes, which
			// ends the read loops.
			c.closeErr = c.cmd.Wait()
		}
	})
	return nil
}

// writeMessage writes a JSON-RPC message with LSP Content-Length framing.
// One writer at a time preserves message-boundary integrity.
func (c *Conn) writeMessage(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON-RPC message")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	if _, err := c.stdin.Write([]byte(header)); err != nil {
		return errors.Mark(errors.Wrap(err, "failed to write LSP header"), errors.ErrDisconnected)
	}
	if _, err := c.stdin.Write(data); err != nil {
		return errors.Mark(errors.Wrap(err, "failed to write LSP message"), errors.ErrDisconnected)
	}

	return nil
}

// readLoop continuously reads framed JSON-RPC messages from the analyzer and
// classifies them: responses complete pending calls, notifications are queued
// for the drain task, anything else is logged and dropped.
func (c *Conn) readLoop() {
	defer func() {
		c.failPending()
		close(c.notifications)
	}()

	reader := bufio.NewReader(c.stdout)

	for {
		// Read headers until we find Content-Length
		var contentLength int
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}

			line = strings.TrimSpace(line)
			if line == "" {
				// Empty line marks end of headers
				break
			}

			if _, err := fmt.Sscanf(line, "Content-Length: %d", &contentLength); err == nil {
				continue
			}
		}

		if contentLength == 0 {
			continue
		}

		content := make([]byte, contentLength)
		if _, err := io.ReadFull(reader, content); err != nil {
			return
		}

		var msg jsonrpcInbound
		if err := json.Unmarshal(content, &msg); err != nil {
			c.log.Warnw("Failed to parse analyzer message",
				"error", err,
				"length", contentLength)
			continue
		}

		c.dispatch(&msg)
	}
}

// dispatch routes one decoded inbound message.
func (c *Conn) dispatch(msg *jsonrpcInbound) {
	// Notification: method present, no id
	if msg.ID == nil && msg.Method != "" {
		select {
		case c.notifications <- Notification{Method: msg.Method, Params: msg.Params}:
		default:
			c.log.Warnw("Notification queue full, dropping",
				"method", msg.Method)
		}
		return
	}

	// Response: id present, no method
	if msg.ID != nil && msg.Method == "" {
		c.mu.Lock()
		ch, ok := c.pending[*msg.ID]
		c.mu.Unlock()
		if !ok {
			c.log.Debugw("Response for unknown request id, dropping",
				"id", *msg.ID)
			return
		}
		ch <- &jsonrpcResponse{
			Jsonrpc: msg.Jsonrpc,
			ID:      *msg.ID,
			Result:  msg.Result,
			Error:   msg.Error,
		}
		return
	}

	// Server-to-client request or malformed message
	c.log.Debugw("Unclassifiable analyzer message, dropping",
		"method", msg.Method)
}

// failPending closes every pending call slot so waiting callers observe
// ErrDisconnected.
func (c *Conn) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// stderrLoop consumes stderr output to prevent the analyzer from blocking.
// Analyzers write progress and warnings here.
func (c *Conn) stderrLoop() {
	scanner := bufio.NewScanner(c.stderr)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			c.log.Debugw("Analyzer stderr",
				"line", line)
		}
	}
}
