package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/vmoranv/cerise/internal/cerr"
	"github.com/vmoranv/cerise/internal/logging"
)

// StdioClient is the MCP client described in §4.5: spawns a subprocess over
// stdio, frames requests/responses with the LSP-style Content-Length
// envelope, and dispatches responses to pending callers by request id.
// Adapted from opencode's StdioTransport (internal/mcp/transport.go)
// reader-goroutine + pending-future-map + write-mutex shape, retargeted
// from newline-delimited JSON to Content-Length framing and from the
// undefined ad hoc JSON-RPC types to the ones defined in framing.go.
type StdioClient struct {
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader

	writeMu sync.Mutex
	nextID  int64

	pendingMu sync.Mutex
	pending   map[int64]chan *JSONRPCResponse

	closeMu sync.Mutex
	closed  bool

	tools []Tool
}

// NewStdioClient spawns command as a subprocess and starts its reader
// goroutine. It does not perform the initialize handshake; call Start for
// that.
func NewStdioClient(ctx context.Context, name string, command []string, env map[string]string) (*StdioClient, error) {
	if len(command) == 0 {
		return nil, cerr.New(cerr.InvalidArgument, "mcp.NewStdioClient", fmt.Errorf("empty command"))
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, cerr.New(cerr.Transport, "mcp.NewStdioClient", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, cerr.New(cerr.Transport, "mcp.NewStdioClient", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, cerr.New(cerr.Transport, "mcp.NewStdioClient", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, cerr.New(cerr.Transport, "mcp.NewStdioClient", err)
	}

	c := &StdioClient{
		name:    name,
		cmd:     cmd,
		stdin:   stdin,
		reader:  bufio.NewReader(stdout),
		pending: make(map[int64]chan *JSONRPCResponse),
	}

	go c.readLoop()
	go c.drainStderr(stderr)

	return c, nil
}

func (c *StdioClient) drainStderr(r io.Reader) {
	l := logging.Logger.With().Str("component", "mcp.client").Str("server", c.name).Logger()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		l.Debug().Str("stderr", scanner.Text()).Msg("mcp server stderr")
	}
}

func (c *StdioClient) readLoop() {
	for {
		var resp JSONRPCResponse
		if err := decodeFramed(c.reader, &resp); err != nil {
			c.failAllPending(err)
			return
		}
		if resp.ID == nil {
			continue
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[*resp.ID]
		if ok {
			delete(c.pending, *resp.ID)
		}
		c.pendingMu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func (c *StdioClient) failAllPending(err error) {
	c.closeMu.Lock()
	c.closed = true
	c.closeMu.Unlock()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		ch <- &JSONRPCResponse{ID: &id, Error: &JSONRPCError{Code: ErrCodeInternal, Message: "client closed: " + err.Error()}}
		close(ch)
	}
	c.pending = make(map[int64]chan *JSONRPCResponse)
	c.pendingMu.Unlock()
}

// Request sends a method call and blocks for its response.
func (c *StdioClient) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.closeMu.Lock()
	closed := c.closed
	c.closeMu.Unlock()
	if closed {
		return nil, cerr.New(cerr.FailedPrecondition, "mcp.Request", fmt.Errorf("client closed"))
	}

	id := atomic.AddInt64(&c.nextID, 1)
	ch := make(chan *JSONRPCResponse, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	var rawParams json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, cerr.New(cerr.InvalidArgument, "mcp.Request", err)
		}
		rawParams = b
	}

	req := JSONRPCRequest{JSONRPC: "2.0", ID: &id, Method: method, Params: rawParams}
	c.writeMu.Lock()
	err := writeFramed(c.stdin, req)
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, cerr.New(cerr.Transport, "mcp.Request", err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, cerr.New(cerr.ExternalError, "mcp.Request", fmt.Errorf("%s (code %d)", resp.Error.Message, resp.Error.Code))
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, cerr.New(cerr.Cancelled, "mcp.Request", ctx.Err())
	}
}

// Notify sends a notification (no id, no response expected).
func (c *StdioClient) Notify(method string, params any) error {
	var rawParams json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return cerr.New(cerr.InvalidArgument, "mcp.Notify", err)
		}
		rawParams = b
	}
	req := JSONRPCRequest{JSONRPC: "2.0", Method: method, Params: rawParams}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFramed(c.stdin, req)
}

// initializeParams mirrors the MCP initialize request payload.
type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Start performs the initialize handshake then fires the initialized
// notification, per §4.5.
func (c *StdioClient) Start(ctx context.Context) error {
	_, err := c.Request(ctx, "initialize", initializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: "cerise", Version: "0.1.0"},
	})
	if err != nil {
		return err
	}
	return c.Notify("initialized", nil)
}

type listToolsResult struct {
	Tools []rawTool `json:"tools"`
}

type rawTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ListTools calls tools/list and caches the result.
func (c *StdioClient) ListTools(ctx context.Context) ([]Tool, error) {
	raw, err := c.Request(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var result listToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, cerr.New(cerr.Corruption, "mcp.ListTools", err)
	}
	tools := make([]Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		tools = append(tools, Tool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	c.tools = tools
	return tools, nil
}

type callToolParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments,omitempty"`
}

type callToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// CallTool calls tools/call and returns the raw result.
func (c *StdioClient) CallTool(ctx context.Context, name string, arguments json.RawMessage) (*callToolResult, error) {
	var args any
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return nil, cerr.New(cerr.InvalidArgument, "mcp.CallTool", err)
		}
	}
	raw, err := c.Request(ctx, "tools/call", callToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	var result callToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, cerr.New(cerr.Corruption, "mcp.CallTool", err)
	}
	return &result, nil
}

// Close cancels all pending requests with a closed-client error, terminates
// the subprocess, and is safe to call more than once.
func (c *StdioClient) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	c.stdin.Close()
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	return c.cmd.Wait()
}
