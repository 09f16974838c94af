package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/vmoranv/cerise/internal/ability"
	"github.com/vmoranv/cerise/internal/logging"
	"github.com/vmoranv/cerise/pkg/types"
)

// ServerConfig configures the default identity a bridged tool call runs
// under, since stdio tool calls carry no session of their own.
type ServerConfig struct {
	DefaultUserID      string
	DefaultSessionID   string
	AllowedPermissions []string
}

// StdioAbilityServer exposes an ability.Scheduler's tool schemas as an MCP
// server over framed stdio, per §4.5. It reads requests from in, writes
// responses to out, and serves exactly the methods the spec names:
// initialize, tools/list, tools/call, ping.
type StdioAbilityServer struct {
	scheduler *ability.Scheduler
	cfg       ServerConfig
	log       *zerolog.Logger
}

// NewStdioAbilityServer builds a server backed by scheduler.
func NewStdioAbilityServer(scheduler *ability.Scheduler, cfg ServerConfig) *StdioAbilityServer {
	l := logging.Logger.With().Str("component", "mcp.server").Logger()
	return &StdioAbilityServer{scheduler: scheduler, cfg: cfg, log: &l}
}

// Serve reads framed JSON-RPC requests from in and writes framed responses
// to out until in is exhausted or ctx is cancelled.
func (s *StdioAbilityServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var req JSONRPCRequest
		if err := decodeFramed(reader, &req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if req.ID == nil {
			// Notification: no response expected.
			continue
		}

		resp := s.handle(ctx, req)
		if err := writeFramed(out, resp); err != nil {
			return err
		}
	}
}

func (s *StdioAbilityServer) handle(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return s.reply(req.ID, map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "cerise", "version": "0.1.0"},
		})
	case "ping":
		return s.reply(req.ID, map[string]any{})
	case "tools/list":
		return s.reply(req.ID, listToolsResult{Tools: s.toolList()})
	case "tools/call":
		return s.handleToolCall(ctx, req)
	default:
		return s.errorReply(req.ID, ErrCodeMethodNotFound, "method not found: "+req.Method)
	}
}

func (s *StdioAbilityServer) toolList() []rawTool {
	infos := s.scheduler.ToolSchemas()
	out := make([]rawTool, 0, len(infos))
	for _, info := range infos {
		out = append(out, rawTool{Name: info.Name, Description: info.Description, InputSchema: info.ParametersSchema})
	}
	return out
}

func (s *StdioAbilityServer) handleToolCall(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorReply(req.ID, ErrCodeInvalidParams, "invalid tools/call params: "+err.Error())
	}

	var argBytes json.RawMessage
	if params.Arguments != nil {
		b, err := json.Marshal(params.Arguments)
		if err != nil {
			return s.errorReply(req.ID, ErrCodeInvalidParams, "invalid arguments: "+err.Error())
		}
		argBytes = b
	}

	actx := types.AbilityContext{
		UserID:      s.cfg.DefaultUserID,
		SessionID:   s.cfg.DefaultSessionID,
		Permissions: s.cfg.AllowedPermissions,
	}

	result := s.scheduler.Execute(ctx, params.Name, argBytes, actx)

	callResult := callToolResult{IsError: !result.Success}
	if result.Success {
		text, _ := json.Marshal(result.Data)
		callResult.Content = []Content{{Type: "text", Text: string(text)}}
	} else {
		callResult.Content = []Content{{Type: "text", Text: result.Error}}
	}
	return s.reply(req.ID, callResult)
}

func (s *StdioAbilityServer) reply(id *int64, result any) JSONRPCResponse {
	body, err := json.Marshal(result)
	if err != nil {
		return s.errorReply(id, ErrCodeInternal, err.Error())
	}
	return JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: body}
}

func (s *StdioAbilityServer) errorReply(id *int64, code int, msg string) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &JSONRPCError{Code: code, Message: msg}}
}
