package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmoranv/cerise/internal/ability"
	"github.com/vmoranv/cerise/pkg/types"
)

type echoAbility struct{}

func (echoAbility) Info() types.AbilityInfo {
	return types.AbilityInfo{Name: "echo", Description: "echoes its input", ParametersSchema: json.RawMessage(`{}`)}
}

func (echoAbility) Execute(ctx context.Context, params json.RawMessage, _ types.AbilityContext) (*types.AbilityResult, error) {
	return &types.AbilityResult{Success: true, Data: string(params)}, nil
}

// TestEchoToolRoundTrip drives a StdioAbilityServer over an in-memory pipe
// pair with hand-framed requests, exercising tools/list and tools/call the
// way a real stdio subprocess boundary would.
func TestEchoToolRoundTrip(t *testing.T) {
	reg := ability.NewRegistry()
	reg.Register(echoAbility{})
	sched := ability.NewScheduler(reg, true, true, nil)
	server := NewStdioAbilityServer(sched, ServerConfig{DefaultUserID: "u1", DefaultSessionID: "s1"})

	clientReadFromServer, serverWrite := io.Pipe()
	serverReadFromClient, clientWrite := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, serverReadFromClient, serverWrite) }()

	reader := bufio.NewReader(clientReadFromServer)

	// tools/list
	id1 := int64(1)
	require.NoError(t, writeFramed(clientWrite, JSONRPCRequest{JSONRPC: "2.0", ID: &id1, Method: "tools/list"}))
	var listResp JSONRPCResponse
	require.NoError(t, decodeFramed(reader, &listResp))
	require.Nil(t, listResp.Error)
	var list listToolsResult
	require.NoError(t, json.Unmarshal(listResp.Result, &list))
	require.Len(t, list.Tools, 1)
	assert.Equal(t, "echo", list.Tools[0].Name)

	// tools/call
	id2 := int64(2)
	callParams, _ := json.Marshal(callToolParams{Name: "echo", Arguments: map[string]any{"msg": "hi"}})
	require.NoError(t, writeFramed(clientWrite, JSONRPCRequest{JSONRPC: "2.0", ID: &id2, Method: "tools/call", Params: callParams}))
	var callResp JSONRPCResponse
	require.NoError(t, decodeFramed(reader, &callResp))
	require.Nil(t, callResp.Error)
	var result callToolResult
	require.NoError(t, json.Unmarshal(callResp.Result, &result))
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Contains(t, result.Content[0].Text, "hi")

	clientWrite.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("server did not shut down after client closed")
	}
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	reg := ability.NewRegistry()
	sched := ability.NewScheduler(reg, true, true, nil)
	server := NewStdioAbilityServer(sched, ServerConfig{})

	serverRead, clientWrite := io.Pipe()
	clientRead, serverWrite := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx, serverRead, serverWrite)

	reader := bufio.NewReader(clientRead)
	id := int64(1)
	require.NoError(t, writeFramed(clientWrite, JSONRPCRequest{JSONRPC: "2.0", ID: &id, Method: "bogus"}))

	var resp JSONRPCResponse
	require.NoError(t, decodeFramed(reader, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
}
