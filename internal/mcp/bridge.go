package mcp

import (
	"context"
	"encoding/json"

	"github.com/vmoranv/cerise/internal/ability"
	"github.com/vmoranv/cerise/pkg/types"
)

// bridgedAbility wraps a remote MCP tool as an ability.Ability, so the MCP
// manager can register every connected server's tools into the shared
// Ability Registry. Adapted from opencode's MCPToolWrapper
// (internal/mcp/tool_wrapper.go), which wrapped remote tools into the
// coding-assistant's tool.Tool interface; Cerise abilities replace that
// interface, so this wraps into ability.Ability instead.
type bridgedAbility struct {
	info   types.AbilityInfo
	client *StdioClient
}

// NewBridgedAbility builds an Ability that dispatches to client.CallTool
// for the remote tool named remoteName, exposed locally under localName
// (the §4.5-sanitized name).
func NewBridgedAbility(localName, remoteName, description string, inputSchema json.RawMessage, client *StdioClient) ability.Ability {
	return &bridgedAbility{
		info: types.AbilityInfo{
			Name:             localName,
			DisplayName:      remoteName,
			Description:      description,
			Type:             types.AbilityPlugin,
			Category:         "mcp",
			ParametersSchema: inputSchema,
		},
		client: client,
	}
}

func (b *bridgedAbility) Info() types.AbilityInfo { return b.info }

// Execute calls the remote tool and converts its MCP content response into
// an AbilityResult, per §4.5: text content becomes Data, isError=true
// becomes Success=false.
func (b *bridgedAbility) Execute(ctx context.Context, params json.RawMessage, _ types.AbilityContext) (*types.AbilityResult, error) {
	result, err := b.client.CallTool(ctx, b.info.DisplayName, params)
	if err != nil {
		return nil, err
	}

	var text string
	for _, c := range result.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}

	if result.IsError {
		return &types.AbilityResult{Success: false, Error: text}, nil
	}
	return &types.AbilityResult{Success: true, Data: text}, nil
}
