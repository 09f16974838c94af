// Package provider provides LLM provider abstraction using Eino framework.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/vmoranv/cerise/pkg/types"
)

// Provider represents an LLM provider with Eino ChatModel.
type Provider interface {
	// ID returns the provider identifier.
	ID() string

	// Name returns the human-readable provider name.
	Name() string

	// Models returns the list of available models.
	Models() []types.Model

	// ChatModel returns the Eino ChatModel for this provider.
	ChatModel() model.ToolCallingChatModel

	// CreateCompletion creates a streaming completion.
	CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error)

	// GetCapabilities reports what this provider backend supports.
	GetCapabilities() ProviderCapabilities

	// AvailableModels lists the model IDs this provider currently exposes.
	AvailableModels() []string

	// Embed computes embedding vectors for texts with the given model (or
	// the provider's default embedding model if empty). Returns an error if
	// the provider has no embedding backend.
	Embed(ctx context.Context, texts []string, modelID string) ([][]float64, error)

	// Rerank scores documents against query and returns them ordered by
	// relevance, best first, truncated to topK (0 means no truncation).
	Rerank(ctx context.Context, query string, documents []string, modelID string, topK int) ([]RerankedDocument, error)
}

// ProviderCapabilities mirrors the external provider capability surface:
// chat, streaming, function calling, vision, embeddings, rerank, and the
// provider's largest advertised context window.
type ProviderCapabilities struct {
	Chat             bool `json:"chat"`
	Streaming        bool `json:"streaming"`
	FunctionCalling  bool `json:"functionCalling"`
	Vision           bool `json:"vision"`
	Embeddings       bool `json:"embeddings"`
	Rerank           bool `json:"rerank"`
	MaxContextLength int  `json:"maxContextLength"`
}

// RerankedDocument pairs a document's original index with its relevance
// score, per the provider abstraction's rerank return shape.
type RerankedDocument struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	Tools       []*schema.ToolInfo `json:"tools,omitempty"`
	MaxTokens   int               `json:"maxTokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
	TopP        float64           `json:"topP,omitempty"`
	StopWords   []string          `json:"stopWords,omitempty"`
}

// CompletionStream wraps an Eino stream reader.
type CompletionStream struct {
	reader *schema.StreamReader[*schema.Message]
}

// NewCompletionStream creates a new completion stream.
func NewCompletionStream(reader *schema.StreamReader[*schema.Message]) *CompletionStream {
	return &CompletionStream{reader: reader}
}

// Recv receives the next message chunk from the stream.
func (s *CompletionStream) Recv() (*schema.Message, error) {
	return s.reader.Recv()
}

// Close closes the stream.
func (s *CompletionStream) Close() {
	s.reader.Close()
}

// ToolInfo represents a tool definition for the LLM.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// ConvertToEinoTools converts internal tool definitions to Eino format.
func ConvertToEinoTools(tools []ToolInfo) []*schema.ToolInfo {
	result := make([]*schema.ToolInfo, len(tools))
	for i, t := range tools {
		// Parse parameters from JSON schema
		var params map[string]*schema.ParameterInfo
		if len(t.Parameters) > 0 {
			params = parseJSONSchemaToParams(t.Parameters)
		}

		result[i] = &schema.ToolInfo{
			Name: t.Name,
			Desc: t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		}
	}
	return result
}

// parseJSONSchemaToParams converts JSON Schema to Eino ParameterInfo.
func parseJSONSchemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var jsonSchema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}

	if err := json.Unmarshal(schemaJSON, &jsonSchema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool)
	for _, r := range jsonSchema.Required {
		requiredSet[r] = true
	}

	params := make(map[string]*schema.ParameterInfo)
	for name, prop := range jsonSchema.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}

		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: requiredSet[name],
		}
	}

	return params
}

// ConvertFromEinoMessage converts Eino message to internal types.
func ConvertFromEinoMessage(msg *schema.Message, sessionID string) *types.Message {
	role := "assistant"
	if msg.Role == schema.User {
		role = "user"
	} else if msg.Role == schema.System {
		role = "system"
	} else if msg.Role == schema.Tool {
		role = "tool"
	}

	return &types.Message{
		SessionID: sessionID,
		Role:      role,
	}
}

// ConvertToEinoMessages converts internal messages to Eino format.
func ConvertToEinoMessages(messages []*types.Message, parts map[string][]types.Part) []*schema.Message {
	result := make([]*schema.Message, 0, len(messages))

	for _, msg := range messages {
		role := schema.Assistant
		switch msg.Role {
		case "user":
			role = schema.User
		case "system":
			role = schema.System
		case "tool":
			role = schema.Tool
		}

		// Build content from parts
		content := ""
		var toolCalls []schema.ToolCall

		if msgParts, ok := parts[msg.ID]; ok {
			for _, part := range msgParts {
				switch p := part.(type) {
				case *types.TextPart:
					content += p.Text
				case *types.ToolPart:
					inputJSON, _ := json.Marshal(p.Input)
					toolCalls = append(toolCalls, schema.ToolCall{
						ID: p.ToolCallID,
						Function: schema.FunctionCall{
							Name:      p.ToolName,
							Arguments: string(inputJSON),
						},
					})
				}
			}
		}

		einoMsg := &schema.Message{
			Role:      role,
			Content:   content,
			ToolCalls: toolCalls,
		}

		result = append(result, einoMsg)
	}

	return result
}

// modelIDs extracts the model ID list from a provider's model catalog, for
// AvailableModels implementations.
func modelIDs(models []types.Model) []string {
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	return ids
}

// maxContextLength returns the largest ContextLength across models, for
// GetCapabilities implementations.
func maxContextLength(models []types.Model) int {
	max := 0
	for _, m := range models {
		if m.ContextLength > max {
			max = m.ContextLength
		}
	}
	return max
}

// llmRerank scores documents against query by asking chatModel to rank them,
// the same prompt-based reranking approach used when no dedicated rerank
// endpoint is available: number the documents, ask for a ranked list of
// indices, and fall back to original order for anything the model omits or
// that fails to parse.
func llmRerank(ctx context.Context, chatModel model.ToolCallingChatModel, query string, documents []string, topK int) ([]RerankedDocument, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Rank the following documents by relevance to the query below.\n")
	fmt.Fprintf(&b, "Query: %s\n\n", query)
	for i, doc := range documents {
		fmt.Fprintf(&b, "[%d] %s\n", i, doc)
	}
	b.WriteString("\nRespond with ONLY a comma-separated list of document indices, most relevant first.")

	resp, err := chatModel.Generate(ctx, []*schema.Message{
		{Role: schema.User, Content: b.String()},
	})
	if err != nil {
		return fallbackRerank(documents, topK), nil
	}

	ranked := parseRankedIndices(resp.Content, len(documents))
	out := make([]RerankedDocument, 0, len(ranked))
	for i, idx := range ranked {
		out = append(out, RerankedDocument{Index: idx, Score: 1.0 - float64(i)/float64(len(ranked))})
	}
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// parseRankedIndices extracts document indices from a free-form ranking
// response, appending any index the model omitted in its original order so
// every document is still represented.
func parseRankedIndices(content string, n int) []int {
	seen := make(map[int]bool, n)
	var ranked []int
	for _, field := range strings.FieldsFunc(content, func(r rune) bool {
		return r == ',' || r == '\n' || r == ' ' || r == '[' || r == ']'
	}) {
		idx, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || idx < 0 || idx >= n || seen[idx] {
			continue
		}
		seen[idx] = true
		ranked = append(ranked, idx)
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			ranked = append(ranked, i)
		}
	}
	return ranked
}

// fallbackRerank returns documents in original order with descending scores,
// used when the underlying chat call itself fails.
func fallbackRerank(documents []string, topK int) []RerankedDocument {
	out := make([]RerankedDocument, len(documents))
	for i := range documents {
		out[i] = RerankedDocument{Index: i, Score: 1.0 - float64(i)/float64(len(documents))}
	}
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
