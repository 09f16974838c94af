package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/vmoranv/cerise/internal/ability"
	"github.com/vmoranv/cerise/internal/contracts"
	"github.com/vmoranv/cerise/internal/emotion"
	"github.com/vmoranv/cerise/internal/event"
	"github.com/vmoranv/cerise/internal/provider"
	"github.com/vmoranv/cerise/pkg/types"
)

const (
	engineSource = "dialogue_engine"
	// maxToolLoopSteps bounds the iterative tool-calling loop; the original
	// doesn't bound it uniformly, so this pins a reasonable cap per §9's
	// open question.
	maxToolLoopSteps = 5
)

// ToolRunRecorder is the subset of the Skill Service's audit log the
// engine needs: record one tool invocation per call.
type ToolRunRecorder interface {
	RecordToolRun(sessionID string, run types.ToolRun)
}

// EmotionAnalyzer is the subset of the emotion state machine the engine
// needs: feed an ability's emotion_hint into the rule scorer.
type EmotionAnalyzer interface {
	AnalyzeHint(ctx context.Context, sessionID, hint string, intensity float64) emotion.State
}

// ChatOptions controls a single Chat call: which provider/model to use,
// whether the tool-calling loop runs at all, and the permission set tool
// executions run under.
type ChatOptions struct {
	ProviderID  string
	ModelID     string
	Temperature float64
	UseTools    bool
	Permissions []string
}

// Engine is the Dialogue Engine described in §4.8: session management,
// system-prompt composition, and the bounded tool-calling loop. Grounded
// on opencode's internal/session.Processor.runLoop (retry-free here
// since provider.CreateCompletion already wraps transport retries at the
// provider layer) generalized to Cerise's ability/capability-scheduled
// tool surface instead of opencode's coding-agent tool registry.
type Engine struct {
	sessions  *SessionRegistry
	providers *provider.Registry
	abilities *ability.Scheduler
	bus       *event.Bus
	composer  *PromptComposer
	toolRuns  ToolRunRecorder
	emotions  EmotionAnalyzer
	maxSteps  int
}

func NewEngine(providers *provider.Registry, abilities *ability.Scheduler, bus *event.Bus, composer *PromptComposer, toolRuns ToolRunRecorder, emotions EmotionAnalyzer) *Engine {
	return &Engine{
		sessions:  NewSessionRegistry(),
		providers: providers,
		abilities: abilities,
		bus:       bus,
		composer:  composer,
		toolRuns:  toolRuns,
		emotions:  emotions,
		maxSteps:  maxToolLoopSteps,
	}
}

// CreateSession creates (or returns) the session keyed by id.
func (e *Engine) CreateSession(id string) *Session { return e.sessions.CreateSession(id) }

// GetSession returns the session keyed by id, if any.
func (e *Engine) GetSession(id string) (*Session, bool) { return e.sessions.GetSession(id) }

// Chat runs one user turn to completion: appends the user message, emits
// dialogue.user_message, composes the system prompt, calls the provider
// (optionally looping through tool calls via the Capability Scheduler),
// and emits dialogue.assistant_response before returning the final
// assistant content.
func (e *Engine) Chat(ctx context.Context, sessionID, userMessage string, opts ChatOptions) (string, error) {
	session := e.sessions.CreateSession(sessionID)
	session.appendMessage(schema.Message{Role: schema.User, Content: userMessage})

	if e.bus != nil {
		e.bus.PublishSync(contracts.NewDialogueUserMessage(engineSource, sessionID, userMessage))
	}

	prov, modelID, err := e.resolveProvider(opts)
	if err != nil {
		return "", err
	}

	systemPrompt := ""
	if e.composer != nil {
		systemPrompt = e.composer.Compose(ctx, sessionID, userMessage)
	}

	messages := []*schema.Message{{Role: schema.System, Content: systemPrompt}}
	for i := range session.Messages {
		messages = append(messages, &session.Messages[i])
	}

	var tools []*schema.ToolInfo
	if opts.UseTools && e.abilities != nil {
		tools = provider.ConvertToEinoTools(abilitiesToToolInfo(e.abilities.ToolSchemas()))
	}

	finalContent, err := e.runLoop(ctx, session, prov, modelID, messages, tools, opts)
	if err != nil {
		return "", err
	}

	if e.bus != nil {
		e.bus.PublishSync(contracts.NewDialogueAssistantResponse(engineSource, sessionID, finalContent))
	}
	return finalContent, nil
}

func (e *Engine) runLoop(ctx context.Context, session *Session, prov provider.Provider, modelID string, messages []*schema.Message, tools []*schema.ToolInfo, opts ChatOptions) (string, error) {
	for step := 0; step < e.maxSteps; step++ {
		req := &provider.CompletionRequest{
			Model:       modelID,
			Messages:    messages,
			Tools:       tools,
			Temperature: opts.Temperature,
		}

		stream, err := prov.CreateCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("dialogue: completion failed: %w", err)
		}
		content, toolCalls, err := drainCompletion(stream)
		stream.Close()
		if err != nil {
			return "", fmt.Errorf("dialogue: stream failed: %w", err)
		}

		assistantMsg := &schema.Message{Role: schema.Assistant, Content: content, ToolCalls: toolCalls}
		session.appendMessage(*assistantMsg)
		messages = append(messages, assistantMsg)

		if len(toolCalls) == 0 || !opts.UseTools || e.abilities == nil {
			return content, nil
		}

		anyFailed := false
		for _, tc := range toolCalls {
			actx := types.AbilityContext{SessionID: session.ID, Permissions: opts.Permissions}
			result := e.abilities.Execute(ctx, tc.Function.Name, json.RawMessage(tc.Function.Arguments), actx)
			if e.toolRuns != nil {
				e.toolRuns.RecordToolRun(session.ID, buildToolRun(session.ID, tc, prov.ID(), modelID, result))
			}
			if !result.Success {
				anyFailed = true
			}
			if e.emotions != nil && result.EmotionHint != "" {
				e.emotions.AnalyzeHint(ctx, session.ID, result.EmotionHint, 0)
			}

			toolMsg := schema.Message{Role: schema.Tool, ToolCallID: tc.ID, Content: serializeToolResult(result)}
			session.appendMessage(toolMsg)
			messages = append(messages, &toolMsg)
		}

		if anyFailed {
			note := &schema.Message{Role: schema.System, Content: "One or more tool calls failed; review the tool result above before retrying."}
			messages = append(messages, note)
		}
	}

	return "", fmt.Errorf("dialogue: tool-calling loop exceeded %d steps", e.maxSteps)
}

func (e *Engine) resolveProvider(opts ChatOptions) (provider.Provider, string, error) {
	if opts.ProviderID != "" {
		prov, err := e.providers.Get(opts.ProviderID)
		if err != nil {
			return nil, "", err
		}
		return prov, opts.ModelID, nil
	}
	prov, modelID, err := e.providers.Resolve(provider.Capability("chat"))
	if err != nil {
		return nil, "", err
	}
	return prov, modelID, nil
}

// drainCompletion reads every chunk off stream, concatenating content and
// merging tool-call argument fragments keyed by tool-call id.
func drainCompletion(stream *provider.CompletionStream) (string, []schema.ToolCall, error) {
	var content string
	var order []string
	byID := make(map[string]*schema.ToolCall)

	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, err
		}

		content += msg.Content
		for _, tc := range msg.ToolCalls {
			id := tc.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", len(order))
			}
			existing, ok := byID[id]
			if !ok {
				copied := tc
				copied.ID = id
				byID[id] = &copied
				order = append(order, id)
				continue
			}
			existing.Function.Arguments += tc.Function.Arguments
			if tc.Function.Name != "" {
				existing.Function.Name = tc.Function.Name
			}
		}
	}

	toolCalls := make([]schema.ToolCall, 0, len(order))
	for _, id := range order {
		toolCalls = append(toolCalls, *byID[id])
	}
	return content, toolCalls, nil
}

func abilitiesToToolInfo(infos []types.AbilityInfo) []provider.ToolInfo {
	out := make([]provider.ToolInfo, len(infos))
	for i, info := range infos {
		out[i] = provider.ToolInfo{Name: info.Name, Description: info.Description, Parameters: info.ParametersSchema}
	}
	return out
}

func buildToolRun(sessionID string, tc schema.ToolCall, providerID, modelID string, result *types.AbilityResult) types.ToolRun {
	run := types.ToolRun{
		SessionID:  sessionID,
		ToolName:   tc.Function.Name,
		ToolCallID: tc.ID,
		Arguments:  tc.Function.Arguments,
		Provider:   providerID,
		Model:      modelID,
		Success:    result.Success,
		Error:      result.Error,
		CreatedAt:  time.Now().Unix(),
	}
	if result.Success {
		if data, err := json.Marshal(result.Data); err == nil {
			run.Output = string(data)
		}
	}
	return run
}

func serializeToolResult(result *types.AbilityResult) string {
	if !result.Success {
		return fmt.Sprintf("Error: %s", result.Error)
	}
	if result.Data == nil {
		return ""
	}
	data, err := json.Marshal(result.Data)
	if err != nil {
		return ""
	}
	return string(data)
}
