package memorypipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/vmoranv/cerise/internal/provider"
	"github.com/vmoranv/cerise/pkg/types"
)

const llmExtractorSystemPrompt = `Extract structured memory updates from the message below.
Return ONLY a JSON object with three arrays: "core" (objects with "summary"),
"facts" (objects with "subject", "predicate", "object"), and "habits"
(objects with "task_type", "instruction"). Omit anything not clearly present.
Return {} if nothing is worth extracting.`

// llmExtraction is the wire shape the extraction prompt is asked to
// produce; no pack example ships a reference LLM memory extractor, so this
// mirrors the rule extractor's field names rather than inventing a novel
// schema.
type llmExtraction struct {
	Core []struct {
		Summary string `json:"summary"`
	} `json:"core"`
	Facts []struct {
		Subject   string `json:"subject"`
		Predicate string `json:"predicate"`
		Object    string `json:"object"`
	} `json:"facts"`
	Habits []struct {
		TaskType    string `json:"task_type"`
		Instruction string `json:"instruction"`
	} `json:"habits"`
}

// LLMExtractor extracts structured updates by prompting a chat-capable
// Provider and parsing its JSON response. Grounded on compression.go's
// ProviderSummaryProvider for the call shape (system+user prompt via
// Provider.ChatModel().Generate); no extractor_llm.py reference was
// retrieved for this concern.
type LLMExtractor struct {
	Provider provider.Provider
}

func NewLLMExtractor(p provider.Provider) *LLMExtractor {
	return &LLMExtractor{Provider: p}
}

func (e *LLMExtractor) Extract(ctx context.Context, record types.MemoryRecord) (Extraction, error) {
	if e.Provider == nil {
		return Extraction{}, nil
	}
	resp, err := e.Provider.ChatModel().Generate(ctx, []*schema.Message{
		{Role: schema.System, Content: llmExtractorSystemPrompt},
		{Role: schema.User, Content: record.Content},
	})
	if err != nil {
		return Extraction{}, nil
	}

	content := strings.TrimSpace(resp.Content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return Extraction{}, nil
	}

	var parsed llmExtraction
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return Extraction{}, nil
	}

	var out Extraction
	for _, c := range parsed.Core {
		if c.Summary != "" {
			out.CoreUpdates = append(out.CoreUpdates, CoreProfileUpdate{Summary: c.Summary, SessionID: record.SessionID})
		}
	}
	for _, f := range parsed.Facts {
		if f.Subject != "" && f.Predicate != "" && f.Object != "" {
			out.Facts = append(out.Facts, SemanticFactUpdate{Subject: f.Subject, Predicate: f.Predicate, Object: f.Object, SessionID: record.SessionID})
		}
	}
	for _, h := range parsed.Habits {
		if h.TaskType != "" && h.Instruction != "" {
			out.Habits = append(out.Habits, ProceduralHabitUpdate{TaskType: h.TaskType, Instruction: h.Instruction, SessionID: record.SessionID})
		}
	}
	return out, nil
}
