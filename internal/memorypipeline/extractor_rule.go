package memorypipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/vmoranv/cerise/pkg/types"
)

// RuleExtractor pulls updates out of a record's metadata.Extra fields
// (core_updates/core_update/core_summary, facts/new_facts, habits/
// new_habits) and out of "core:"/"fact:"/"habit:" prefixed lines in its
// content. Grounded on extractor_rule.py's RuleBasedMemoryExtractor.
type RuleExtractor struct {
	AllowMetadata bool
	AllowInline   bool
}

func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{AllowMetadata: true, AllowInline: true}
}

func (r *RuleExtractor) Extract(_ context.Context, record types.MemoryRecord) (Extraction, error) {
	var extraction Extraction
	if r.AllowMetadata {
		r.extractMetadata(record, &extraction)
	}
	if r.AllowInline {
		r.extractInline(record, &extraction)
	}
	return extraction, nil
}

func (r *RuleExtractor) extractMetadata(record types.MemoryRecord, extraction *Extraction) {
	extra := record.Metadata.Extra
	if extra == nil {
		return
	}

	for _, raw := range ensureList(firstNonNil(extra["core_updates"], extra["core_update"])) {
		if entry, ok := parseCoreUpdate(raw, record.SessionID); ok {
			extraction.CoreUpdates = append(extraction.CoreUpdates, entry)
		}
	}
	if len(extraction.CoreUpdates) == 0 {
		if summary, ok := extra["core_summary"].(string); ok && summary != "" {
			extraction.CoreUpdates = append(extraction.CoreUpdates, CoreProfileUpdate{Summary: summary, SessionID: record.SessionID})
		}
	}

	for _, raw := range ensureList(firstNonNil(extra["facts"], extra["new_facts"])) {
		if entry, ok := parseFactUpdate(raw, record.SessionID); ok {
			extraction.Facts = append(extraction.Facts, entry)
		}
	}

	for _, raw := range ensureList(firstNonNil(extra["habits"], extra["new_habits"])) {
		if entry, ok := parseHabitUpdate(raw, record.SessionID); ok {
			extraction.Habits = append(extraction.Habits, entry)
		}
	}
}

func (r *RuleExtractor) extractInline(record types.MemoryRecord, extraction *Extraction) {
	for _, line := range strings.Split(record.Content, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		lower := strings.ToLower(stripped)
		switch {
		case strings.HasPrefix(lower, "core:"):
			if entry, ok := parseInlineCore(strings.TrimSpace(stripped[5:]), record.SessionID); ok {
				extraction.CoreUpdates = append(extraction.CoreUpdates, entry)
			}
		case strings.HasPrefix(lower, "fact:"):
			if entry, ok := parseInlineFact(strings.TrimSpace(stripped[5:]), record.SessionID); ok {
				extraction.Facts = append(extraction.Facts, entry)
			}
		case strings.HasPrefix(lower, "habit:"):
			if entry, ok := parseInlineHabit(strings.TrimSpace(stripped[6:]), record.SessionID); ok {
				extraction.Habits = append(extraction.Habits, entry)
			}
		}
	}
}

func parseCoreUpdate(raw any, sessionID string) (CoreProfileUpdate, bool) {
	switch v := raw.(type) {
	case string:
		summary := strings.TrimSpace(v)
		if summary == "" {
			return CoreProfileUpdate{}, false
		}
		return CoreProfileUpdate{Summary: summary, SessionID: sessionID}, true
	case map[string]any:
		summary, _ := v["summary"].(string)
		if summary == "" {
			summary = buildCoreSummary(v)
		}
		if summary == "" {
			return CoreProfileUpdate{}, false
		}
		profileID, _ := v["profile_id"].(string)
		sess, _ := v["session_id"].(string)
		if sess == "" {
			sess = sessionID
		}
		return CoreProfileUpdate{Summary: summary, ProfileID: profileID, SessionID: sess}, true
	default:
		return CoreProfileUpdate{}, false
	}
}

func buildCoreSummary(update map[string]any) string {
	value := firstNonNil(update["value"], update["content"])
	if value == nil {
		return ""
	}
	var labelParts []string
	for _, k := range []string{"target", "field"} {
		if s, ok := update[k].(string); ok && s != "" {
			labelParts = append(labelParts, s)
		}
	}
	prefix := strings.Join(labelParts, ".")
	if prefix != "" {
		return fmt.Sprintf("%s: %v", prefix, value)
	}
	return fmt.Sprintf("%v", value)
}

func parseFactUpdate(raw any, sessionID string) (SemanticFactUpdate, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return SemanticFactUpdate{}, false
	}
	subject := stringOrEmpty(firstNonNil(m["subject"], m["entity"]))
	predicate := stringOrEmpty(firstNonNil(m["predicate"], m["attribute"]))
	object := stringOrEmpty(firstNonNil(m["object"], m["value"]))
	if subject == "" || predicate == "" || object == "" {
		return SemanticFactUpdate{}, false
	}
	sess := stringOrEmpty(m["session_id"])
	if sess == "" {
		sess = sessionID
	}
	return SemanticFactUpdate{
		Subject: subject, Predicate: predicate, Object: object,
		FactID: stringOrEmpty(m["fact_id"]), SessionID: sess,
	}, true
}

func parseHabitUpdate(raw any, sessionID string) (ProceduralHabitUpdate, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return ProceduralHabitUpdate{}, false
	}
	taskType := stringOrEmpty(firstNonNil(m["task_type"], m["type"]))
	instruction := stringOrEmpty(firstNonNil(m["instruction"], m["rule"]))
	if taskType == "" || instruction == "" {
		return ProceduralHabitUpdate{}, false
	}
	sess := stringOrEmpty(m["session_id"])
	if sess == "" {
		sess = sessionID
	}
	return ProceduralHabitUpdate{
		TaskType: taskType, Instruction: instruction,
		HabitID: stringOrEmpty(m["habit_id"]), SessionID: sess,
	}, true
}

func parseInlineCore(payload, sessionID string) (CoreProfileUpdate, bool) {
	if payload == "" {
		return CoreProfileUpdate{}, false
	}
	if idx := strings.Index(payload, "|"); idx >= 0 {
		profileID := strings.TrimSpace(payload[:idx])
		summary := strings.TrimSpace(payload[idx+1:])
		if profileID != "" && summary != "" {
			return CoreProfileUpdate{Summary: summary, ProfileID: profileID, SessionID: sessionID}, true
		}
	}
	return CoreProfileUpdate{Summary: payload, SessionID: sessionID}, true
}

func parseInlineFact(payload, sessionID string) (SemanticFactUpdate, bool) {
	parts := strings.SplitN(payload, "|", 3)
	trimmed := make([]string, len(parts))
	for i, p := range parts {
		trimmed[i] = strings.TrimSpace(p)
	}
	if len(trimmed) < 3 {
		return SemanticFactUpdate{}, false
	}
	return SemanticFactUpdate{Subject: trimmed[0], Predicate: trimmed[1], Object: trimmed[2], SessionID: sessionID}, true
}

func parseInlineHabit(payload, sessionID string) (ProceduralHabitUpdate, bool) {
	parts := strings.SplitN(payload, "|", 2)
	if len(parts) != 2 {
		return ProceduralHabitUpdate{}, false
	}
	taskType := strings.TrimSpace(parts[0])
	instruction := strings.TrimSpace(parts[1])
	if taskType == "" || instruction == "" {
		return ProceduralHabitUpdate{}, false
	}
	return ProceduralHabitUpdate{TaskType: taskType, Instruction: instruction, SessionID: sessionID}, true
}

func ensureList(value any) []any {
	if value == nil {
		return nil
	}
	if list, ok := value.([]any); ok {
		return list
	}
	return []any{value}
}

func firstNonNil(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func stringOrEmpty(v any) string {
	s, _ := v.(string)
	return s
}
