package dialogue

import (
	"context"
	"strings"

	"github.com/vmoranv/cerise/internal/skill"
	"github.com/vmoranv/cerise/pkg/types"
)

// SkillProvider is the subset of the Skill Service the prompt composer
// needs: relevance search over the skill library.
type SkillProvider interface {
	Search(ctx context.Context, query string, topK int) ([]types.Skill, error)
}

// PersonaProvider returns the character persona text injected at the top
// of the system prompt for sessionID. Treated as plain string text per
// §4.8 - the persona module itself is out of this component's scope.
type PersonaProvider func(sessionID string) string

// PromptComposer builds the system prompt prepended to every provider
// call: persona, then the four-section memory context block, then an
// optional skill injection block. Grounded on opencode's
// internal/session.SystemPrompt (an ordered list of parts joined by
// "\n\n"), generalized from coding-agent sections to Cerise's
// persona/memory/skill sections.
type PromptComposer struct {
	Persona     PersonaProvider
	MemoryCtx   *MemoryContextBuilder
	Skills      SkillProvider
	SkillTopK   int
}

func NewPromptComposer(persona PersonaProvider, memoryCtx *MemoryContextBuilder, skills SkillProvider, skillTopK int) *PromptComposer {
	if skillTopK <= 0 {
		skillTopK = 3
	}
	return &PromptComposer{Persona: persona, MemoryCtx: memoryCtx, Skills: skills, SkillTopK: skillTopK}
}

// Compose builds the full system prompt for sessionID given the user's
// latest message content (used for episodic recall and skill search).
func (c *PromptComposer) Compose(ctx context.Context, sessionID, userMessage string) string {
	var parts []string

	if c.Persona != nil {
		if persona := c.Persona(sessionID); persona != "" {
			parts = append(parts, persona)
		}
	}

	if c.MemoryCtx != nil {
		if memCtx := c.MemoryCtx.Build(ctx, sessionID, userMessage); memCtx != "" {
			parts = append(parts, memCtx)
		}
	}

	if c.Skills != nil {
		if block := c.skillBlock(ctx, userMessage); block != "" {
			parts = append(parts, block)
		}
	}

	return strings.Join(parts, "\n\n")
}

func (c *PromptComposer) skillBlock(ctx context.Context, query string) string {
	skills, err := c.Skills.Search(ctx, query, c.SkillTopK)
	if err != nil || len(skills) == 0 {
		return ""
	}
	return skill.BuildInjectionBlock(skills)
}
