package skill

import (
	"fmt"
	"strings"

	"github.com/vmoranv/cerise/pkg/types"
)

// BuildInjectionBlock formats skills into the dialogue's skill section,
// per §4.11's "[Skill Library]\n- name: description\n```code```\n
// [/Skill Library]" shape.
func BuildInjectionBlock(skills []types.Skill) string {
	if len(skills) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[Skill Library]\n")
	for _, s := range skills {
		fmt.Fprintf(&b, "- %s: %s\n```\n%s\n```\n", s.Name, s.Description, s.Code)
	}
	b.WriteString("[/Skill Library]")
	return b.String()
}
