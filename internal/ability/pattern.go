// Package ability implements the Ability Registry and Capability Scheduler
// described in §4.3: builtin/plugin/MCP-bridged tools registered under a
// stable name, gated by a declarative capability policy before every
// invocation.
package ability

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// matchPattern reports whether s matches pattern, where pattern may use
// glob wildcards. Adapted from opencode's agent wildcard matcher: a
// bare "*" matches everything, "**" and mixed-position "*" patterns go
// through doublestar, and a leading/trailing-only "*" is matched with
// plain string prefix/suffix checks to avoid doublestar's path-segment
// semantics misfiring on non-path strings like ability and event names.
func matchPattern(pattern, s string) bool {
	if pattern == "*" {
		return true
	}

	if strings.Contains(pattern, "**") {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}

	if strings.HasSuffix(pattern, "*") && !strings.HasPrefix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(s, prefix)
	}

	if strings.HasPrefix(pattern, "*") && !strings.HasSuffix(pattern, "*") {
		suffix := strings.TrimPrefix(pattern, "*")
		return strings.HasSuffix(s, suffix)
	}

	if strings.Contains(pattern, "*") {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}

	return pattern == s
}
