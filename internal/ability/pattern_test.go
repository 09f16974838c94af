package ability

import "testing"

func TestMatchPattern(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"*", "anything.goes", true},
		{"memory.*", "memory.recorded", true},
		{"memory.*", "dialogue.user_message", false},
		{"*.changed", "character.emotion_changed", false},
		{"*changed", "character.emotion_changed", true},
		{"dialogue.user_message", "dialogue.user_message", true},
		{"dialogue.user_message", "dialogue.assistant_response", false},
		{"operation.**", "operation.window.connected", true},
	}
	for _, c := range cases {
		if got := matchPattern(c.pattern, c.s); got != c.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", c.pattern, c.s, got, c.want)
		}
	}
}
