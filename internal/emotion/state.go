package emotion

import "strings"

// State is a discrete character emotion. Grounded on
// character/emotion/state_machine.py's EmotionState enum.
type State string

const (
	Neutral   State = "neutral"
	Happy     State = "happy"
	Sad       State = "sad"
	Angry     State = "angry"
	Surprised State = "surprised"
	Excited   State = "excited"
	Curious   State = "curious"
	Confused  State = "confused"
	Shy       State = "shy"
	Sleepy    State = "sleepy"
)

// decayRates is the per-second intensity decay for each state while it
// holds, carried over from the original's DECAY_RATES table. Neutral never
// decays since it is the rest state everything else decays towards.
var decayRates = map[State]float64{
	Excited:   0.1,
	Angry:     0.05,
	Surprised: 0.15,
	Happy:     0.03,
	Sad:       0.02,
	Curious:   0.08,
	Confused:  0.1,
	Shy:       0.06,
	Sleepy:    0.01,
	Neutral:   0,
}

// ruleKeywords scores a free-text hint against each candidate state by
// lexical trigger words. This is the "rule" in emotion.analysis.rule.scored -
// a cheap, explainable first pass ahead of any future LLM-scored variant.
var ruleKeywords = map[State][]string{
	Happy:     {"happy", "glad", "great", "awesome", "wonderful", "joy", "delighted", "pleased", "yay"},
	Sad:       {"sad", "sorry", "unfortunate", "upset", "down", "disappointed", "grief", "cry"},
	Angry:     {"angry", "annoyed", "frustrated", "mad", "furious", "irritated"},
	Surprised: {"wow", "surprised", "unexpected", "whoa", "shocked", "astonished"},
	Excited:   {"excited", "thrilled", "can't wait", "amazing", "pumped"},
	Curious:   {"curious", "wonder", "interesting", "how does", "why does", "tell me more"},
	Confused:  {"confused", "unclear", "don't understand", "huh", "unsure", "puzzled"},
	Shy:       {"shy", "embarrassed", "blush", "awkward"},
	Sleepy:    {"tired", "sleepy", "exhausted", "yawn", "drowsy"},
}

// emotionLabelToState maps a memory-layer emotion label (attached via
// memory.emotional_snapshot.attached) onto the closest discrete state.
var emotionLabelToState = map[string]State{
	"joy":       Happy,
	"happiness": Happy,
	"happy":     Happy,
	"sadness":   Sad,
	"sad":       Sad,
	"anger":     Angry,
	"angry":     Angry,
	"surprise":  Surprised,
	"surprised": Surprised,
	"fear":      Confused,
	"disgust":   Angry,
	"neutral":   Neutral,
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '\''
	})
	return fields
}

// scoreHint returns a per-state match count against ruleKeywords, normalized
// by the length of that state's keyword list so a state with a long lexicon
// doesn't automatically outscore one with a short lexicon on raw keyword
// count alone. A hint with no word characters scores nothing.
func scoreHint(hint string) map[State]float64 {
	tokens := tokenize(hint)
	scores := make(map[State]float64, len(ruleKeywords))
	if len(tokens) == 0 {
		return scores
	}
	lower := " " + strings.ToLower(hint) + " "
	for state, keywords := range ruleKeywords {
		hits := 0.0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > 0 {
			scores[state] = hits / float64(len(keywords))
		}
	}
	return scores
}

func bestState(scores map[State]float64) (State, float64) {
	var best State
	var bestScore float64
	// orderedStates gives deterministic tie-breaking regardless of Go's
	// randomized map iteration order.
	for _, state := range orderedStates {
		if score, ok := scores[state]; ok && score > bestScore {
			best, bestScore = state, score
		}
	}
	return best, bestScore
}

var orderedStates = []State{Happy, Sad, Angry, Surprised, Excited, Curious, Confused, Shy, Sleepy, Neutral}
