package memory

import (
	"regexp"
	"strings"
)

// extract.go implements the lightweight, regex-based knowledge-graph
// extraction used at ingest time and for associative recall's entity
// gathering. Grounded on apps/core/ai/memory/kg.py's extract_triples /
// extract_entities: no pack dependency offers NLP-grade entity or relation
// extraction, so this mirrors the original's deliberately simple patterns
// rather than reaching for a heavier NLP stack.

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"to": true, "of": true, "in": true, "on": true, "for": true, "with": true,
	"this": true, "that": true, "it": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true,
}

type triplePattern struct {
	re        *regexp.Regexp
	predicate string
}

var triplePatterns = []triplePattern{
	{regexp.MustCompile(`(?i)([A-Za-z][A-Za-z0-9 _-]{1,32})\s+is\s+([^.?!]{1,40})`), "is"},
	{regexp.MustCompile(`(?i)([A-Za-z][A-Za-z0-9 _-]{1,32})\s+likes\s+([^.?!]{1,40})`), "likes"},
	{regexp.MustCompile(`(?i)([A-Za-z][A-Za-z0-9 _-]{1,32})\s+has\s+([^.?!]{1,40})`), "has"},
	{regexp.MustCompile(`(?i)([A-Za-z][A-Za-z0-9 _-]{1,32})\s*->\s*([^.?!]{1,40})`), "related_to"},
	{regexp.MustCompile(`([\x{4e00}-\x{9fff}]{1,8})是([\x{4e00}-\x{9fff}]{1,12})`), "是"},
	{regexp.MustCompile(`([\x{4e00}-\x{9fff}]{1,8})喜欢([\x{4e00}-\x{9fff}]{1,12})`), "喜欢"},
	{regexp.MustCompile(`([\x{4e00}-\x{9fff}]{1,8})有([\x{4e00}-\x{9fff}]{1,12})`), "有"},
}

type extractedTriple struct {
	Subject   string
	Predicate string
	Object    string
}

// extractTriples pulls lightweight (subject, predicate, object) triples
// out of text using a handful of pattern matchers, deduplicated
// case-insensitively.
func extractTriples(text string) []extractedTriple {
	if text == "" {
		return nil
	}
	cleaned := strings.Join(strings.Fields(text), " ")
	var triples []extractedTriple
	for _, p := range triplePatterns {
		for _, m := range p.re.FindAllStringSubmatch(cleaned, -1) {
			subject := cleanToken(m[1])
			object := cleanToken(m[2])
			if subject == "" || object == "" || strings.EqualFold(subject, object) {
				continue
			}
			triples = append(triples, extractedTriple{Subject: subject, Predicate: p.predicate, Object: object})
		}
	}
	return dedupeTriples(triples)
}

var entityToken = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_-]{1,32}|[\x{4e00}-\x{9fff}]{1,6}`)

// extractEntities pulls up to maxEntities lightweight entity mentions out of
// text, for associative recall's hop-expansion seed set.
func extractEntities(text string, maxEntities int) []string {
	if text == "" {
		return nil
	}
	var entities []string
	seen := make(map[string]bool)
	for _, tok := range entityToken.FindAllString(text, -1) {
		if stopwords[strings.ToLower(tok)] {
			continue
		}
		normalized := normalizeEntity(tok)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		entities = append(entities, normalized)
		if len(entities) >= maxEntities {
			break
		}
	}
	return entities
}

var quoteChars = regexp.MustCompile(`["'()\[\]{}]`)
var plainWord = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func cleanToken(text string) string {
	return strings.TrimSpace(quoteChars.ReplaceAllString(strings.TrimSpace(text), ""))
}

func normalizeEntity(token string) string {
	token = cleanToken(token)
	if token == "" {
		return ""
	}
	if plainWord.MatchString(token) {
		return strings.ToLower(token)
	}
	return token
}

func dedupeTriples(triples []extractedTriple) []extractedTriple {
	seen := make(map[string]bool)
	var out []extractedTriple
	for _, t := range triples {
		key := strings.ToLower(t.Subject) + "|" + strings.ToLower(t.Predicate) + "|" + strings.ToLower(t.Object)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
