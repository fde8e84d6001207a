package service

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const defaultMaxConcepts = 10

// parseConcepts reads an LLM answer that is either a JSON array of strings or
// an object with a "concepts" array. Concepts are lower-cased, trimmed and
// de-duplicated, keeping the first limit.
func parseConcepts(answer string, limit int) []string {
	answer = strings.TrimSpace(answer)
	answer = strings.TrimPrefix(answer, "```json")
	answer = strings.TrimPrefix(answer, "```")
	answer = strings.TrimSuffix(answer, "```")
	answer = strings.TrimSpace(answer)

	if !gjson.Valid(answer) {
		return nil
	}
	list := gjson.Parse(answer)
	if !list.IsArray() {
		list = list.Get("concepts")
	}

	seen := map[string]struct{}{}
	out := []string{}
	list.ForEach(func(_, v gjson.Result) bool {
		if v.Type != gjson.String {
			return true
		}
		c := strings.Join(strings.Fields(strings.ToLower(v.String())), " ")
		if c == "" {
			return true
		}
		if _, dup := seen[c]; dup {
			return true
		}
		seen[c] = struct{}{}
		out = append(out, c)
		return limit <= 0 || len(out) < limit
	})
	return out
}

func conceptPrompt(term string, limit int) string {
	if limit <= 0 {
		limit = defaultMaxConcepts
	}
	return fmt.Sprintf(`
Extract the key academic research concepts from the research interest below.
Return STRICTLY a JSON object with this schema:
{"concepts": ["<short noun phrase>", ...]}
Use at most %d concepts, most important first. Return an empty list when the text contains no research concept.

Research interest:
%s
`, limit, term)
}
