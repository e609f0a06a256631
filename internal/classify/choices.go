package classify

import (
	"strconv"
	"strings"
)

// MatchChoice maps raw input onto one of the offered choices. It accepts the
// choice text ignoring case and surrounding space, or a 1-based index. The
// boolean is false when nothing matched; callers keep the raw text then.
func MatchChoice(raw string, choices []string) (string, bool) {
	norm := normalize(raw)
	if norm == "" {
		return "", false
	}
	for _, c := range choices {
		if normalize(c) == norm {
			return c, true
		}
	}
	if n, err := strconv.Atoi(norm); err == nil && n >= 1 && n <= len(choices) {
		return choices[n-1], true
	}
	return "", false
}

// SplitMulti splits a multi-choice answer on commas, semicolons, newlines
// and the word "and". Empty items and duplicates are dropped.
func SplitMulti(raw string) []string {
	replacer := strings.NewReplacer(";", ",", "\n", ",", " and ", ",", " & ", ",")
	parts := strings.Split(replacer.Replace(raw), ",")
	seen := make(map[string]bool, len(parts))
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key := normalize(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// MatchChoices maps every item of a multi-choice answer onto the choices,
// keeping unmatched items verbatim.
func MatchChoices(raw string, choices []string) []string {
	items := SplitMulti(raw)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if c, ok := MatchChoice(item, choices); ok {
			out = append(out, c)
			continue
		}
		out = append(out, item)
	}
	return dedupe(out)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
