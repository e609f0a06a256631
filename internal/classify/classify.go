// Package classify turns raw free-text answers into typed values: yes/no
// classifications, 0-10 severities, keyword flags, matched choices and body
// regions. Everything here is a pure function of its input.
package classify

import (
	"strings"
	"unicode"
)

// Negative phrases. Matched on whole words, so "noticeably" and "not sure"
// do not count as a "no".
var noPhrases = []string{
	"no", "not really", "none", "nope", "nah", "never", "not at all",
	"nothing", "no change", "negative",
}

// Positive and intensity phrases.
var yesPhrases = []string{
	"yes", "yeah", "yep", "a little", "somewhat", "a lot", "often",
	"constantly", "most", "on and off", "only", "occasionally", "sometimes",
	"noticeably", "quite", "very", "difficulty", "trouble", "slightly",
	"always", "daily",
}

// YesNo classifies a free-text yes/no answer.
//
// Precedence: any positive or intensity phrase makes the answer positive,
// even when a negative phrase is also present ("no, just a little" is yes).
// The answer is negative only when a negative phrase appears and no positive
// one does. Anything else, including empty input, is unclear.
func YesNo(raw string) Result {
	words := Tokenize(raw)
	if len(words) == 0 {
		return Unclear
	}
	if containsAnyPhrase(words, yesPhrases) {
		return Positive
	}
	if containsAnyPhrase(words, noPhrases) {
		return Negative
	}
	return Unclear
}

// Result is the outcome of a yes/no classification.
type Result int

const (
	Unclear Result = iota
	Positive
	Negative
)

func (r Result) String() string {
	switch r {
	case Positive:
		return "yes"
	case Negative:
		return "no"
	default:
		return "unclear"
	}
}


// ContainsAny reports whether text contains any keyword, ignoring case.
// It is a plain substring test.
func ContainsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// ContainsPhrase reports whether the words of phrase appear consecutively in
// text, on word boundaries and ignoring case.
func ContainsPhrase(text, phrase string) bool {
	return containsWords(Tokenize(text), Tokenize(phrase))
}

// Tokenize lowercases text and splits it into runs of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsAnyPhrase(words []string, phrases []string) bool {
	for _, p := range phrases {
		if containsWords(words, strings.Fields(p)) {
			return true
		}
	}
	return false
}

func containsWords(words, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(words); i++ {
		for j, w := range phrase {
			if words[i+j] != w {
				continue outer
			}
		}
		return true
	}
	return false
}
