package classify

import "strconv"

// severityWords maps descriptive words to scale values, checked in order.
var severityWords = []struct {
	word  string
	value int
}{
	{"none", 0},
	{"mild", 2},
	{"moderate", 5},
	{"severe", 8},
	{"worst", 10},
}

// Severity extracts a 0-10 severity from free text. A descriptive word wins
// over digits; otherwise the first digit run inside [0,10] is returned, so
// "7/10" yields 7. The boolean is false when no severity signal exists;
// reprompting is the caller's job.
func Severity(raw string) (int, bool) {
	words := Tokenize(raw)
	for _, sw := range severityWords {
		for _, w := range words {
			if w == sw.word {
				return sw.value, true
			}
		}
	}

	for _, run := range digitRuns(raw) {
		n, err := strconv.Atoi(run)
		if err != nil {
			continue
		}
		if n >= 0 && n <= 10 {
			return n, true
		}
	}
	return 0, false
}

func digitRuns(s string) []string {
	var runs []string
	start := -1
	for i := 0; i < len(s); i++ {
		isDigit := s[i] >= '0' && s[i] <= '9'
		switch {
		case isDigit && start < 0:
			start = i
		case !isDigit && start >= 0:
			runs = append(runs, s[start:i])
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, s[start:])
	}
	return runs
}
