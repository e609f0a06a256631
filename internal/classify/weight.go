package classify

import (
	"strconv"
	"strings"
)

// LossIndicators mark a weight-change answer as a loss.
var LossIndicators = []string{"lost", "loss", "losing", "lose", "dropped", "down"}

const poundsPerKilogram = 2.20462

// IsWeightLoss reports whether a weight-change answer describes a loss.
func IsWeightLoss(text string) bool {
	words := Tokenize(text)
	for _, ind := range LossIndicators {
		if containsWords(words, []string{ind}) {
			return true
		}
	}
	return false
}

// WeightLossPounds parses a loss magnitude such as "8 pounds", "3.5 kg" or
// "10lbs" and returns it in pounds. Numbers without a weight unit are
// ignored so "in 2 weeks" is never read as a magnitude.
func WeightLossPounds(text string) (float64, bool) {
	lower := strings.ToLower(text)
	i := 0
	for i < len(lower) {
		if !isNumberByte(lower[i]) || lower[i] == '.' {
			i++
			continue
		}
		start := i
		for i < len(lower) && isNumberByte(lower[i]) {
			i++
		}
		num, err := strconv.ParseFloat(lower[start:i], 64)
		if err != nil {
			continue
		}
		rest := strings.TrimLeft(lower[i:], " ")
		switch {
		case hasUnitPrefix(rest, "lbs", "lb", "pounds", "pound"):
			return num, true
		case hasUnitPrefix(rest, "kgs", "kg", "kilograms", "kilogram", "kilos", "kilo"):
			return num * poundsPerKilogram, true
		}
	}
	return 0, false
}

func isNumberByte(b byte) bool {
	return (b >= '0' && b <= '9') || b == '.'
}

func hasUnitPrefix(s string, units ...string) bool {
	for _, u := range units {
		if !strings.HasPrefix(s, u) {
			continue
		}
		if len(s) == len(u) {
			return true
		}
		next := rune(s[len(u)])
		if !(next >= 'a' && next <= 'z') {
			return true
		}
	}
	return false
}
