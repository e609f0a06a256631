package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/BTreeMap/ChatReport/internal/classify"
	"github.com/BTreeMap/ChatReport/internal/models"
)

// Thresholds are the numeric cutoffs of the alert rules. A zero Thresholds
// value means DefaultThresholds.
type Thresholds struct {
	PainHigh       int // pain severity at or above this is high priority
	PainMonitor    int // pain severity at or above this (and below PainHigh) is monitor
	FatigueMonitor int
	// WeightLossHighLbs escalates a weight-loss alert to high priority when
	// the parsed magnitude reaches it. Zero or less disables escalation.
	WeightLossHighLbs float64
}

// DefaultThresholds returns the standard cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PainHigh:          7,
		PainMonitor:       4,
		FatigueMonitor:    8,
		WeightLossHighLbs: 10,
	}
}

func (t Thresholds) orDefault() Thresholds {
	if t == (Thresholds{}) {
		return DefaultThresholds()
	}
	return t
}

// Rule is one row of the alert table. Rules are evaluated independently;
// each produces at most one alert.
type Rule struct {
	ID       string
	Domain   models.Domain
	Evaluate func(a models.AnswerLookup, t Thresholds) (models.Alert, bool)
}

var (
	severeMoodPhrases   = []string{"very distressed", "quite sad", "hopeless", "depressed", "overwhelmed"}
	moderateMoodPhrases = []string{"anxious", "worried", "a bit down", "down", "sad", "low mood", "nervous"}

	severeBreathingPhrases = []string{
		"at rest", "can't breathe", "cannot breathe", "severe", "struggling", "gasping",
		"choking", "blue lips", "emergency",
	}
	restrictedDietKeywords = []string{"liquid", "tube"}
)

var rules = []Rule{
	{ID: "pain_severity", Domain: models.DomainPain, Evaluate: painRule},
	{ID: "restricted_diet", Domain: models.DomainSwallowing, Evaluate: dietRule},
	{ID: "weight_loss", Domain: models.DomainNutrition, Evaluate: weightLossRule},
	{ID: "mood", Domain: models.DomainMood, Evaluate: moodRule},
	{ID: "breathing", Domain: models.DomainBreathing, Evaluate: breathingRule},
	{ID: "fatigue", Domain: models.DomainFatigue, Evaluate: fatigueRule},
	{ID: "choking", Domain: models.DomainSwallowing, Evaluate: chokingRule},
	{ID: "support", Domain: models.DomainMood, Evaluate: supportRule},
}

// Rules returns a copy of the alert table in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Evaluate runs every rule and returns the alerts that fired, in table order.
func Evaluate(a models.AnswerLookup, t Thresholds) []models.Alert {
	t = t.orDefault()
	var out []models.Alert
	for _, r := range rules {
		alert, ok := r.Evaluate(a, t)
		if !ok {
			continue
		}
		alert.RuleID = r.ID
		alert.Domain = r.Domain
		out = append(out, alert)
	}
	return out
}

// EvaluateAlerts groups the fired alerts into the two report lists. Both
// lists are non-nil.
func EvaluateAlerts(a models.AnswerLookup, t Thresholds) models.ReportAlerts {
	return group(Evaluate(a, t))
}

func group(alerts []models.Alert) models.ReportAlerts {
	out := models.ReportAlerts{HighPriority: []string{}, Monitor: []string{}}
	for _, al := range alerts {
		switch al.Priority {
		case models.PriorityHigh:
			out.HighPriority = append(out.HighPriority, al.Message)
		case models.PriorityMonitor:
			out.Monitor = append(out.Monitor, al.Message)
		}
	}
	return out
}

func high(msg string) (models.Alert, bool) {
	return models.Alert{Priority: models.PriorityHigh, Message: msg}, true
}

func monitor(msg string) (models.Alert, bool) {
	return models.Alert{Priority: models.PriorityMonitor, Message: msg}, true
}

func none() (models.Alert, bool) { return models.Alert{}, false }

// text returns the display text of an answered, non-declined key.
func text(a models.AnswerLookup, key string) (string, bool) {
	ans, ok := a.Get(key)
	if !ok || ans.Declined {
		return "", false
	}
	return ans.Display(), true
}

func severity(a models.AnswerLookup, key string) (int, bool) {
	ans, ok := a.Get(key)
	if !ok {
		return 0, false
	}
	return ans.SeverityValue()
}

func present(a models.AnswerLookup, key string) bool {
	ans, ok := a.Get(key)
	return ok && ans.IsYes()
}

func matchesAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if classify.ContainsPhrase(s, p) {
			return true
		}
	}
	return false
}

func painRule(a models.AnswerLookup, t Thresholds) (models.Alert, bool) {
	v, ok := severity(a, models.KeyPainSeverity)
	switch {
	case !ok:
		return none()
	case v >= t.PainHigh:
		return high(fmt.Sprintf("Severe pain reported (%d/10): review pain management", v))
	case v >= t.PainMonitor:
		return monitor(fmt.Sprintf("Moderate pain reported (%d/10): monitor closely", v))
	}
	return none()
}

func dietRule(a models.AnswerLookup, _ Thresholds) (models.Alert, bool) {
	diet, ok := text(a, models.KeySwallowDiet)
	if !ok || !classify.ContainsAny(diet, restrictedDietKeywords) {
		return none()
	}
	return high(fmt.Sprintf("Diet restricted to %s: nutritional consult may be needed", strings.ToLower(diet)))
}

func weightLossRule(a models.AnswerLookup, t Thresholds) (models.Alert, bool) {
	change, ok := text(a, models.KeyNutritionWeight)
	if !ok || !classify.IsWeightLoss(change) {
		return none()
	}

	amount, hasAmount := text(a, models.KeyNutritionWeightAmt)
	lbs, parsed := 0.0, false
	if hasAmount {
		lbs, parsed = classify.WeightLossPounds(amount)
	}
	if !parsed {
		if lbs, parsed = classify.WeightLossPounds(change); parsed && !hasAmount {
			amount, hasAmount = change, true
		}
	}
	if !hasAmount {
		amount = "amount not specified"
	}

	if parsed && t.WeightLossHighLbs > 0 && lbs >= t.WeightLossHighLbs {
		return high(fmt.Sprintf("Significant weight loss reported (%s lb): nutritional consult recommended",
			strconv.FormatFloat(math.Round(lbs*10)/10, 'f', -1, 64)))
	}
	return monitor("Weight loss reported: " + amount)
}

func moodRule(a models.AnswerLookup, _ Thresholds) (models.Alert, bool) {
	mood, ok := text(a, models.KeyMoodGeneral)
	if !ok {
		return none()
	}
	switch {
	case matchesAny(mood, severeMoodPhrases):
		return high("Significant emotional distress reported: consider psychosocial referral")
	case matchesAny(mood, moderateMoodPhrases):
		return monitor("Elevated anxiety or low mood: check in during appointment")
	}
	return none()
}

func breathingRule(a models.AnswerLookup, _ Thresholds) (models.Alert, bool) {
	if !present(a, models.KeyBreathingPresent) {
		return none()
	}
	detail, _ := text(a, models.KeyBreathingDetail)
	if present(a, models.KeyBreathingOxygen) || matchesAny(detail, severeBreathingPhrases) {
		return high("Breathing difficulty with severe features or oxygen need: assess promptly")
	}
	return monitor("Breathing difficulty reported: assess for obstruction or infection")
}

func fatigueRule(a models.AnswerLookup, t Thresholds) (models.Alert, bool) {
	v, ok := severity(a, models.KeyFatigueLevel)
	if !ok || v < t.FatigueMonitor {
		return none()
	}
	return monitor(fmt.Sprintf("Severe fatigue reported (%d/10)", v))
}

func chokingRule(a models.AnswerLookup, _ Thresholds) (models.Alert, bool) {
	choking, ok := text(a, models.KeySwallowChoking)
	if !ok || !classify.ContainsPhrase(choking, "often") {
		return none()
	}
	return monitor("Frequent choking or coughing while eating: aspiration risk")
}

func supportRule(a models.AnswerLookup, _ Thresholds) (models.Alert, bool) {
	support, ok := text(a, models.KeyMoodSupport)
	if !ok || !classify.ContainsPhrase(support, "need more support") {
		return none()
	}
	return monitor("Respondent asks for more support: consider social work referral")
}
