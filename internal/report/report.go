// Package report turns a completed answer set into the clinician-facing
// symptom summary and its clinical alerts. Generation is a pure function of
// the answers and options: the same input always renders the same text.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/BTreeMap/ChatReport/internal/classify"
	"github.com/BTreeMap/ChatReport/internal/models"
)

// DateFormat is the layout of the report date line.
const DateFormat = "January 2, 2006 at 03:04 PM"

const (
	ruleWidth = 62

	titleHeader = "CHATREPORT SYMPTOM SUMMARY"
	titleAlerts = "CLINICAL ALERTS"

	notProvided  = "Not provided"
	notSpecified = "Not specified"
	noneFlagged  = "None flagged"
)

// Options control report rendering.
type Options struct {
	Now         time.Time
	Appointment models.Appointment
	Thresholds  Thresholds
}

// Generate renders the report for answers.
func Generate(answers models.AnswerLookup, opts Options) models.Report {
	t := opts.Thresholds.orDefault()
	name := notProvided
	if n, ok := text(answers, models.KeyPatientName); ok && n != "" {
		name = n
	}

	details := Evaluate(answers, t)
	alerts := group(details)

	var sections []models.ReportSection
	sections = append(sections, headerSection(name, opts))
	sections = append(sections, presentSections(answers, t)...)
	if s, ok := notReportedSection(answers); ok {
		sections = append(sections, s)
	}
	sections = append(sections, nutritionSection(answers), wellbeingSection(answers))
	if notes, ok := text(answers, models.KeyAdditionalNotes); ok && notes != "" {
		sections = append(sections, models.ReportSection{
			Title: "ADDITIONAL NOTES (respondent's words)",
			Lines: []string{"  " + notes},
		})
	}
	sections = append(sections, alertsSection(alerts))

	r := models.Report{
		RespondentName: name,
		GeneratedAt:    opts.Now,
		Sections:       sections,
		Alerts:         alerts,
		Details:        details,
	}
	r.Text = render(sections)
	return r
}

func headerSection(name string, opts Options) models.ReportSection {
	lines := []string{
		labeled("Patient Name", name, 14),
		labeled("Report Date", opts.Now.Format(DateFormat), 14),
		labeled("Report Type", "Pre-Appointment Symptom Check-in", 14),
	}
	if appt := opts.Appointment; !appt.IsZero() {
		lines = append(lines,
			labeled("Appointment", orDefault(appt.Date, notSpecified), 14),
			labeled("Clinician", orDefault(appt.Clinician, notSpecified), 14),
			labeled("Location", orDefault(appt.Location, notSpecified), 14),
		)
	}
	return models.ReportSection{Title: titleHeader, Lines: lines}
}

// domainBlock describes one "present" section.
type domainBlock struct {
	title   string
	present func(models.AnswerLookup, Thresholds) bool
	fields  []blockField
}

type blockField struct {
	label string
	key   string
	// render overrides the default display of the answer.
	render func(models.Answer, Thresholds) string
}

var domainBlocks = []domainBlock{
	{
		title:   "PAIN - PRESENT",
		present: func(a models.AnswerLookup, _ Thresholds) bool { return present(a, models.KeyPainPresent) },
		fields: []blockField{
			{label: "Location", key: models.KeyPainLocation},
			{label: "Severity", key: models.KeyPainSeverity, render: renderPainSeverity},
			{label: "Frequency", key: models.KeyPainFrequency},
			{label: "Management", key: models.KeyPainManagement},
			{label: "Impact", key: models.KeyPainImpact},
		},
	},
	{
		title:   "MOUTH SYMPTOMS - PRESENT",
		present: func(a models.AnswerLookup, _ Thresholds) bool { return present(a, models.KeyMouthPresent) },
		fields: []blockField{
			{label: "Dry Mouth", key: models.KeyMouthDry},
			{label: "Mouth Sores", key: models.KeyMouthSores},
			{label: "Taste Change", key: models.KeyMouthTaste},
			{label: "Impact", key: models.KeyMouthImpact},
		},
	},
	{
		title:   "SWALLOWING DIFFICULTY - PRESENT",
		present: func(a models.AnswerLookup, _ Thresholds) bool { return present(a, models.KeySwallowPresent) },
		fields: []blockField{
			{label: "Pain w/ swallow", key: models.KeySwallowPain},
			{label: "Diet level", key: models.KeySwallowDiet},
			{label: "Choking/cough", key: models.KeySwallowChoking},
		},
	},
	{
		title:   "NUTRITION CONCERNS - PRESENT",
		present: nutritionConcern,
		fields: []blockField{
			{label: "Appetite", key: models.KeyNutritionAppetite},
			{label: "Weight change", key: models.KeyNutritionWeight},
			{label: "Amount", key: models.KeyNutritionWeightAmt},
			{label: "Nausea/Vomiting", key: models.KeyNutritionNausea},
		},
	},
	{
		title:   "BREATHING DIFFICULTY - PRESENT",
		present: func(a models.AnswerLookup, _ Thresholds) bool { return present(a, models.KeyBreathingPresent) },
		fields: []blockField{
			{label: "Details", key: models.KeyBreathingDetail},
			{label: "Oxygen needed", key: models.KeyBreathingOxygen},
		},
	},
	{
		title: "FATIGUE - PRESENT",
		present: func(a models.AnswerLookup, _ Thresholds) bool {
			v, ok := severity(a, models.KeyFatigueLevel)
			return ok && v >= models.FatigueFollowUpLevel
		},
		fields: []blockField{
			{label: "Fatigue Level", key: models.KeyFatigueLevel, render: renderOutOfTen},
			{label: "Impact", key: models.KeyFatigueImpact},
		},
	},
	{
		title: "MOOD CONCERNS - PRESENT",
		present: func(a models.AnswerLookup, _ Thresholds) bool {
			mood, ok := text(a, models.KeyMoodGeneral)
			return ok && (matchesAny(mood, severeMoodPhrases) || matchesAny(mood, moderateMoodPhrases))
		},
		fields: []blockField{
			{label: "General Mood", key: models.KeyMoodGeneral},
			{label: "Anxiety", key: models.KeyMoodAnxiety},
		},
	},
	{
		title:   "OTHER SYMPTOMS - PRESENT",
		present: otherPresent,
		fields: []blockField{
			{label: "Cough", key: models.KeyOtherCough},
			{label: "Skin changes", key: models.KeyOtherSkin},
			{label: "Concentration", key: models.KeyOtherConcentration},
		},
	},
}

var appetiteConcernKeywords = []string{"poor", "low", "reduced", "decrease", "no appetite"}

func nutritionConcern(a models.AnswerLookup, _ Thresholds) bool {
	if appetite, ok := text(a, models.KeyNutritionAppetite); ok && matchesAny(appetite, appetiteConcernKeywords) {
		return true
	}
	if change, ok := text(a, models.KeyNutritionWeight); ok && classify.IsWeightLoss(change) {
		return true
	}
	if nausea, ok := text(a, models.KeyNutritionNausea); ok && matchesAny(nausea, []string{"often", "occasionally", "yes"}) {
		return true
	}
	return false
}

func otherPresent(a models.AnswerLookup, _ Thresholds) bool {
	return present(a, models.KeyOtherCough) || present(a, models.KeyOtherSkin) || present(a, models.KeyOtherConcentration)
}

func presentSections(a models.AnswerLookup, t Thresholds) []models.ReportSection {
	var out []models.ReportSection
	for _, b := range domainBlocks {
		if !b.present(a, t) {
			continue
		}
		width := 0
		for _, f := range b.fields {
			if len(f.label) > width {
				width = len(f.label)
			}
		}
		lines := make([]string, 0, len(b.fields))
		for _, f := range b.fields {
			lines = append(lines, "  "+labeled(f.label, fieldValue(a, f, t), width))
		}
		out = append(out, models.ReportSection{Title: b.title, Lines: lines})
	}
	if len(out) == 0 {
		out = append(out, models.ReportSection{
			Title: "SYMPTOMS PRESENT",
			Lines: []string{"  (No symptoms reported as present)"},
		})
	}
	return out
}

func fieldValue(a models.AnswerLookup, f blockField, t Thresholds) string {
	ans, ok := a.Get(f.key)
	if !ok {
		return notSpecified
	}
	if f.render != nil {
		return f.render(ans, t)
	}
	if v := ans.Display(); v != "" {
		return v
	}
	return notSpecified
}

func renderPainSeverity(ans models.Answer, t Thresholds) string {
	v, ok := ans.SeverityValue()
	if !ok {
		return notSpecified
	}
	s := fmt.Sprintf("%d/10", v)
	if v >= t.PainHigh {
		s += "  HIGH"
	}
	return s
}

func renderOutOfTen(ans models.Answer, _ Thresholds) string {
	v, ok := ans.SeverityValue()
	if !ok {
		return notSpecified
	}
	return fmt.Sprintf("%d/10", v)
}

// notReportedSection lists domains whose presence answer was negative or unclear.
func notReportedSection(a models.AnswerLookup) (models.ReportSection, bool) {
	checks := []struct {
		label string
		keys  []string
	}{
		{"Pain", []string{models.KeyPainPresent}},
		{"Mouth symptoms", []string{models.KeyMouthPresent}},
		{"Swallowing difficulty", []string{models.KeySwallowPresent}},
		{"Breathing problems", []string{models.KeyBreathingPresent}},
		{"Other symptoms", []string{models.KeyOtherCough, models.KeyOtherSkin, models.KeyOtherConcentration}},
	}
	var lines []string
	for _, c := range checks {
		asked, positive := false, false
		for _, k := range c.keys {
			if _, ok := a.Get(k); ok {
				asked = true
			}
			if present(a, k) {
				positive = true
			}
		}
		if asked && !positive {
			lines = append(lines, "  - "+c.label)
		}
	}
	if v, ok := severity(a, models.KeyFatigueLevel); ok && v < models.FatigueFollowUpLevel {
		lines = append(lines, "  - Fatigue")
	}
	if len(lines) == 0 {
		return models.ReportSection{}, false
	}
	return models.ReportSection{Title: "SYMPTOMS NOT REPORTED", Lines: lines}, true
}

func nutritionSection(a models.AnswerLookup) models.ReportSection {
	lines := []string{
		labeled("Appetite", displayOr(a, models.KeyNutritionAppetite, notProvided), 14),
		labeled("Weight", displayOr(a, models.KeyNutritionWeight, notProvided), 14),
	}
	if amt, ok := text(a, models.KeyNutritionWeightAmt); ok {
		lines = append(lines, labeled("Weight amount", amt, 14))
	}
	lines = append(lines,
		labeled("Nausea/Vomit", displayOr(a, models.KeyNutritionNausea, notProvided), 14),
		labeled("Supplements", displayOr(a, models.KeyNutritionSupplements, notProvided), 14),
	)
	return models.ReportSection{Title: "NUTRITIONAL STATUS", Lines: indent(lines)}
}

func wellbeingSection(a models.AnswerLookup) models.ReportSection {
	lines := []string{
		labeled("General Mood", displayOr(a, models.KeyMoodGeneral, notProvided), 14),
		labeled("Anxiety", displayOr(a, models.KeyMoodAnxiety, notProvided), 14),
		labeled("Sleep", displayOr(a, models.KeyMoodSleep, notProvided), 14),
		labeled("Support", displayOr(a, models.KeyMoodSupport, notProvided), 14),
	}
	return models.ReportSection{Title: "EMOTIONAL WELLBEING", Lines: indent(lines)}
}

func alertsSection(alerts models.ReportAlerts) models.ReportSection {
	lines := []string{"  HIGH PRIORITY:"}
	lines = append(lines, bullets(alerts.HighPriority)...)
	lines = append(lines, "  MONITOR:")
	lines = append(lines, bullets(alerts.Monitor)...)
	return models.ReportSection{Title: titleAlerts, Lines: lines}
}

func bullets(items []string) []string {
	if len(items) == 0 {
		return []string{"    - " + noneFlagged}
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = "    - " + it
	}
	return out
}

func displayOr(a models.AnswerLookup, key, fallback string) string {
	ans, ok := a.Get(key)
	if !ok {
		return fallback
	}
	if v := ans.Display(); v != "" {
		return v
	}
	return fallback
}

func labeled(label, value string, width int) string {
	return fmt.Sprintf("%-*s : %s", width, label, value)
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func indent(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = "  " + l
	}
	return out
}

func render(sections []models.ReportSection) string {
	var b strings.Builder
	heavy := strings.Repeat("=", ruleWidth)
	light := strings.Repeat("-", ruleWidth)

	for _, s := range sections {
		switch s.Title {
		case titleHeader:
			b.WriteString(heavy + "\n  " + s.Title + "\n" + heavy + "\n")
			for _, l := range s.Lines {
				b.WriteString("  " + l + "\n")
			}
			b.WriteString(heavy + "\n")
		case titleAlerts:
			b.WriteString("\n" + heavy + "\n  " + s.Title + "\n" + heavy + "\n")
			for _, l := range s.Lines {
				b.WriteString(l + "\n")
			}
		default:
			b.WriteString("\n" + s.Title + "\n" + light + "\n")
			for _, l := range s.Lines {
				b.WriteString(l + "\n")
			}
		}
	}

	b.WriteString("\n" + heavy + "\n")
	b.WriteString("  This summary was generated from the respondent's own answers.\n")
	b.WriteString("  For clinical decisions, consult the treating physician.\n")
	b.WriteString(heavy + "\n")
	return b.String()
}
