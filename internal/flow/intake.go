package flow

import (
	"github.com/BTreeMap/ChatReport/internal/classify"
	"github.com/BTreeMap/ChatReport/internal/models"
)

// IntakeStart is the first step of the symptom intake.
const IntakeStart = "welcome"

var presenceChoices = []string{"Yes", "No", "A little"}

// answeredYes includes a step only when key holds a positive yes/no answer.
func answeredYes(key string) models.Predicate {
	return func(a models.AnswerLookup) bool {
		ans, ok := a.Get(key)
		return ok && ans.IsYes()
	}
}

func severityAtLeast(key string, min int) models.Predicate {
	return func(a models.AnswerLookup) bool {
		ans, ok := a.Get(key)
		if !ok {
			return false
		}
		v, ok := ans.SeverityValue()
		return ok && v >= min
	}
}

func weightLossReported(a models.AnswerLookup) bool {
	ans, ok := a.Get(models.KeyNutritionWeight)
	return ok && classify.IsWeightLoss(ans.Display())
}

func nameMissing(a models.AnswerLookup) bool {
	_, ok := a.Get(models.KeyPatientName)
	return !ok
}

// IntakeSteps returns the head-and-neck symptom intake in flow order.
func IntakeSteps() []models.Step {
	return []models.Step{
		{
			ID:   "welcome",
			Kind: models.InputInformational,
			Prompt: "Hello! I'm ChatReport, a symptom check-in assistant. " +
				"I'll ask how you've been feeling so your care team can prepare for your next appointment. " +
				"It takes about 10 to 15 minutes, and your answers go only to your medical team.",
			Next: "name",
		},
		{
			ID:        "name",
			Kind:      models.InputFreeText,
			Prompt:    "To get started, what's your first name?",
			AnswerKey: models.KeyPatientName,
			IncludeIf: nameMissing,
			Next:      "intro",
		},
		{
			ID:   "intro",
			Kind: models.InputInformational,
			Prompt: "Thanks, {name}. Let's go through a few questions about how you've been feeling. " +
				"There are no right or wrong answers.",
			Next: "pain_q1",
		},

		// Pain
		{
			ID:        "pain_q1",
			Kind:      models.InputYesNo,
			Domain:    models.DomainPain,
			Prompt:    "Pain: have you had any pain since your last appointment?",
			AnswerKey: models.KeyPainPresent,
			Choices:   presenceChoices,
			Next:      "pain_body",
		},
		{
			ID:        "pain_body",
			Kind:      models.InputBodyRegionMultiChoice,
			Domain:    models.DomainPain,
			Prompt:    "I'm sorry to hear that. Where do you feel the pain? Pick every area that applies.",
			AnswerKey: models.KeyPainLocation,
			Choices:   classify.BodyRegionLabels(),
			IncludeIf: answeredYes(models.KeyPainPresent),
			Next:      "pain_severity",
		},
		{
			ID:        "pain_severity",
			Kind:      models.InputSeverityScale,
			Domain:    models.DomainPain,
			Prompt:    "On a scale of 0 to 10, where 0 is no pain and 10 is the worst pain you can imagine, how bad is the pain at its worst?",
			AnswerKey: models.KeyPainSeverity,
			IncludeIf: answeredYes(models.KeyPainPresent),
			Next:      "pain_frequency",
		},
		{
			ID:        "pain_frequency",
			Kind:      models.InputSingleChoice,
			Domain:    models.DomainPain,
			Prompt:    "How often do you have this pain?",
			AnswerKey: models.KeyPainFrequency,
			Choices:   []string{"Constantly", "Most of the day", "On and off", "Only when swallowing", "Only at night"},
			IncludeIf: answeredYes(models.KeyPainPresent),
			Next:      "pain_management",
		},
		{
			ID:        "pain_management",
			Kind:      models.InputFreeText,
			Domain:    models.DomainPain,
			Prompt:    "Are you doing anything to manage the pain, such as medication or ice packs?",
			AnswerKey: models.KeyPainManagement,
			IncludeIf: answeredYes(models.KeyPainPresent),
			Next:      "pain_impact",
		},
		{
			ID:        "pain_impact",
			Kind:      models.InputFreeText,
			Domain:    models.DomainPain,
			Prompt:    "How much is the pain affecting eating, sleeping or your usual activities?",
			AnswerKey: models.KeyPainImpact,
			IncludeIf: answeredYes(models.KeyPainPresent),
			Next:      "mouth_q1",
		},

		// Mouth
		{
			ID:        "mouth_q1",
			Kind:      models.InputYesNo,
			Domain:    models.DomainMouth,
			Prompt:    "Mouth: have you noticed any dryness, sores or other changes in your mouth?",
			AnswerKey: models.KeyMouthPresent,
			Choices:   presenceChoices,
			Next:      "mouth_dry",
		},
		{
			ID:        "mouth_dry",
			Kind:      models.InputSingleChoice,
			Domain:    models.DomainMouth,
			Prompt:    "Does your mouth feel very dry, as if you can't make enough saliva?",
			AnswerKey: models.KeyMouthDry,
			Choices:   []string{"Yes, very dry", "Somewhat dry", "Not really"},
			IncludeIf: answeredYes(models.KeyMouthPresent),
			Next:      "mouth_sores",
		},
		{
			ID:        "mouth_sores",
			Kind:      models.InputSingleChoice,
			Domain:    models.DomainMouth,
			Prompt:    "Do you have any sores or ulcers inside your mouth?",
			AnswerKey: models.KeyMouthSores,
			Choices:   []string{"Yes", "No", "Not sure"},
			IncludeIf: answeredYes(models.KeyMouthPresent),
			Next:      "mouth_taste",
		},
		{
			ID:        "mouth_taste",
			Kind:      models.InputSingleChoice,
			Domain:    models.DomainMouth,
			Prompt:    "Has the way food tastes changed?",
			AnswerKey: models.KeyMouthTaste,
			Choices:   []string{"Yes, very different", "A little different", "No change"},
			IncludeIf: answeredYes(models.KeyMouthPresent),
			Next:      "mouth_impact",
		},
		{
			ID:        "mouth_impact",
			Kind:      models.InputFreeText,
			Domain:    models.DomainMouth,
			Prompt:    "How much do these mouth symptoms affect your eating or drinking?",
			AnswerKey: models.KeyMouthImpact,
			IncludeIf: answeredYes(models.KeyMouthPresent),
			Next:      "swallow_q1",
		},

		// Swallowing
		{
			ID:        "swallow_q1",
			Kind:      models.InputYesNo,
			Domain:    models.DomainSwallowing,
			Prompt:    "Swallowing: have you had any difficulty swallowing since your last visit?",
			AnswerKey: models.KeySwallowPresent,
			Choices:   presenceChoices,
			Next:      "swallow_pain",
		},
		{
			ID:        "swallow_pain",
			Kind:      models.InputSingleChoice,
			Domain:    models.DomainSwallowing,
			Prompt:    "Does swallowing hurt?",
			AnswerKey: models.KeySwallowPain,
			Choices:   []string{"Yes, a lot", "A little", "No"},
			IncludeIf: answeredYes(models.KeySwallowPresent),
			Next:      "swallow_diet",
		},
		{
			ID:        "swallow_diet",
			Kind:      models.InputSingleChoice,
			Domain:    models.DomainSwallowing,
			Prompt:    "What kinds of food can you eat right now?",
			AnswerKey: models.KeySwallowDiet,
			Choices:   []string{"Regular food", "Soft foods only", "Pureed foods", "Liquids only", "Feeding tube only"},
			IncludeIf: answeredYes(models.KeySwallowPresent),
			Next:      "swallow_choking",
		},
		{
			ID:        "swallow_choking",
			Kind:      models.InputSingleChoice,
			Domain:    models.DomainSwallowing,
			Prompt:    "Have you choked or coughed while eating or drinking?",
			AnswerKey: models.KeySwallowChoking,
			Choices:   []string{"Yes, often", "Occasionally", "No"},
			IncludeIf: answeredYes(models.KeySwallowPresent),
			Next:      "nutrition_q1",
		},

		// Nutrition
		{
			ID:        "nutrition_q1",
			Kind:      models.InputSingleChoice,
			Domain:    models.DomainNutrition,
			Prompt:    "Nutrition: how has your appetite been lately?",
			AnswerKey: models.KeyNutritionAppetite,
			Choices:   []string{"Good", "Reduced", "Very poor", "No appetite at all"},
			Next:      "nutrition_weight",
		},
		{
			ID:        "nutrition_weight",
			Kind:      models.InputSingleChoice,
			Domain:    models.DomainNutrition,
			Prompt:    "Has your weight changed recently?",
			AnswerKey: models.KeyNutritionWeight,
			Choices:   []string{"Yes, lost weight", "Yes, gained weight", "No change", "Not sure"},
			Next:      "nutrition_weight_amt",
		},
		{
			ID:        "nutrition_weight_amt",
			Kind:      models.InputFreeText,
			Domain:    models.DomainNutrition,
			Prompt:    "About how much weight have you lost, and over how long?",
			AnswerKey: models.KeyNutritionWeightAmt,
			IncludeIf: weightLossReported,
			Next:      "nutrition_nausea",
		},
		{
			ID:        "nutrition_nausea",
			Kind:      models.InputSingleChoice,
			Domain:    models.DomainNutrition,
			Prompt:    "Have you had any nausea or vomiting?",
			AnswerKey: models.KeyNutritionNausea,
			Choices:   []string{"Yes, often", "Occasionally", "No"},
			Next:      "nutrition_supplements",
		},
		{
			ID:        "nutrition_supplements",
			Kind:      models.InputSingleChoice,
			Domain:    models.DomainNutrition,
			Prompt:    "Are you taking nutritional supplements such as shakes or drinks?",
			AnswerKey: models.KeyNutritionSupplements,
			Choices:   []string{"Yes", "No", "Sometimes"},
			Next:      "breathing_q1",
		},

		// Breathing
		{
			ID:        "breathing_q1",
			Kind:      models.InputYesNo,
			Domain:    models.DomainBreathing,
			Prompt:    "Breathing: have you been short of breath or had trouble breathing?",
			AnswerKey: models.KeyBreathingPresent,
			Choices:   presenceChoices,
			Next:      "breathing_detail",
		},
		{
			ID:        "breathing_detail",
			Kind:      models.InputFreeText,
			Domain:    models.DomainBreathing,
			Prompt:    "When does it happen? For example at rest, when walking, or at night.",
			AnswerKey: models.KeyBreathingDetail,
			IncludeIf: answeredYes(models.KeyBreathingPresent),
			Next:      "breathing_oxygen",
		},
		{
			ID:        "breathing_oxygen",
			Kind:      models.InputYesNo,
			Domain:    models.DomainBreathing,
			Prompt:    "Have you needed oxygen at home because of your breathing?",
			AnswerKey: models.KeyBreathingOxygen,
			Choices:   []string{"Yes", "No"},
			IncludeIf: answeredYes(models.KeyBreathingPresent),
			Next:      "fatigue_q1",
		},

		// Fatigue
		{
			ID:        "fatigue_q1",
			Kind:      models.InputSeverityScale,
			Domain:    models.DomainFatigue,
			Prompt:    "Energy: on a scale of 0 to 10, how tired have you been? 0 is not tired at all, 10 is completely exhausted.",
			AnswerKey: models.KeyFatigueLevel,
			Next:      "fatigue_impact",
		},
		{
			ID:        "fatigue_impact",
			Kind:      models.InputFreeText,
			Domain:    models.DomainFatigue,
			Prompt:    "How is the tiredness affecting daily activities like self-care, housework or going out?",
			AnswerKey: models.KeyFatigueImpact,
			IncludeIf: severityAtLeast(models.KeyFatigueLevel, models.FatigueFollowUpLevel),
			Next:      "mood_q1",
		},

		// Mood
		{
			ID:     "mood_q1",
			Kind:   models.InputSingleChoice,
			Domain: models.DomainMood,
			Prompt: "Emotional wellbeing: treatment can be hard, and many feelings are normal. " +
				"How would you describe your mood lately?",
			AnswerKey: models.KeyMoodGeneral,
			Choices:   []string{"Good / Positive", "A bit down", "Anxious or worried", "Quite sad", "Very distressed"},
			Next:      "mood_anxiety",
		},
		{
			ID:        "mood_anxiety",
			Kind:      models.InputSingleChoice,
			Domain:    models.DomainMood,
			Prompt:    "Have you been worried or anxious about your treatment or health?",
			AnswerKey: models.KeyMoodAnxiety,
			Choices:   []string{"Yes, a lot", "Sometimes", "Not really"},
			Next:      "mood_sleep",
		},
		{
			ID:        "mood_sleep",
			Kind:      models.InputSingleChoice,
			Domain:    models.DomainMood,
			Prompt:    "How have you been sleeping?",
			AnswerKey: models.KeyMoodSleep,
			Choices:   []string{"Sleeping well", "Some trouble sleeping", "Difficulty most nights", "Can't sleep at all"},
			Next:      "mood_support",
		},
		{
			ID:        "mood_support",
			Kind:      models.InputSingleChoice,
			Domain:    models.DomainMood,
			Prompt:    "Do you feel you have enough support from family, friends or your care team?",
			AnswerKey: models.KeyMoodSupport,
			Choices:   []string{"Yes, I feel supported", "Somewhat", "No, I need more support"},
			Next:      "other_q1",
		},

		// Other
		{
			ID:        "other_q1",
			Kind:      models.InputYesNo,
			Domain:    models.DomainOther,
			Prompt:    "Other symptoms: have you had a bothersome cough?",
			AnswerKey: models.KeyOtherCough,
			Choices:   presenceChoices,
			Next:      "other_skin",
		},
		{
			ID:        "other_skin",
			Kind:      models.InputYesNo,
			Domain:    models.DomainOther,
			Prompt:    "Any skin changes where you're being treated, like redness, peeling or soreness?",
			AnswerKey: models.KeyOtherSkin,
			Choices:   presenceChoices,
			Next:      "other_concentration",
		},
		{
			ID:        "other_concentration",
			Kind:      models.InputYesNo,
			Domain:    models.DomainOther,
			Prompt:    "Have you had trouble concentrating or remembering things?",
			AnswerKey: models.KeyOtherConcentration,
			Choices:   []string{"Yes, noticeably", "A little", "No"},
			Next:      "closing",
		},

		// Closing
		{
			ID:   "closing",
			Kind: models.InputFreeText,
			Prompt: "We're almost done. Is there anything else you'd like your care team to know " +
				"before your appointment?",
			AnswerKey: models.KeyAdditionalNotes,
			Next:      "done",
		},
		{
			ID:   "done",
			Kind: models.InputInformational,
			Prompt: "Thank you, {name}. Your answers have been recorded and a summary will go to your care team " +
				"before your appointment. If anything urgent comes up before then, contact your care team directly.",
		},
	}
}

var intakeFlow = MustDefinition(IntakeStart, IntakeSteps())

// IntakeFlow returns the validated head-and-neck symptom intake.
func IntakeFlow() *Definition {
	return intakeFlow
}
