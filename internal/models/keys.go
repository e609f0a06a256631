package models

// Answer keys of the head-and-neck symptom intake.
const (
	KeyPatientName = "patient_name"

	KeyPainPresent    = "pain_present"
	KeyPainLocation   = "pain_location"
	KeyPainSeverity   = "pain_severity"
	KeyPainFrequency  = "pain_frequency"
	KeyPainManagement = "pain_management"
	KeyPainImpact     = "pain_impact"

	KeyMouthPresent = "mouth_present"
	KeyMouthDry     = "mouth_dry"
	KeyMouthSores   = "mouth_sores"
	KeyMouthTaste   = "mouth_taste"
	KeyMouthImpact  = "mouth_impact"

	KeySwallowPresent = "swallow_present"
	KeySwallowPain    = "swallow_pain"
	KeySwallowDiet    = "swallow_diet"
	KeySwallowChoking = "swallow_choking"

	KeyNutritionAppetite    = "nutrition_appetite"
	KeyNutritionWeight      = "nutrition_weight"
	KeyNutritionWeightAmt   = "nutrition_weight_amt"
	KeyNutritionNausea      = "nutrition_nausea"
	KeyNutritionSupplements = "nutrition_supplements"

	KeyBreathingPresent = "breathing_present"
	KeyBreathingDetail  = "breathing_detail"
	KeyBreathingOxygen  = "breathing_oxygen"

	KeyFatigueLevel  = "fatigue_level"
	KeyFatigueImpact = "fatigue_impact"

	KeyMoodGeneral = "mood_general"
	KeyMoodAnxiety = "mood_anxiety"
	KeyMoodSleep   = "mood_sleep"
	KeyMoodSupport = "mood_support"

	KeyOtherCough         = "other_cough"
	KeyOtherSkin          = "other_skin"
	KeyOtherConcentration = "other_concentration"

	KeyAdditionalNotes = "additional_notes"
)

// FatigueFollowUpLevel is the fatigue severity from which the impact
// follow-up is asked and fatigue counts as a present symptom.
const FatigueFollowUpLevel = 4
