// Package models defines the core data structures for ChatReport.
//
// It includes the question step and answer types shared by the flow engine,
// the report generator, the storage backends and the presentation adapters.
package models

import (
	"errors"
	"fmt"
)

// InputKind tells the session how to normalize a raw answer and tells the
// presentation layer which widget to render. The engine never inspects
// rendering details beyond this tag.
type InputKind string

const (
	// InputFreeText stores the trimmed text as given.
	InputFreeText InputKind = "free_text"
	// InputYesNo classifies the text into yes, no or unclear.
	InputYesNo InputKind = "yes_no"
	// InputSeverityScale classifies the text into an integer 0-10.
	InputSeverityScale InputKind = "severity_scale"
	// InputSingleChoice matches the text against the step's choices.
	InputSingleChoice InputKind = "single_choice"
	// InputMultiChoice splits the text into several choices.
	InputMultiChoice InputKind = "multi_choice"
	// InputBodyRegionMultiChoice splits the text into body regions.
	InputBodyRegionMultiChoice InputKind = "body_region_multi_choice"
	// InputInformational needs no answer; the session moves past it.
	InputInformational InputKind = "informational"
)

// IsValidInputKind checks if the given input kind is supported.
func IsValidInputKind(k InputKind) bool {
	switch k {
	case InputFreeText, InputYesNo, InputSeverityScale, InputSingleChoice,
		InputMultiChoice, InputBodyRegionMultiChoice, InputInformational:
		return true
	default:
		return false
	}
}

// RequiresChoices reports whether steps of this kind must declare choices.
func (k InputKind) RequiresChoices() bool {
	return k == InputSingleChoice || k == InputMultiChoice
}

// Domain is a named symptom category grouping related steps and report fields.
type Domain string

const (
	DomainNone       Domain = ""
	DomainPain       Domain = "pain"
	DomainMouth      Domain = "mouth"
	DomainSwallowing Domain = "swallowing"
	DomainNutrition  Domain = "nutrition"
	DomainBreathing  Domain = "breathing"
	DomainFatigue    Domain = "fatigue"
	DomainMood       Domain = "mood"
	DomainOther      Domain = "other"
)

// Predicate decides whether a step is presented given the answers so far.
type Predicate func(answers AnswerLookup) bool

// Step is one node in the fixed question flow. Steps are defined once at
// startup and never mutated.
type Step struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`               // may contain {name}
	AnswerKey string    `json:"answer_key,omitempty"` // empty for informational steps
	Kind      InputKind `json:"input_kind"`
	Choices   []string  `json:"choices,omitempty"`
	Domain    Domain    `json:"domain,omitempty"`
	IncludeIf Predicate `json:"-"` // nil means always include
	Next      string    `json:"next_id,omitempty"` // empty marks the terminal step
}

// Included evaluates the step's predicate against the answers.
func (s Step) Included(answers AnswerLookup) bool {
	if s.IncludeIf == nil {
		return true
	}
	return s.IncludeIf(answers)
}

// IsTerminal reports whether the step ends the conversation.
func (s Step) IsTerminal() bool {
	return s.Next == ""
}

// Error variables for better error handling and testability
var (
	// ErrSessionAlreadyComplete is returned when an answer is submitted to a finished session.
	ErrSessionAlreadyComplete = errors.New("session already complete")
	// ErrSessionNotComplete is returned when a report is requested before the interview ends.
	ErrSessionNotComplete = errors.New("session not complete")
	// ErrUnclassifiableAnswer marks raw input that could not be mapped to the expected type.
	ErrUnclassifiableAnswer = errors.New("unclassifiable answer")
	// ErrInvalidAnswer is returned when a write violates the answer schema.
	ErrInvalidAnswer = errors.New("invalid answer")
)

// FlowConfigurationError reports a malformed flow definition. It is fatal at
// validation time and is never expected once a definition has been accepted.
type FlowConfigurationError struct {
	StepID string
	Reason string
}

func (e *FlowConfigurationError) Error() string {
	if e.StepID == "" {
		return fmt.Sprintf("flow configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("flow configuration error at step %q: %s", e.StepID, e.Reason)
}
