// Package flow implements the question flow engine: the static flow
// definition, the navigator that skips steps whose predicate is false, and
// the conversation session that drives one respondent through the flow.
package flow

import (
	"fmt"

	"github.com/BTreeMap/ChatReport/internal/models"
)

// Definition is a validated, immutable table of question steps.
type Definition struct {
	start string
	steps []models.Step
	index map[string]int
}

// NewDefinition validates the steps and builds a Definition. Any structural
// problem is reported as a *models.FlowConfigurationError.
func NewDefinition(start string, steps []models.Step) (*Definition, error) {
	if len(steps) == 0 {
		return nil, &models.FlowConfigurationError{Reason: "flow has no steps"}
	}

	d := &Definition{
		start: start,
		steps: make([]models.Step, len(steps)),
		index: make(map[string]int, len(steps)),
	}
	copy(d.steps, steps)

	answerKeys := make(map[string]string)
	for i, s := range d.steps {
		if s.ID == "" {
			return nil, &models.FlowConfigurationError{Reason: fmt.Sprintf("step at position %d has no id", i)}
		}
		if _, dup := d.index[s.ID]; dup {
			return nil, &models.FlowConfigurationError{StepID: s.ID, Reason: "duplicate step id"}
		}
		d.index[s.ID] = i

		if !models.IsValidInputKind(s.Kind) {
			return nil, &models.FlowConfigurationError{StepID: s.ID, Reason: fmt.Sprintf("unknown input kind %q", s.Kind)}
		}
		if s.Kind == models.InputInformational && s.AnswerKey != "" {
			return nil, &models.FlowConfigurationError{StepID: s.ID, Reason: "informational step declares an answer key"}
		}
		if s.Kind != models.InputInformational && s.AnswerKey == "" {
			return nil, &models.FlowConfigurationError{StepID: s.ID, Reason: "input step has no answer key"}
		}
		if s.Kind.RequiresChoices() && len(s.Choices) == 0 {
			return nil, &models.FlowConfigurationError{StepID: s.ID, Reason: "choice step has no choices"}
		}
		if s.AnswerKey != "" {
			if other, dup := answerKeys[s.AnswerKey]; dup {
				return nil, &models.FlowConfigurationError{StepID: s.ID, Reason: fmt.Sprintf("answer key %q already used by step %q", s.AnswerKey, other)}
			}
			answerKeys[s.AnswerKey] = s.ID
		}
	}

	if _, ok := d.index[start]; !ok {
		return nil, &models.FlowConfigurationError{StepID: start, Reason: "start step does not exist"}
	}

	incoming := make(map[string]int, len(d.steps))
	terminals := 0
	for _, s := range d.steps {
		if s.IsTerminal() {
			terminals++
			continue
		}
		if _, ok := d.index[s.Next]; !ok {
			return nil, &models.FlowConfigurationError{StepID: s.ID, Reason: fmt.Sprintf("next_id %q does not exist", s.Next)}
		}
		incoming[s.Next]++
	}
	if terminals != 1 {
		return nil, &models.FlowConfigurationError{Reason: fmt.Sprintf("flow must have exactly one terminal step, found %d", terminals)}
	}
	if incoming[start] > 0 {
		return nil, &models.FlowConfigurationError{StepID: start, Reason: "start step is referenced by another step"}
	}

	// Walk from the start: every step must be reached exactly once before
	// the terminal step.
	seen := make(map[string]bool, len(d.steps))
	for id := start; id != ""; {
		if seen[id] {
			return nil, &models.FlowConfigurationError{StepID: id, Reason: "cycle detected"}
		}
		seen[id] = true
		id = d.steps[d.index[id]].Next
	}
	for _, s := range d.steps {
		if !seen[s.ID] {
			return nil, &models.FlowConfigurationError{StepID: s.ID, Reason: "step is unreachable from start"}
		}
	}

	return d, nil
}

// MustDefinition is like NewDefinition but panics on a malformed flow. It is
// meant for package-level flow tables.
func MustDefinition(start string, steps []models.Step) *Definition {
	d, err := NewDefinition(start, steps)
	if err != nil {
		panic(err)
	}
	return d
}

// Start returns the designated start step id.
func (d *Definition) Start() string {
	return d.start
}

// Step looks up a step by id.
func (d *Definition) Step(id string) (models.Step, bool) {
	i, ok := d.index[id]
	if !ok {
		return models.Step{}, false
	}
	return d.steps[i], true
}

// Len returns the number of steps.
func (d *Definition) Len() int {
	return len(d.steps)
}

// Steps returns the steps in definition order.
func (d *Definition) Steps() []models.Step {
	out := make([]models.Step, len(d.steps))
	copy(out, d.steps)
	return out
}

// Schema maps every answer key to the input kind of its step.
func (d *Definition) Schema() map[string]models.InputKind {
	schema := make(map[string]models.InputKind)
	for _, s := range d.steps {
		if s.AnswerKey != "" {
			schema[s.AnswerKey] = s.Kind
		}
	}
	return schema
}

// InputStepCount counts the steps that take an answer.
func (d *Definition) InputStepCount() int {
	n := 0
	for _, s := range d.steps {
		if s.Kind != models.InputInformational {
			n++
		}
	}
	return n
}
