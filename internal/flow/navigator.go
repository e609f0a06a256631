package flow

import (
	"fmt"

	"github.com/BTreeMap/ChatReport/internal/models"
)

// NextVisibleStep follows next_id pointers from currentID and returns the
// first step whose predicate holds for answers. The boolean is false when
// the terminal step is passed without finding one: the conversation is over.
//
// The walk is bounded by the number of steps; exceeding it means the
// definition is cyclic and is reported as a FlowConfigurationError.
func NextVisibleStep(def *Definition, currentID string, answers models.AnswerLookup) (string, bool, error) {
	step, ok := def.Step(currentID)
	if !ok {
		return "", false, &models.FlowConfigurationError{StepID: currentID, Reason: "unknown current step"}
	}
	return walk(def, step.Next, answers)
}

// FirstVisibleStep returns the start step if it is included, otherwise the
// first included step after it.
func FirstVisibleStep(def *Definition, answers models.AnswerLookup) (string, bool, error) {
	return walk(def, def.Start(), answers)
}

func walk(def *Definition, id string, answers models.AnswerLookup) (string, bool, error) {
	for hops := 0; id != ""; hops++ {
		if hops > def.Len() {
			return "", false, &models.FlowConfigurationError{StepID: id, Reason: fmt.Sprintf("navigation exceeded %d steps", def.Len())}
		}
		step, ok := def.Step(id)
		if !ok {
			return "", false, &models.FlowConfigurationError{StepID: id, Reason: "dangling next_id"}
		}
		if step.Included(answers) {
			return step.ID, true, nil
		}
		id = step.Next
	}
	return "", false, nil
}
