package flow

import (
	"errors"
	"testing"

	"github.com/BTreeMap/ChatReport/internal/models"
)

func gatedFlow(t *testing.T) *Definition {
	t.Helper()
	steps := []models.Step{
		yesNo("q1", "k1", "f1"),
		{ID: "f1", Kind: models.InputFreeText, AnswerKey: "kf1", IncludeIf: answeredYes("k1"), Next: "f2"},
		{ID: "f2", Kind: models.InputFreeText, AnswerKey: "kf2", IncludeIf: answeredYes("k1"), Next: "q2"},
		yesNo("q2", "k2", "end"),
		{ID: "end", Kind: models.InputFreeText, AnswerKey: "kend", IncludeIf: answeredYes("k2")},
	}
	d, err := NewDefinition("q1", steps)
	if err != nil {
		t.Fatalf("NewDefinition: %v", err)
	}
	return d
}

func TestNextVisibleStep_SkipChain(t *testing.T) {
	d := gatedFlow(t)

	answers := models.MapLookup{"k1": {Kind: models.InputYesNo, YesNo: models.YesNoNo}}
	next, ok, err := NextVisibleStep(d, "q1", answers)
	if err != nil || !ok || next != "q2" {
		t.Errorf("after no: got %q, %v, %v; want q2", next, ok, err)
	}

	answers["k1"] = models.Answer{Kind: models.InputYesNo, YesNo: models.YesNoYes}
	next, ok, err = NextVisibleStep(d, "q1", answers)
	if err != nil || !ok || next != "f1" {
		t.Errorf("after yes: got %q, %v, %v; want f1", next, ok, err)
	}
}

func TestNextVisibleStep_EndWhenTerminalSkipped(t *testing.T) {
	d := gatedFlow(t)
	answers := models.MapLookup{"k2": {Kind: models.InputYesNo, YesNo: models.YesNoNo}}
	next, ok, err := NextVisibleStep(d, "q2", answers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || next != "" {
		t.Errorf("got %q, %v; want conversation over", next, ok)
	}
}

func TestNextVisibleStep_UnknownCurrent(t *testing.T) {
	d := gatedFlow(t)
	_, _, err := NextVisibleStep(d, "nope", models.MapLookup{})
	var cfgErr *models.FlowConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("error = %v, want FlowConfigurationError", err)
	}
}

func TestFirstVisibleStep(t *testing.T) {
	d := MustDefinition("s", []models.Step{
		{ID: "s", Kind: models.InputFreeText, AnswerKey: "name", IncludeIf: nameMissing, Next: "t"},
		info("t", ""),
	})
	first, ok, err := FirstVisibleStep(d, models.MapLookup{})
	if err != nil || !ok || first != "s" {
		t.Errorf("got %q, %v, %v; want s", first, ok, err)
	}
	first, _, _ = FirstVisibleStep(d, models.MapLookup{models.KeyPatientName: {Kind: models.InputFreeText, Text: "Ana"}})
	if first != "t" {
		t.Errorf("with name preset got %q, want t", first)
	}
}

func TestWalkBound(t *testing.T) {
	// A hand-built cyclic definition bypasses validation; the walk must
	// still terminate.
	d := &Definition{
		start: "a",
		steps: []models.Step{
			{ID: "a", Kind: models.InputInformational, IncludeIf: func(models.AnswerLookup) bool { return false }, Next: "b"},
			{ID: "b", Kind: models.InputInformational, IncludeIf: func(models.AnswerLookup) bool { return false }, Next: "a"},
		},
		index: map[string]int{"a": 0, "b": 1},
	}
	_, _, err := FirstVisibleStep(d, models.MapLookup{})
	var cfgErr *models.FlowConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want FlowConfigurationError", err)
	}
}

func TestIntakeNeverRevisitsSteps(t *testing.T) {
	inputs := map[models.InputKind]string{
		models.InputFreeText:              "something",
		models.InputYesNo:                 "yes",
		models.InputSeverityScale:         "9",
		models.InputSingleChoice:          "1",
		models.InputMultiChoice:           "1, 2",
		models.InputBodyRegionMultiChoice: "jaw, neck",
	}
	for _, answer := range []string{"yes", "no"} {
		s := NewSession(IntakeFlow())
		if _, err := s.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
		for i := 0; s.State() != models.SessionComplete; i++ {
			if i > IntakeFlow().Len() {
				t.Fatal("session did not complete")
			}
			step, _ := IntakeFlow().Step(s.CurrentStepID())
			raw := inputs[step.Kind]
			if step.Kind == models.InputYesNo {
				raw = answer
			}
			if _, err := s.SubmitAnswer(raw); err != nil {
				t.Fatalf("SubmitAnswer at %s: %v", step.ID, err)
			}
		}
		seen := map[string]bool{}
		for _, id := range s.Visited() {
			if seen[id] {
				t.Errorf("step %s visited twice (answers %q)", id, answer)
			}
			seen[id] = true
		}
	}
}
