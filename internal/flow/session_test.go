package flow

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/ChatReport/internal/models"
	"github.com/BTreeMap/ChatReport/internal/report"
)

func fixedClock() func() time.Time {
	t := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

// johnAnswers walks the intake for a respondent with severe jaw pain, mouth
// and swallowing symptoms, a liquid diet, modest weight loss and low mood.
var johnAnswers = []string{
	"John",
	"Yes", "jaw", "8", "On and off", "Tylenol", "Hard to eat",
	"Yes", "Yes", "Yes", "Yes", "Some",
	"Yes", "A little", "liquid only", "No",
	"Reduced", "lost 8 pounds in 2 weeks", "8 pounds", "No", "No",
	"No",
	"3",
	"Quite sad", "Sometimes", "Sleeping well", "Yes, I feel supported",
	"No", "No", "No",
	"",
}

func runAnswers(t *testing.T, s *Session, answers []string) models.Turn {
	t.Helper()
	var turn models.Turn
	for i, raw := range answers {
		var err error
		turn, err = s.SubmitAnswer(raw)
		if err != nil {
			t.Fatalf("answer %d (%q) at %s: %v", i, raw, s.CurrentStepID(), err)
		}
		if turn.Reprompt {
			t.Fatalf("answer %d (%q) was reprompted", i, raw)
		}
	}
	return turn
}

func TestSessionStart(t *testing.T) {
	s := NewSession(IntakeFlow(), WithClock(fixedClock()))
	if s.State() != models.SessionNotStarted {
		t.Fatalf("state = %s, want not_started", s.State())
	}
	turn, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.State() != models.SessionInProgress || s.CurrentStepID() != "name" {
		t.Errorf("after start: state %s, step %s", s.State(), s.CurrentStepID())
	}
	if len(turn.Messages) != 1 || !strings.HasPrefix(turn.Messages[0], "Hello!") {
		t.Errorf("messages = %v, want the welcome text", turn.Messages)
	}
	if turn.Prompt == nil || turn.Prompt.StepID != "name" {
		t.Fatalf("prompt = %+v, want name step", turn.Prompt)
	}

	again, err := s.Start()
	if err != nil || again.Prompt == nil || again.Prompt.StepID != "name" || len(again.Messages) != 0 {
		t.Errorf("second Start = %+v, %v", again, err)
	}
	if len(s.Transcript()) != 2 {
		t.Errorf("transcript len = %d, want 2", len(s.Transcript()))
	}
}

func TestSessionWithRespondentNameSkipsNameStep(t *testing.T) {
	s := NewSession(IntakeFlow(), WithRespondentName("  Maria "))
	turn, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if turn.Prompt == nil || turn.Prompt.StepID != "pain_q1" {
		t.Fatalf("prompt = %+v, want pain_q1", turn.Prompt)
	}
	if len(turn.Messages) != 2 || !strings.Contains(turn.Messages[1], "Thanks, Maria.") {
		t.Errorf("messages = %q, want rendered intro", turn.Messages)
	}
	if s.RespondentName() != "Maria" {
		t.Errorf("name = %q", s.RespondentName())
	}
}

func TestSessionSubmitImplicitlyStarts(t *testing.T) {
	s := NewSession(IntakeFlow())
	turn, err := s.SubmitAnswer("Ana")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if turn.Prompt == nil || turn.Prompt.StepID != "pain_q1" {
		t.Fatalf("prompt = %+v, want pain_q1", turn.Prompt)
	}
	if a, _ := s.Answers().Get(models.KeyPatientName); a.Text != "Ana" {
		t.Errorf("patient name = %+v", a)
	}
}

func TestSessionPainNoSkipsPainFollowUps(t *testing.T) {
	s := NewSession(IntakeFlow(), WithRespondentName("Ana"))
	turn := runAnswers(t, s, []string{"No"})
	if turn.Prompt == nil || turn.Prompt.StepID != "mouth_q1" {
		t.Fatalf("prompt = %+v, want mouth_q1", turn.Prompt)
	}
	for _, key := range []string{
		models.KeyPainLocation, models.KeyPainSeverity, models.KeyPainFrequency,
		models.KeyPainManagement, models.KeyPainImpact,
	} {
		if s.Answers().Has(key) {
			t.Errorf("answer %s should be absent", key)
		}
	}
}

func TestSessionNumberedChoices(t *testing.T) {
	s := NewSession(IntakeFlow(), WithRespondentName("Ana"))
	turn := runAnswers(t, s, []string{"1", "1, 3"})
	if turn.Prompt == nil || turn.Prompt.StepID != "pain_severity" {
		t.Fatalf("prompt = %+v, want pain_severity", turn.Prompt)
	}
	if a := mustAnswer(t, s, models.KeyPainPresent); a.YesNo != models.YesNoYes || a.Text != "Yes" {
		t.Errorf("pain present = %+v", a)
	}
	if a := mustAnswer(t, s, models.KeyPainLocation); strings.Join(a.Values, "|") != "Head|Jaw" {
		t.Errorf("pain location = %v", a.Values)
	}
}

func TestSessionRepromptIsBounded(t *testing.T) {
	s := NewSession(IntakeFlow(), WithRespondentName("Ana"), WithMaxReprompts(2))
	if _, err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for attempt := 2; attempt <= 3; attempt++ {
		turn, err := s.SubmitAnswer("purple")
		if err != nil {
			t.Fatalf("SubmitAnswer: %v", err)
		}
		if !turn.Reprompt || turn.Attempt != attempt {
			t.Fatalf("turn = %+v, want reprompt attempt %d", turn, attempt)
		}
		if turn.Prompt == nil || turn.Prompt.StepID != "pain_q1" {
			t.Fatalf("reprompt should repeat pain_q1, got %+v", turn.Prompt)
		}
		if s.Answers().Has(models.KeyPainPresent) {
			t.Fatal("answer stored during reprompt")
		}
	}

	turn, err := s.SubmitAnswer("purple")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if turn.Reprompt {
		t.Fatal("budget exhausted but still reprompting")
	}
	a, ok := s.Answers().Get(models.KeyPainPresent)
	if !ok || !a.Unclear || a.YesNo != models.YesNoUnclear || a.Raw != "purple" {
		t.Errorf("stored answer = %+v, want unclear", a)
	}
	if s.CurrentStepID() != "mouth_q1" {
		t.Errorf("current = %s, want mouth_q1 after unclear pain answer", s.CurrentStepID())
	}
}

func TestSessionSeverityReprompt(t *testing.T) {
	s := NewSession(IntakeFlow(), WithRespondentName("Ana"))
	runAnswers(t, s, []string{"yes", "throat"})
	turn, err := s.SubmitAnswer("banana")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if !turn.Reprompt || !strings.Contains(turn.Messages[0], "0 to 10") {
		t.Errorf("turn = %+v, want severity hint", turn)
	}
	runAnswers(t, s, []string{"moderate"})
	if v, _ := mustAnswer(t, s, models.KeyPainSeverity).SeverityValue(); v != 5 {
		t.Errorf("severity = %d, want 5", v)
	}
}

func TestSessionDeclinedAnswers(t *testing.T) {
	s := NewSession(IntakeFlow(), WithRespondentName("Ana"))
	runAnswers(t, s, []string{"yes", "jaw", "6", "   "})
	if a := mustAnswer(t, s, models.KeyPainFrequency); !a.Declined {
		t.Errorf("empty choice answer = %+v, want declined", a)
	}
}

func TestSessionCompleteRejectsAnswers(t *testing.T) {
	s := NewSession(IntakeFlow(), WithClock(fixedClock()))
	turn := runAnswers(t, s, johnAnswers)
	if !turn.Complete || s.State() != models.SessionComplete {
		t.Fatalf("turn = %+v, state %s; want complete", turn, s.State())
	}
	if len(turn.Messages) != 1 || !strings.HasPrefix(turn.Messages[0], "Thank you, John.") {
		t.Errorf("closing messages = %q", turn.Messages)
	}

	before := s.Snapshot()
	if _, err := s.SubmitAnswer("one more"); !errors.Is(err, models.ErrSessionAlreadyComplete) {
		t.Errorf("error = %v, want ErrSessionAlreadyComplete", err)
	}
	if _, err := s.CurrentPrompt(); !errors.Is(err, models.ErrSessionAlreadyComplete) {
		t.Errorf("CurrentPrompt error = %v, want ErrSessionAlreadyComplete", err)
	}
	after := s.Snapshot()
	if len(after.Transcript) != len(before.Transcript) || len(after.Answers) != len(before.Answers) {
		t.Error("rejected answer changed the session")
	}
}

func TestSessionFinalizeBeforeComplete(t *testing.T) {
	s := NewSession(IntakeFlow())
	if _, err := s.Finalize(report.Options{}); !errors.Is(err, models.ErrSessionNotComplete) {
		t.Errorf("error = %v, want ErrSessionNotComplete", err)
	}
}

func TestSessionEndToEnd(t *testing.T) {
	s := NewSession(IntakeFlow(), WithClock(fixedClock()))
	runAnswers(t, s, johnAnswers)

	if a := mustAnswer(t, s, models.KeySwallowDiet); a.Text != "liquid only" {
		t.Errorf("diet = %+v, want raw text kept", a)
	}
	if s.Answers().Has(models.KeyFatigueImpact) {
		t.Error("fatigue impact asked for a low fatigue level")
	}
	if s.Answers().Has(models.KeyBreathingDetail) {
		t.Error("breathing follow-up asked after a negative answer")
	}
	if p := s.Progress(); p.Answered != len(johnAnswers) || p.Total != IntakeFlow().InputStepCount() {
		t.Errorf("progress = %+v, want %d answered", p, len(johnAnswers))
	}

	r, err := s.Finalize(report.Options{})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if r.RespondentName != "John" {
		t.Errorf("respondent = %q", r.RespondentName)
	}
	if len(r.Alerts.HighPriority) != 3 {
		t.Errorf("high priority = %v, want pain, diet and mood", r.Alerts.HighPriority)
	}
	if len(r.Alerts.Monitor) != 1 || !strings.Contains(r.Alerts.Monitor[0], "Weight loss reported: 8 pounds") {
		t.Errorf("monitor = %v, want the weight loss entry", r.Alerts.Monitor)
	}
	for _, want := range []string{
		"PAIN - PRESENT",
		"8/10",
		"MOUTH SYMPTOMS - PRESENT",
		"SWALLOWING DIFFICULTY - PRESENT",
		"liquid only",
	} {
		if !strings.Contains(r.Text, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Contains(r.Text, "BREATHING DIFFICULTY - PRESENT") {
		t.Error("breathing block rendered for a negative answer")
	}
}

func TestSessionSnapshotRestore(t *testing.T) {
	s := NewSession(IntakeFlow(), WithClock(fixedClock()), WithSessionID("s-1"))
	runAnswers(t, s, johnAnswers[:5])

	snap := s.Snapshot()
	restored, err := RestoreSession(IntakeFlow(), snap)
	if err != nil {
		t.Fatalf("RestoreSession: %v", err)
	}
	if restored.ID() != "s-1" || restored.CurrentStepID() != s.CurrentStepID() {
		t.Errorf("restored = %s at %s, want s-1 at %s", restored.ID(), restored.CurrentStepID(), s.CurrentStepID())
	}
	if len(restored.Transcript()) != len(s.Transcript()) {
		t.Errorf("transcript len = %d, want %d", len(restored.Transcript()), len(s.Transcript()))
	}

	runAnswers(t, restored, johnAnswers[5:])
	if restored.State() != models.SessionComplete {
		t.Errorf("restored session state = %s, want complete", restored.State())
	}

	snap.State = "paused"
	if _, err := RestoreSession(IntakeFlow(), snap); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestNormalize(t *testing.T) {
	yn := models.Step{ID: "q", Kind: models.InputYesNo, AnswerKey: "q"}
	if a, err := Normalize(yn, "a little"); err != nil || !a.IsYes() {
		t.Errorf("Normalize(a little) = %+v, %v", a, err)
	}
	if _, err := Normalize(yn, "maybe tomorrow"); !errors.Is(err, models.ErrUnclassifiableAnswer) {
		t.Errorf("error = %v, want ErrUnclassifiableAnswer", err)
	}

	mc := models.Step{ID: "m", Kind: models.InputMultiChoice, AnswerKey: "m", Choices: []string{"Dry mouth", "Sores"}}
	a, err := Normalize(mc, "2, dry mouth and thrush")
	if err != nil {
		t.Fatalf("Normalize multi: %v", err)
	}
	if strings.Join(a.Values, "|") != "Sores|Dry mouth|thrush" {
		t.Errorf("values = %v", a.Values)
	}

	numbered := models.Step{ID: "p", Kind: models.InputYesNo, AnswerKey: "p", Choices: []string{"Yes", "No", "A little"}}
	for in, want := range map[string]models.YesNo{"1": models.YesNoYes, "2": models.YesNoNo, "3": models.YesNoYes} {
		a, err := Normalize(numbered, in)
		if err != nil || a.YesNo != want {
			t.Errorf("Normalize(%q) = %+v, %v, want %s", in, a, err, want)
		}
	}
	if _, err := Normalize(numbered, "4"); !errors.Is(err, models.ErrUnclassifiableAnswer) {
		t.Errorf("out-of-range position error = %v, want ErrUnclassifiableAnswer", err)
	}

	body := models.Step{ID: "b", Kind: models.InputBodyRegionMultiChoice, AnswerKey: "b"}
	a, err = Normalize(body, "1, 2")
	if err != nil || strings.Join(a.Values, "|") != "Head|Neck" {
		t.Errorf("Normalize(body positions) = %v, %v", a.Values, err)
	}

	info := models.Step{ID: "i", Kind: models.InputInformational}
	if _, err := Normalize(info, "x"); !errors.Is(err, models.ErrInvalidAnswer) {
		t.Errorf("error = %v, want ErrInvalidAnswer", err)
	}
}

func mustAnswer(t *testing.T, s *Session, key string) models.Answer {
	t.Helper()
	a, ok := s.Answers().Get(key)
	if !ok {
		t.Fatalf("answer %s missing", key)
	}
	return a
}
