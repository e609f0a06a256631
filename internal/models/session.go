package models

import (
	"strconv"
	"time"
)

// SessionState is the lifecycle state of a conversation session.
type SessionState string

const (
	SessionNotStarted SessionState = "not_started"
	SessionInProgress SessionState = "in_progress"
	SessionComplete   SessionState = "complete"
)

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerSystem     Speaker = "system"
	SpeakerRespondent Speaker = "respondent"
)

// TranscriptEntry is one immutable line of the conversation transcript.
type TranscriptEntry struct {
	Speaker   Speaker   `json:"speaker"`
	StepID    string    `json:"step_id,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// PromptView is what the presentation layer needs to ask the next question.
type PromptView struct {
	StepID    string    `json:"step_id"`
	Text      string    `json:"text"`
	InputKind InputKind `json:"input_kind"`
	Choices   []string  `json:"choices,omitempty"`
	Domain    Domain    `json:"domain,omitempty"`
}

// Turn is the outcome of starting a session or submitting an answer.
type Turn struct {
	// Messages holds informational texts emitted before the next prompt,
	// including the closing message when the session completes.
	Messages []string    `json:"messages,omitempty"`
	Prompt   *PromptView `json:"prompt,omitempty"`
	Reprompt bool        `json:"reprompt,omitempty"`
	Attempt  int         `json:"attempt,omitempty"`
	Complete bool        `json:"complete"`
}

// Progress counts answered input steps against all input steps of the flow.
type Progress struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// SessionSnapshot is the serializable form of a session, handed to the
// persistence collaborator.
type SessionSnapshot struct {
	ID             string            `json:"id"`
	RespondentName string            `json:"respondent_name,omitempty"`
	State          SessionState      `json:"state"`
	CurrentStepID  string            `json:"current_step_id,omitempty"`
	Attempts       int               `json:"attempts,omitempty"`
	Visited        []string          `json:"visited,omitempty"`
	Answers        map[string]Answer `json:"answers"`
	Transcript     []TranscriptEntry `json:"transcript"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Flatten renders the snapshot as a flat key-value map: answers under
// "answer.<key>" and transcript lines under "transcript.<n>.<field>".
func (s SessionSnapshot) Flatten() map[string]string {
	out := map[string]string{
		"session.id":      s.ID,
		"session.state":   string(s.State),
		"session.created": s.CreatedAt.Format(time.RFC3339),
		"session.updated": s.UpdatedAt.Format(time.RFC3339),
	}
	if s.RespondentName != "" {
		out["session.respondent_name"] = s.RespondentName
	}
	for k, a := range s.Answers {
		out["answer."+k] = a.Display()
	}
	for i, e := range s.Transcript {
		prefix := "transcript." + strconv.Itoa(i) + "."
		out[prefix+"speaker"] = string(e.Speaker)
		out[prefix+"text"] = e.Text
		out[prefix+"timestamp"] = e.Timestamp.Format(time.RFC3339)
	}
	return out
}
