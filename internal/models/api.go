package models

import (
	"errors"
	"strings"
	"time"
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// MaxAnswerLength bounds a single submitted answer.
const MaxAnswerLength = 4096

var (
	ErrAnswerTooLong = errors.New("answer exceeds maximum length")
	ErrNameTooLong   = errors.New("respondent name exceeds maximum length")
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// StartSessionRequest is the body of POST /sessions.
type StartSessionRequest struct {
	RespondentName string `json:"respondent_name,omitempty"`
}

// Validate checks the request fields.
func (r StartSessionRequest) Validate() error {
	if len(r.RespondentName) > 200 {
		return ErrNameTooLong
	}
	return nil
}

// AnswerRequest is the body of POST /sessions/{id}/answers. Multi-choice
// widgets may send Values instead of a single Value.
type AnswerRequest struct {
	Value  string   `json:"value"`
	Values []string `json:"values,omitempty"`
}

// Raw joins the request into the raw text handed to the session.
func (r AnswerRequest) Raw() string {
	if len(r.Values) > 0 {
		return strings.Join(r.Values, ", ")
	}
	return r.Value
}

// Validate checks the request fields.
func (r AnswerRequest) Validate() error {
	if len(r.Raw()) > MaxAnswerLength {
		return ErrAnswerTooLong
	}
	return nil
}

// Appointment is optional metadata printed in the report header.
type Appointment struct {
	Date      string `json:"date,omitempty"`
	Clinician string `json:"clinician,omitempty"`
	Location  string `json:"location,omitempty"`
}

// IsZero reports whether no appointment field is set.
func (a Appointment) IsZero() bool {
	return a.Date == "" && a.Clinician == "" && a.Location == ""
}

// FinalizeRequest is the optional body of POST /sessions/{id}/finalize.
type FinalizeRequest struct {
	Appointment Appointment `json:"appointment,omitempty"`
}

// SessionView is the API representation of a session's current position.
type SessionView struct {
	ID       string       `json:"id"`
	State    SessionState `json:"state"`
	Prompt   *PromptView  `json:"prompt,omitempty"`
	Progress Progress     `json:"progress"`
}

// FinalizeResult is returned by POST /sessions/{id}/finalize.
type FinalizeResult struct {
	SessionID string       `json:"session_id"`
	Report    string       `json:"report"`
	Alerts    ReportAlerts `json:"alerts"`
}

// TurnResult pairs the outcome of a turn with the session's new position.
type TurnResult struct {
	Session SessionView `json:"session"`
	Turn    Turn        `json:"turn"`
}

// SessionSummary is one entry of GET /sessions.
type SessionSummary struct {
	ID             string       `json:"id"`
	RespondentName string       `json:"respondent_name,omitempty"`
	State          SessionState `json:"state"`
	Progress       Progress     `json:"progress"`
	UpdatedAt      time.Time    `json:"updated_at"`
}
