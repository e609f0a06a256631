package models

import "time"

// Priority is the urgency bucket of a clinical alert.
type Priority string

const (
	PriorityHigh    Priority = "high_priority"
	PriorityMonitor Priority = "monitor"
)

// Alert is a derived, rule-triggered statement for the clinical alerts section.
type Alert struct {
	RuleID   string   `json:"rule_id"`
	Priority Priority `json:"priority"`
	Domain   Domain   `json:"domain"`
	Message  string   `json:"message"`
}

// ReportAlerts holds the two ordered alert lists of a report.
type ReportAlerts struct {
	HighPriority []string `json:"high_priority"`
	Monitor      []string `json:"monitor"`
}

// ReportSection is one titled block of the rendered report.
type ReportSection struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

// Report is derived fresh from an answer set; it is never mutated in place.
type Report struct {
	RespondentName string          `json:"respondent_name"`
	GeneratedAt    time.Time       `json:"generated_at"`
	Sections       []ReportSection `json:"sections"`
	Alerts         ReportAlerts    `json:"alerts"`
	Details        []Alert         `json:"alert_details,omitempty"`
	Text           string          `json:"text"`
}

// ReportRecord is the persisted form of a finalized report.
type ReportRecord struct {
	SessionID      string       `json:"session_id"`
	RespondentName string       `json:"respondent_name"`
	GeneratedAt    time.Time    `json:"generated_at"`
	Text           string       `json:"text"`
	Alerts         ReportAlerts `json:"alerts"`
}

// NewReportRecord builds the persisted form of a report for a session.
func NewReportRecord(sessionID string, r Report) ReportRecord {
	return ReportRecord{
		SessionID:      sessionID,
		RespondentName: r.RespondentName,
		GeneratedAt:    r.GeneratedAt,
		Text:           r.Text,
		Alerts:         r.Alerts,
	}
}

// CareTeamAlert is the outbox payload sent to the care team when a report
// carries high-priority alerts.
type CareTeamAlert struct {
	SessionID      string    `json:"session_id"`
	RespondentName string    `json:"respondent_name,omitempty"`
	GeneratedAt    time.Time `json:"generated_at"`
	HighPriority   []string  `json:"high_priority"`
}
