package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/BTreeMap/ChatReport/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleSnapshot() models.SessionSnapshot {
	sev := 8
	start := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	return models.SessionSnapshot{
		ID:             "sess-1",
		RespondentName: "John",
		State:          models.SessionComplete,
		Answers: map[string]models.Answer{
			models.KeyPatientName:     {Kind: models.InputFreeText, Raw: "John", Text: "John"},
			models.KeyPainSeverity:    {Kind: models.InputSeverityScale, Raw: "8", Severity: &sev},
			models.KeyAdditionalNotes: {Kind: models.InputFreeText, Declined: true},
			models.KeyPainPresent:     {Kind: models.InputYesNo, Raw: "purple", YesNo: models.YesNoUnclear, Unclear: true},
		},
		Transcript: []models.TranscriptEntry{
			{Speaker: models.SpeakerSystem, StepID: "name", Text: "What's your first name?", Timestamp: start},
			{Speaker: models.SpeakerRespondent, StepID: "name", Text: "John", Timestamp: start.Add(time.Second)},
		},
		CreatedAt: start,
		UpdatedAt: start.Add(time.Minute),
	}
}

func readWorkbook(t *testing.T, buf *bytes.Buffer) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWriteWorkbook(t *testing.T) {
	r := models.Report{
		RespondentName: "John",
		GeneratedAt:    time.Date(2025, 3, 4, 9, 5, 0, 0, time.UTC),
		Alerts: models.ReportAlerts{
			HighPriority: []string{"Severe pain reported (8/10): review pain management"},
			Monitor:      []string{},
		},
		Details: []models.Alert{{
			RuleID:   "pain_severity",
			Priority: models.PriorityHigh,
			Domain:   models.DomainPain,
			Message:  "Severe pain reported (8/10): review pain management",
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, sampleSnapshot(), r))
	f := readWorkbook(t, &buf)

	assert.Equal(t, []string{SheetSummary, SheetAnswers, SheetTranscript, SheetAlerts}, f.GetSheetList())

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Session ID", "sess-1"}, summary[1])
	assert.Equal(t, []string{"High Priority Alerts", "1"}, summary[7])

	answers, err := f.GetRows(SheetAnswers)
	require.NoError(t, err)
	require.Len(t, answers, 5)
	assert.Equal(t, []string{"Answer Key", "Value", "Raw Input", "Status"}, answers[0])
	byKey := map[string][]string{}
	for _, row := range answers[1:] {
		byKey[row[0]] = row
	}
	assert.Equal(t, "8", byKey[models.KeyPainSeverity][1])
	assert.Equal(t, "declined", byKey[models.KeyAdditionalNotes][3])
	assert.Equal(t, "unclear", byKey[models.KeyPainPresent][3])

	transcript, err := f.GetRows(SheetTranscript)
	require.NoError(t, err)
	require.Len(t, transcript, 3)
	assert.Equal(t, []string{"2025-03-04 09:00:01", "respondent", "name", "John"}, transcript[2])

	alerts, err := f.GetRows(SheetAlerts)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, []string{"HIGH", "pain_severity", "pain", r.Details[0].Message}, alerts[1])
}

func TestWriteWorkbookWithoutReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, sampleSnapshot(), models.Report{}))
	f := readWorkbook(t, &buf)

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Len(t, summary, 6)

	alerts, err := f.GetRows(SheetAlerts)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestAlertRowsFromStoredRecord(t *testing.T) {
	rows := alertRows(models.Report{Alerts: models.ReportAlerts{
		HighPriority: []string{"a"},
		Monitor:      []string{"b", "c"},
	}})
	require.Len(t, rows, 3)
	assert.Equal(t, "HIGH", rows[0][0])
	assert.Equal(t, "MONITOR", rows[2][0])
	assert.Equal(t, "c", rows[2][3])
}
