// Package export writes a finished session to an Excel workbook for the
// care team's spreadsheet.
package export

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/BTreeMap/ChatReport/internal/models"
	"github.com/xuri/excelize/v2"
)

// Sheet names in workbook order.
const (
	SheetSummary    = "Summary"
	SheetAnswers    = "Answers"
	SheetTranscript = "Transcript"
	SheetAlerts     = "Alerts"
)

const timeLayout = "2006-01-02 15:04:05"

// WriteWorkbook writes the snapshot and its report as an .xlsx document.
// The report may be zero when the session has not been finalized; the
// Alerts sheet is then empty apart from its header.
func WriteWorkbook(w io.Writer, snap models.SessionSnapshot, r models.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetAnswers, SheetTranscript, SheetAlerts} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	sheets := []struct {
		name   string
		header []interface{}
		rows   [][]interface{}
		widths []float64
	}{
		{SheetSummary, []interface{}{"Field", "Value"}, summaryRows(snap, r), []float64{20, 60}},
		{SheetAnswers, []interface{}{"Answer Key", "Value", "Raw Input", "Status"}, answerRows(snap), []float64{26, 40, 40, 12}},
		{SheetTranscript, []interface{}{"Timestamp", "Speaker", "Step", "Text"}, transcriptRows(snap), []float64{20, 12, 22, 90}},
		{SheetAlerts, []interface{}{"Priority", "Rule", "Domain", "Message"}, alertRows(r), []float64{14, 18, 14, 80}},
	}
	for _, s := range sheets {
		if err := writeRows(f, s.name, s.header, s.rows, header); err != nil {
			return err
		}
		for i, width := range s.widths {
			col, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				return err
			}
			if err := f.SetColWidth(s.name, col, col, width); err != nil {
				return fmt.Errorf("failed to size %s!%s: %w", s.name, col, err)
			}
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}, style int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func summaryRows(snap models.SessionSnapshot, r models.Report) [][]interface{} {
	rows := [][]interface{}{
		{"Session ID", snap.ID},
		{"Respondent", snap.RespondentName},
		{"State", string(snap.State)},
		{"Started", formatTime(snap.CreatedAt)},
		{"Last Activity", formatTime(snap.UpdatedAt)},
	}
	if !r.GeneratedAt.IsZero() {
		rows = append(rows,
			[]interface{}{"Report Generated", formatTime(r.GeneratedAt)},
			[]interface{}{"High Priority Alerts", len(r.Alerts.HighPriority)},
			[]interface{}{"Monitor Alerts", len(r.Alerts.Monitor)},
		)
	}
	return rows
}

func answerRows(snap models.SessionSnapshot) [][]interface{} {
	flat := snap.Flatten()
	keys := make([]string, 0, len(snap.Answers))
	for k := range snap.Answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]interface{}, 0, len(keys))
	for _, k := range keys {
		a := snap.Answers[k]
		rows = append(rows, []interface{}{k, flat["answer."+k], a.Raw, answerStatus(a)})
	}
	return rows
}

func answerStatus(a models.Answer) string {
	switch {
	case a.Declined:
		return "declined"
	case a.Unclear:
		return "unclear"
	}
	return "answered"
}

func transcriptRows(snap models.SessionSnapshot) [][]interface{} {
	rows := make([][]interface{}, 0, len(snap.Transcript))
	for _, e := range snap.Transcript {
		rows = append(rows, []interface{}{formatTime(e.Timestamp), string(e.Speaker), e.StepID, e.Text})
	}
	return rows
}

func alertRows(r models.Report) [][]interface{} {
	var rows [][]interface{}
	if len(r.Details) > 0 {
		for _, a := range r.Details {
			rows = append(rows, []interface{}{priorityLabel(a.Priority), a.RuleID, string(a.Domain), a.Message})
		}
		return rows
	}
	// Stored report records keep only the grouped lists.
	for _, msg := range r.Alerts.HighPriority {
		rows = append(rows, []interface{}{priorityLabel(models.PriorityHigh), "", "", msg})
	}
	for _, msg := range r.Alerts.Monitor {
		rows = append(rows, []interface{}{priorityLabel(models.PriorityMonitor), "", "", msg})
	}
	return rows
}

func priorityLabel(p models.Priority) string {
	if p == models.PriorityHigh {
		return "HIGH"
	}
	return "MONITOR"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}
