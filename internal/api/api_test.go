package api_test

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/BTreeMap/ChatReport/internal/models"
	"github.com/BTreeMap/ChatReport/internal/store"
	"github.com/BTreeMap/ChatReport/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var fullInterview = []string{
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

func startSession(t *testing.T, h http.Handler, name string) models.TurnResult {
	t.Helper()
	rr := testutil.Do(h, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions", models.StartSessionRequest{RespondentName: name}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var res models.TurnResult
	testutil.DecodeResult(t, rr, &res)
	return res
}

func answer(t *testing.T, h http.Handler, id, value string) models.TurnResult {
	t.Helper()
	rr := testutil.Do(h, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/answers", models.AnswerRequest{Value: value}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res models.TurnResult
	testutil.DecodeResult(t, rr, &res)
	return res
}

func TestHealth(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	rr := testutil.Do(srv.Handler(), testutil.CreateHTTPRequest(t, http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	testutil.AssertJSONResponse(t, rr, "ok")
}

func TestCreateSession(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	h := srv.Handler()

	res := startSession(t, h, "John")
	assert.NotEmpty(t, res.Session.ID)
	assert.Equal(t, models.SessionInProgress, res.Session.State)
	require.NotNil(t, res.Turn.Prompt)
	assert.Equal(t, "pain_q1", res.Turn.Prompt.StepID)
	assert.Equal(t, models.InputYesNo, res.Turn.Prompt.InputKind)
	require.Len(t, res.Turn.Messages, 2)
	assert.Contains(t, res.Turn.Messages[1], "Thanks, John.")

	// Without a name the interview asks for one.
	rr := testutil.Do(h, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	var anon models.TurnResult
	testutil.DecodeResult(t, rr, &anon)
	require.NotNil(t, anon.Turn.Prompt)
	assert.Equal(t, "name", anon.Turn.Prompt.StepID)
}

func TestCreateSessionValidation(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	h := srv.Handler()

	req, err := http.NewRequest(http.MethodPost, "/sessions", strings.NewReader("{not json"))
	require.NoError(t, err)
	rr := testutil.Do(h, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	testutil.AssertJSONResponse(t, rr, "error")

	rr = testutil.Do(h, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions",
		models.StartSessionRequest{RespondentName: strings.Repeat("x", 201)}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnknownSession(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	h := srv.Handler()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/sessions/missing"},
		{http.MethodPost, "/sessions/missing/answers"},
		{http.MethodPost, "/sessions/missing/restart"},
		{http.MethodPost, "/sessions/missing/finalize"},
		{http.MethodGet, "/sessions/missing/transcript"},
		{http.MethodGet, "/sessions/missing/report"},
		{http.MethodGet, "/sessions/missing/export.xlsx"},
	} {
		rr := testutil.Do(h, testutil.CreateHTTPRequest(t, tc.method, tc.path, models.AnswerRequest{Value: "yes"}))
		assert.Equal(t, http.StatusNotFound, rr.Code, "%s %s", tc.method, tc.path)
	}
}

func TestAnswerReprompt(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	h := srv.Handler()
	id := startSession(t, h, "Ana").Session.ID

	res := answer(t, h, id, "purple")
	assert.True(t, res.Turn.Reprompt)
	assert.Equal(t, 2, res.Turn.Attempt)
	require.NotNil(t, res.Session.Prompt)
	assert.Equal(t, "pain_q1", res.Session.Prompt.StepID)

	rr := testutil.Do(h, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/answers",
		models.AnswerRequest{Value: strings.Repeat("a", models.MaxAnswerLength+1)}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFullInterview(t *testing.T) {
	srv, st := testutil.NewTestServer()
	h := srv.Handler()
	id := startSession(t, h, "John").Session.ID

	rr := testutil.Do(h, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/finalize", nil))
	assert.Equal(t, http.StatusConflict, rr.Code, "finalize before completion")

	var res models.TurnResult
	for _, v := range fullInterview {
		res = answer(t, h, id, v)
	}
	require.True(t, res.Turn.Complete)
	assert.Equal(t, models.SessionComplete, res.Session.State)
	assert.Nil(t, res.Session.Prompt)

	rr = testutil.Do(h, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/answers", models.AnswerRequest{Value: "more"}))
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = testutil.Do(h, testutil.CreateHTTPRequest(t, http.MethodGet, "/sessions/"+id+"/report", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code, "report before finalize")

	rr = testutil.Do(h, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/finalize",
		models.FinalizeRequest{Appointment: models.Appointment{Clinician: "Dr. Lee"}}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var fin models.FinalizeResult
	testutil.DecodeResult(t, rr, &fin)
	assert.Equal(t, id, fin.SessionID)
	assert.Len(t, fin.Alerts.HighPriority, 3)
	assert.Len(t, fin.Alerts.Monitor, 1)
	assert.Contains(t, fin.Report, "Clinician      : Dr. Lee")
	assert.Contains(t, fin.Report, "PAIN - PRESENT")

	require.Len(t, st.OutboxMessages(), 1)
	assert.Equal(t, store.OutboxKindCareTeamAlert, st.OutboxMessages()[0].Kind)

	rr = testutil.Do(h, testutil.CreateHTTPRequest(t, http.MethodGet, "/sessions/"+id+"/report", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var rec models.ReportRecord
	testutil.DecodeResult(t, rr, &rec)
	assert.Equal(t, fin.Report, rec.Text)
	assert.Equal(t, "John", rec.RespondentName)

	rr = testutil.Do(h, testutil.CreateHTTPRequest(t, http.MethodGet, "/sessions/"+id+"/report?format=text", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain"))
	assert.Equal(t, fin.Report, rr.Body.String())

	rr = testutil.Do(h, testutil.CreateHTTPRequest(t, http.MethodGet, "/sessions/"+id+"/transcript", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var transcript []models.TranscriptEntry
	testutil.DecodeResult(t, rr, &transcript)
	assert.NotEmpty(t, transcript)
	assert.Equal(t, models.SpeakerSystem, transcript[0].Speaker)

	rr = testutil.Do(h, testutil.CreateHTTPRequest(t, http.MethodGet, "/sessions/"+id+"/export.xlsx", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	alerts, err := f.GetRows("Alerts")
	require.NoError(t, err)
	assert.Len(t, alerts, 5)

	rr = testutil.Do(h, testutil.CreateHTTPRequest(t, http.MethodGet, "/sessions", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var list []models.SessionSummary
	testutil.DecodeResult(t, rr, &list)
	require.Len(t, list, 1)
	assert.Equal(t, models.SessionComplete, list[0].State)
	assert.Equal(t, "John", list[0].RespondentName)
}

func TestRestartSession(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	h := srv.Handler()
	id := startSession(t, h, "").Session.ID
	answer(t, h, id, "Ana")
	answer(t, h, id, "no")

	rr := testutil.Do(h, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/restart", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var res models.TurnResult
	testutil.DecodeResult(t, rr, &res)
	assert.Equal(t, id, res.Session.ID)
	assert.Equal(t, 0, res.Session.Progress.Answered)
	require.NotNil(t, res.Turn.Prompt)
	assert.Equal(t, "name", res.Turn.Prompt.StepID)

	rr = testutil.Do(h, testutil.CreateHTTPRequest(t, http.MethodGet, "/sessions/"+id, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var view models.SessionView
	testutil.DecodeResult(t, rr, &view)
	require.NotNil(t, view.Prompt)
	assert.Equal(t, "name", view.Prompt.StepID)
}

func TestMultiValueAnswer(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	h := srv.Handler()
	id := startSession(t, h, "Ana").Session.ID
	answer(t, h, id, "yes")

	rr := testutil.Do(h, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/answers",
		models.AnswerRequest{Values: []string{"jaw", "neck"}}))
	require.Equal(t, http.StatusOK, rr.Code)
	var res models.TurnResult
	testutil.DecodeResult(t, rr, &res)
	require.NotNil(t, res.Turn.Prompt)
	assert.Equal(t, "pain_severity", res.Turn.Prompt.StepID)
}
