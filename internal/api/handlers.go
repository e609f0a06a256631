package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/ChatReport/internal/export"
	"github.com/BTreeMap/ChatReport/internal/flow"
	"github.com/BTreeMap/ChatReport/internal/models"
	"github.com/BTreeMap/ChatReport/internal/store"
	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "ok"}))
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func sessionView(sess *flow.Session) models.SessionView {
	view := models.SessionView{
		ID:       sess.ID(),
		State:    sess.State(),
		Progress: sess.Progress(),
	}
	if sess.State() == models.SessionInProgress {
		if prompt, err := sess.CurrentPrompt(); err == nil {
			view.Prompt = &prompt
		}
	}
	return view
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req models.StartSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		slog.Warn("Server.createSessionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "Server.createSessionHandler", err)
		return
	}

	sess, turn, err := s.manager.Create(r.Context(), req.RespondentName)
	if err != nil {
		writeError(w, "Server.createSessionHandler", err)
		return
	}
	slog.Info("Server.createSessionHandler: session started", "session_id", sess.ID())
	writeJSONResponse(w, http.StatusCreated, models.Success(models.TurnResult{Session: sessionView(sess), Turn: turn}))
}

func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.manager.List(r.Context())
	if err != nil {
		writeError(w, "Server.listSessionsHandler", err)
		return
	}
	total := s.manager.Definition().InputStepCount()
	out := make([]models.SessionSummary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, models.SessionSummary{
			ID:             snap.ID,
			RespondentName: snap.RespondentName,
			State:          snap.State,
			Progress:       models.Progress{Answered: len(snap.Answers), Total: total},
			UpdatedAt:      snap.UpdatedAt,
		})
	}
	writeJSONResponse(w, http.StatusOK, models.Success(out))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "Server.getSessionHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sessionView(sess)))
}

func (s *Server) answerHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req models.AnswerRequest
	if err := decodeBody(w, r, &req); err != nil {
		slog.Warn("Server.answerHandler: failed to decode JSON", "error", err, "session_id", id)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "Server.answerHandler", err)
		return
	}

	sess, turn, err := s.manager.Submit(r.Context(), id, req.Raw())
	if err != nil {
		writeError(w, "Server.answerHandler", err)
		return
	}
	slog.Debug("Server.answerHandler: answer accepted", "session_id", id, "reprompt", turn.Reprompt, "complete", turn.Complete)
	writeJSONResponse(w, http.StatusOK, models.Success(models.TurnResult{Session: sessionView(sess), Turn: turn}))
}

func (s *Server) restartHandler(w http.ResponseWriter, r *http.Request) {
	sess, turn, err := s.manager.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "Server.restartHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(models.TurnResult{Session: sessionView(sess), Turn: turn}))
}

func (s *Server) finalizeHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req models.FinalizeRequest
	if err := decodeBody(w, r, &req); err != nil {
		slog.Warn("Server.finalizeHandler: failed to decode JSON", "error", err, "session_id", id)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	rep, err := s.manager.Finalize(r.Context(), id, req.Appointment)
	if err != nil {
		writeError(w, "Server.finalizeHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(models.FinalizeResult{
		SessionID: id,
		Report:    rep.Text,
		Alerts:    rep.Alerts,
	}))
}

func (s *Server) reportHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := s.manager.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Report not found; finalize the session first"))
			return
		}
		writeError(w, "Server.reportHandler", err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, rec.Text)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(rec))
}

func (s *Server) transcriptHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "Server.transcriptHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess.Transcript()))
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.manager.Load(r.Context(), id)
	if err != nil {
		writeError(w, "Server.exportHandler", err)
		return
	}

	var rep models.Report
	rec, err := s.manager.Report(r.Context(), id)
	switch {
	case err == nil:
		rep = models.Report{
			RespondentName: rec.RespondentName,
			GeneratedAt:    rec.GeneratedAt,
			Alerts:         rec.Alerts,
			Text:           rec.Text,
		}
	case !errors.Is(err, store.ErrNotFound):
		writeError(w, "Server.exportHandler", err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, sess.Snapshot(), rep); err != nil {
		writeError(w, "Server.exportHandler", err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="chatreport-`+id+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("Server.exportHandler: failed to write workbook", "error", err, "session_id", id)
	}
}
