package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/ChatReport/internal/models"
	"github.com/BTreeMap/ChatReport/internal/store"
)

// Pre-marshaled fallback responses to avoid runtime JSON encoding failures
var (
	fallbackErrorResponse []byte
)

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response to the http.ResponseWriter with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// Marshal first so encoding errors surface before headers are written
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// writeError maps a domain error onto an HTTP status and error envelope.
func writeError(w http.ResponseWriter, op string, err error) {
	var cfgErr *models.FlowConfigurationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
	case errors.Is(err, models.ErrSessionAlreadyComplete):
		writeJSONResponse(w, http.StatusConflict, models.Error("Session is already complete"))
	case errors.Is(err, models.ErrSessionNotComplete):
		writeJSONResponse(w, http.StatusConflict, models.Error("Session is not complete yet"))
	case errors.Is(err, models.ErrInvalidAnswer),
		errors.Is(err, models.ErrAnswerTooLong),
		errors.Is(err, models.ErrNameTooLong):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
	case errors.As(err, &cfgErr):
		slog.Error(op+": flow configuration error", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Flow configuration error"))
	default:
		slog.Error(op+": request failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
	}
}
