// internal/server/handlers.go
package server

import (
	"net/http"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/agent"
)

const maxTaskBody = 64 * 1024

// TaskRequest is the body of POST /api/task.
type TaskRequest struct {
	Goal string `json:"goal"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTask runs one task to completion and responds with its result.
func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTaskBody)).Decode(&req); err != nil || strings.TrimSpace(req.Goal) == "" {
		s.respondWithError(w, http.StatusBadRequest, "goal required")
		return
	}

	if !s.busy.CompareAndSwap(false, true) {
		s.respondWithError(w, http.StatusConflict, "a task is already running")
		return
	}
	defer s.busy.Store(false)

	goal := strings.TrimSpace(req.Goal)
	s.logger.Info("Received task", zap.String("goal", goal))

	result, err := s.run(r.Context(), agent.TaskParams{
		Goal:                goal,
		OnEvent:             s.hub.Publish,
		WaitForUserInput:    s.bridge.WaitForUserInput,
		WaitForConfirmation: s.bridge.WaitForConfirmation,
	})
	if err != nil {
		s.logger.Warn("Task run ended with error", zap.Error(err), zap.String("status", string(result.Status)))
		if result.Status == "" {
			s.respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if result.Bookmarks == nil {
		result.Bookmarks = []string{}
	}
	s.respondJSON(w, http.StatusOK, result)
}

// respondWithError sends a JSON error body.
func (s *Server) respondWithError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, map[string]string{"error": message})
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
