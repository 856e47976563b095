package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Zchasse63/voice-fit-sub008/internal/pipeline"
)

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd pipeline.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	result, err := s.pipe.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCorrection(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "id")

	if err := s.pipe.Correct(r.Context(), recordID); err != nil {
		if errors.Is(err, pipeline.ErrInvalid) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"record_id": recordID, "status": "corrected"})
}

// endWorkoutRequest is the body of POST /api/v1/workouts/end.
type endWorkoutRequest struct {
	UserID    string `json:"user_id"`
	WorkoutID string `json:"workout_id"`
}

func (s *Server) handleEndWorkout(w http.ResponseWriter, r *http.Request) {
	var req endWorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	view, err := s.pipe.EndWorkout(r.Context(), req.UserID, req.WorkoutID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	workoutID := chi.URLParam(r, "workout")

	view, ok := s.pipe.Session(userID, workoutID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// writeError maps pipeline error kinds to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pipeline.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, pipeline.ErrServiceUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
