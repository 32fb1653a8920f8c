package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"askrag/internal/ragerr"
)

const (
	msgQuestionRequired = "Question is required"
	msgInternal         = "Something went wrong"

	maxBodyBytes = 1 << 20
)

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgQuestionRequired)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, msgQuestionRequired)
		return
	}

	answer, err := s.asker.Ask(r.Context(), req.Question)
	if err != nil {
		if ragerr.IsInvalidInput(err) {
			writeError(w, http.StatusBadRequest, msgQuestionRequired)
			return
		}
		s.logger.Error("ask failed",
			"kind", ragerr.KindOf(err),
			"code", ragerr.CodeOf(err),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Answer: answer.Text})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
