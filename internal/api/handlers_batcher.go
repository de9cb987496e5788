package api

import (
	"net/http"

	"github.com/safe-solver/internal/batcher"
	apperrors "github.com/safe-solver/internal/errors"
	"github.com/safe-solver/internal/logging"
)

// handleSendInput handles POST /send-input
func (s *Server) handleSendInput(w http.ResponseWriter, r *http.Request) {
	var req batcher.Request
	if err := parseJSONBody(w, r, &req); err != nil {
		respondServiceError(w, r, apperrors.NewInvalidInputError("request body must be a JSON object: "+err.Error()))
		return
	}

	receipt, err := s.submitter.Submit(r.Context(), &req)
	if err != nil {
		logging.FromContext(r.Context()).
			WithField("address", req.Data.Address).
			WithError(err).
			Debug("input rejected")
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, receipt)
}
