package api

import (
	"net/http"

	"github.com/gorilla/mux"

	apperrors "github.com/safe-solver/internal/errors"
	"github.com/safe-solver/internal/service"
)

// handleGetAddress handles GET /api/address/{address}
func (s *Server) handleGetAddress(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	record, err := s.gameService.GetAddress(r.Context(), address)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, record)
}

// handleGetAccount handles GET /api/account/{id}
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}

	account, err := s.gameService.GetAccount(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, account)
}

// handleGetAccountAddresses handles GET /api/account/{id}/addresses
func (s *Server) handleGetAccountAddresses(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}

	addresses, err := s.gameService.ListAddresses(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, addresses)
}

func accountIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := service.ParseAccountID(raw)
	if err != nil {
		respondServiceError(w, r, apperrors.NewInvalidParameterError("id", err.Error()))
		return 0, false
	}
	return id, true
}
