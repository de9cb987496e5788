package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// handleGetGameState handles GET /api/gamestate/{walletAddress}
func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	state, err := s.gameService.GetGameState(r.Context(), mux.Vars(r)["walletAddress"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// handleGetUser handles GET /api/user/{walletAddress}
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.gameService.GetUser(r.Context(), mux.Vars(r)["walletAddress"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// handleGetGameInfo handles GET /v1/game/info
func (s *Server) handleGetGameInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.gameService.GetGameInfo(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// handleGetEvents handles GET /api/events/{walletAddress}?limit=N
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	// unparsable limits fall back to the service default
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := s.eventService.ListEvents(r.Context(), mux.Vars(r)["walletAddress"], limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}
