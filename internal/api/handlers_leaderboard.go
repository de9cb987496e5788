package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/safe-solver/internal/service"
)

// handleGetLeaderboard handles GET /v1/game/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	view, err := s.leaderboardService.GetLeaderboard(r.Context(), service.LeaderboardQuery{
		Limit:     q.Get("limit"),
		Offset:    q.Get("offset"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// handleGetUserProfile handles GET /v1/game/users/{address}
func (s *Server) handleGetUserProfile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	view, err := s.leaderboardService.GetUserProfile(r.Context(), mux.Vars(r)["address"], q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}
