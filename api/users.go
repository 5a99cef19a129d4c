package api

import (
	"net/http"

	"github.com/garnizeh/bounty/internal/users"
)

type UsersHandler struct {
	service *users.Service
}

func NewUsersHandler(service *users.Service) *UsersHandler {
	return &UsersHandler{service: service}
}

// Me returns the caller's profile with reputation and badges.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, err := requesterID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := h.service.Profile(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *UsersHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Leaderboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}
