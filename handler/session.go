package handler

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// Session is the single authoritative record of who is logged in. The
// actor id doubles as the assigned_to value on queries, so it has to be
// stable across logins: the username itself is used.
type Session struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	username := os.Getenv("AUTH_USERNAME")
	if username == "" {
		username = "root"
	}
	password := os.Getenv("AUTH_PASSWORD")
	if password == "" {
		password = "root"
	}

	if req.Username != username || req.Password != password {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token := uuid.NewString()
	h.sessions.Set(token, Session{UserID: req.Username, Username: req.Username}, ttlcache.DefaultTTL)

	writeJSON(w, http.StatusOK, loginResponse{Token: token, UserID: req.Username})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(bearerToken(r))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	session, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, session)
}
