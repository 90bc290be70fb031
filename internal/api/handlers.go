package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ernie/tourney-tracker/internal/auth"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parseLimit reads a ?limit= query parameter with a default and cap
func parseLimit(req *http.Request, def, max int) int {
	limit := def
	if v := req.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

// handleGetActive returns all live tournaments from the registry
func (r *Router) handleGetActive(w http.ResponseWriter, req *http.Request) {
	active := r.tracker.Active()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tournaments": active,
		"count":       len(active),
	})
}

// handleGetSummary returns the "list active tournaments" text
func (r *Router) handleGetSummary(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"summary": r.tracker.ActiveSummary(),
	})
}

// handleGetRecent returns recent tournament history
func (r *Router) handleGetRecent(w http.ResponseWriter, req *http.Request) {
	limit := parseLimit(req, 20, 200)
	records, err := r.store.GetRecentTournaments(req.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleGetRooms returns the subscribed rooms and the current cursor
func (r *Router) handleGetRooms(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rooms":        r.rooms,
		"current_room": r.tracker.CurrentRoom(),
	})
}

// handleGetRoomTournaments returns history for one room
func (r *Router) handleGetRoomTournaments(w http.ResponseWriter, req *http.Request) {
	room := req.PathValue("room")
	if room == "" {
		writeError(w, http.StatusBadRequest, "room is required")
		return
	}

	limit := parseLimit(req, 20, 200)
	records, err := r.store.GetTournamentsByRoom(req.Context(), room, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleHealth is the health check endpoint
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "ok",
		"active_tournaments": len(r.tracker.Active()),
		"ws_clients":         r.wsHub.ClientCount(),
	})
}

// CreateUserRequest is the request body for user creation
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

// handleListUsers returns all users (admin only)
func (r *Router) handleListUsers(w http.ResponseWriter, req *http.Request) {
	users, err := r.store.ListUsers(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// handleCreateUser adds a user (admin only)
func (r *Router) handleCreateUser(w http.ResponseWriter, req *http.Request) {
	var body CreateUserRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	if err := r.store.CreateUser(req.Context(), body.Username, hash, body.IsAdmin); err != nil {
		writeError(w, http.StatusConflict, "user already exists")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

// handleDeleteUser removes a user (admin only)
func (r *Router) handleDeleteUser(w http.ResponseWriter, req *http.Request) {
	username := req.PathValue("username")
	if err := r.store.DeleteUser(req.Context(), username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
