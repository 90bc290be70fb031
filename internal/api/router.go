package api

import (
	"net/http"

	"github.com/ernie/tourney-tracker/internal/auth"
	"github.com/ernie/tourney-tracker/internal/domain"
	"github.com/ernie/tourney-tracker/internal/storage"
	"github.com/ernie/tourney-tracker/internal/tracker"
)

// Router holds the HTTP routes and dependencies
type Router struct {
	mux     *http.ServeMux
	store   *storage.Store
	tracker *tracker.Tracker
	wsHub   *WebSocketHub
	auth    *auth.Service
	rooms   []string
}

// NewRouter creates a new HTTP router
func NewRouter(store *storage.Store, trk *tracker.Tracker, authService *auth.Service, rooms []string) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		store:   store,
		tracker: trk,
		wsHub:   NewWebSocketHub(),
		auth:    authService,
		rooms:   rooms,
	}

	// Tournament routes
	r.mux.HandleFunc("GET /api/tournaments/active", r.handleGetActive)
	r.mux.HandleFunc("GET /api/tournaments/summary", r.handleGetSummary)
	r.mux.HandleFunc("GET /api/tournaments/recent", r.handleGetRecent)

	// Room routes
	r.mux.HandleFunc("GET /api/rooms", r.handleGetRooms)
	r.mux.HandleFunc("GET /api/rooms/{room}/tournaments", r.handleGetRoomTournaments)

	// Auth routes
	r.mux.HandleFunc("POST /api/auth/login", r.handleLogin)
	r.mux.HandleFunc("POST /api/auth/logout", r.handleLogout)
	r.mux.HandleFunc("GET /api/auth/check", r.handleAuthCheck)

	// User management routes (admin only)
	r.mux.HandleFunc("GET /api/users", r.requireAdmin(r.handleListUsers))
	r.mux.HandleFunc("POST /api/users", r.requireAdmin(r.handleCreateUser))
	r.mux.HandleFunc("DELETE /api/users/{username}", r.requireAdmin(r.handleDeleteUser))

	// WebSocket endpoint for live lifecycle events
	r.mux.HandleFunc("GET /ws", r.handleWebSocket)

	// Health check
	r.mux.HandleFunc("GET /health", r.handleHealth)

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// CORS headers for API
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}

// StartWebSocketHub starts the hub loop for live event broadcasting.
// Events are fed in through Broadcast by whoever drains the tracker.
func (r *Router) StartWebSocketHub() {
	go r.wsHub.Run()
}

// Broadcast forwards a lifecycle event to all connected WebSocket
// clients
func (r *Router) Broadcast(event domain.Event) {
	r.wsHub.Broadcast(event)
}
