package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ernie/tourney-tracker/internal/auth"
	"github.com/ernie/tourney-tracker/internal/config"
	"github.com/ernie/tourney-tracker/internal/storage"
	"github.com/ernie/tourney-tracker/internal/tracker"
)

// stubNotifier accepts every announcement so frames can drive the
// tracker into a known state.
type stubNotifier struct {
	sent int
}

func (n *stubNotifier) AnnounceOpen(ctx context.Context, text string) (string, error) {
	n.sent++
	return fmt.Sprintf("msg-%d", n.sent), nil
}

func (n *stubNotifier) AnnounceResult(ctx context.Context, text string) error { return nil }

func (n *stubNotifier) Retract(ctx context.Context, ref string) error { return nil }

func newTestRouter(t *testing.T) (*Router, *storage.Store, *tracker.Tracker, *auth.Service) {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	trk := tracker.New(config.TrackerConfig{
		SweepInterval: time.Minute,
		MaxAge:        30 * time.Minute,
	}, "https://game.example.net", &stubNotifier{}, store)

	authService := auth.NewService("test-secret", time.Hour)
	return NewRouter(store, trk, authService, []string{"arena-1", "arena-2"}), store, trk, authService
}

func doRequest(router *Router, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetActiveReflectsTracker(t *testing.T) {
	router, _, trk, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/tournaments/active", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)

	trk.HandleFrame(context.Background(), ">arena-1\n|tournament|create|gen9ou|||Weekly Cup")

	w = doRequest(router, http.MethodGet, "/api/tournaments/active", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestGetSummary(t *testing.T) {
	router, _, trk, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/tournaments/summary", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "No active tournaments.", resp["summary"])

	trk.HandleFrame(context.Background(), ">arena-1\n|tournament|create|gen9ou|||Weekly Cup")

	w = doRequest(router, http.MethodGet, "/api/tournaments/summary", "", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["summary"], "Weekly Cup")
	assert.Contains(t, resp["summary"], "arena-1")
}

func TestGetRecent(t *testing.T) {
	router, _, trk, _ := newTestRouter(t)

	trk.HandleFrame(context.Background(), ">arena-1\n|tournament|create|gen9ou")
	trk.HandleFrame(context.Background(), ">arena-1\n|tournament|end|{\"results\":[[\"alice\"]]}")

	w := doRequest(router, http.MethodGet, "/api/tournaments/recent", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "arena-1", records[0]["room"])
}

func TestGetRooms(t *testing.T) {
	router, _, trk, _ := newTestRouter(t)

	trk.HandleFrame(context.Background(), ">arena-2")

	w := doRequest(router, http.MethodGet, "/api/rooms", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Rooms       []string `json:"rooms"`
		CurrentRoom string   `json:"current_room"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"arena-1", "arena-2"}, resp.Rooms)
	assert.Equal(t, "arena-2", resp.CurrentRoom)
}

func TestHealth(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestLoginFlow(t *testing.T) {
	router, store, _, _ := newTestRouter(t)

	hash, err := auth.HashPassword("hunter22")
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(context.Background(), "ernie", hash, true))

	w := doRequest(router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "ernie",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "ernie",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	w = doRequest(router, http.MethodGet, "/api/auth/check", resp.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUserRoutesRequireAdmin(t *testing.T) {
	router, store, _, authService := newTestRouter(t)

	// No token at all
	w := doRequest(router, http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token, not an admin
	hash, err := auth.HashPassword("hunter22")
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(context.Background(), "mortal", hash, false))
	user, err := store.GetUserByUsername(context.Background(), "mortal")
	require.NoError(t, err)
	token, err := authService.GenerateToken(user.ID, user.Username, false)
	require.NoError(t, err)

	w = doRequest(router, http.MethodGet, "/api/users", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUserManagement(t *testing.T) {
	router, store, _, authService := newTestRouter(t)

	hash, err := auth.HashPassword("hunter22")
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(context.Background(), "root", hash, true))
	admin, err := store.GetUserByUsername(context.Background(), "root")
	require.NoError(t, err)
	token, err := authService.GenerateToken(admin.ID, admin.Username, true)
	require.NoError(t, err)

	w := doRequest(router, http.MethodPost, "/api/users", token, CreateUserRequest{
		Username: "newbie",
		Password: "longenough",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Duplicate username conflicts
	w = doRequest(router, http.MethodPost, "/api/users", token, CreateUserRequest{
		Username: "newbie",
		Password: "longenough",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(router, http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var users []storage.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 2)

	w = doRequest(router, http.MethodDelete, "/api/users/newbie", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodDelete, "/api/users/newbie", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
