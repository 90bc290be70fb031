package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ernie/tourney-tracker/internal/config"
)

func newTestClient(handler http.Handler) (*ChatClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewChatClient(config.ChatConfig{
		APIBase:   srv.URL,
		ChannelID: "chan-1",
		Token:     "secret",
	})
	return client, srv
}

func TestAnnounceOpenReturnsMessageRef(t *testing.T) {
	t.Parallel()

	var gotAuth, gotPath, gotContent string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		gotContent = body["content"]
		json.NewEncoder(w).Encode(map[string]string{"id": "42"})
	}))
	defer srv.Close()

	ref, err := client.AnnounceOpen(context.Background(), "hello")
	if err != nil {
		t.Fatalf("AnnounceOpen: %v", err)
	}
	if ref != "42" {
		t.Errorf("expected ref %q, got %q", "42", ref)
	}
	if gotAuth != "Bot secret" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if gotPath != "/channels/chan-1/messages" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotContent != "hello" {
		t.Errorf("unexpected content %q", gotContent)
	}
}

func TestAnnounceOpenFailsOnErrorStatus(t *testing.T) {
	t.Parallel()

	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := client.AnnounceOpen(context.Background(), "hello"); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestAnnounceOpenFailsWithoutMessageID(t *testing.T) {
	t.Parallel()

	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	if _, err := client.AnnounceOpen(context.Background(), "hello"); err == nil {
		t.Fatal("expected error when response carries no id")
	}
}

func TestRetractToleratesNotFoundAndForbidden(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusForbidden} {
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				t.Errorf("expected DELETE, got %s", r.Method)
			}
			w.WriteHeader(status)
		}))
		if err := client.Retract(context.Background(), "42"); err != nil {
			t.Errorf("status %d: expected tolerated, got %v", status, err)
		}
		srv.Close()
	}
}

func TestRetractFailsOnServerError(t *testing.T) {
	t.Parallel()

	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := client.Retract(context.Background(), "42"); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestAnnounceResult(t *testing.T) {
	t.Parallel()

	calls := 0
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]string{"id": "7"})
	}))
	defer srv.Close()

	if err := client.AnnounceResult(context.Background(), "results"); err != nil {
		t.Fatalf("AnnounceResult: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 send, got %d", calls)
	}
}
