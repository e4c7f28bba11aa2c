package nftscout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSaveCollectionReturnsID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/collections" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "c-1"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	id, err := client.SaveCollection(context.Background(), map[string]any{"name": "EON MUN"})
	if err != nil {
		t.Fatalf("save collection: %v", err)
	}
	if id != "c-1" {
		t.Fatalf("expected id c-1, got %q", id)
	}
}

func TestSaveCollectionSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"VALIDATION_FAILED","message":"incomplete"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	_, err := client.SaveCollection(context.Background(), map[string]any{})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "VALIDATION_FAILED" || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestStartSessionDeliversEventsInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/collections/sessions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		events := []Event{
			{SessionID: "s1", Kind: KindPreviewCandidate, Payload: json.RawMessage(`{"name":"A"}`)},
			{SessionID: "s1", Kind: KindSavedID, Payload: json.RawMessage(`{"collection_id":"c-9"}`)},
			{SessionID: "s1", Kind: KindTerminal, Payload: json.RawMessage(`{"status":"completed"}`)},
		}
		for _, event := range events {
			data, _ := json.Marshal(event)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, data)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	var kinds []string
	err := client.StartSession(context.Background(), SessionRequest{Message: "find"}, func(event Event) {
		kinds = append(kinds, event.Kind)
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	want := []string{KindPreviewCandidate, KindSavedID, KindTerminal}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}
}

func TestStartSessionSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Fatalf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	client.SetAccessToken("token")
	if err := client.StartSession(context.Background(), SessionRequest{Message: "find"}, func(Event) {}); err != nil {
		t.Fatalf("start session: %v", err)
	}
}
