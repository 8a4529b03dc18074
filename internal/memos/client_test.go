package memos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSearchBuildsDigest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/memories/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer mpg-test" {
			t.Errorf("Authorization = %q", got)
		}
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.UserID != "user_alice_1234" || req.Query != "gravity" {
			t.Errorf("request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"memory_detail_list": []map[string]any{
					{"key": "topic", "value": "studies physics", "relativity": 0.8},
				},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "mpg-test"}, nil, nil)
	digest := c.Search(context.Background(), "user_alice_1234", "conv_default", "gravity")
	want := "Relevant memories:\n- topic: studies physics"
	if digest != want {
		t.Fatalf("Search() = %q, want %q", digest, want)
	}
}

func TestClientSearchDegradesToEmptyDigest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, nil, nil)
	if digest := c.Search(context.Background(), "ns", "conv", "q"); digest != "" {
		t.Fatalf("Search() on server error = %q, want empty", digest)
	}

	unreachable := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1"}, nil, nil)
	if digest := unreachable.Search(context.Background(), "ns", "conv", "q"); digest != "" {
		t.Fatalf("Search() on transport error = %q, want empty", digest)
	}
}

func TestClientSearchToleratesAbsentFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, nil, nil)
	if digest := c.Search(context.Background(), "ns", "conv", "q"); digest != "" {
		t.Fatalf("Search() on absent lists = %q, want empty", digest)
	}
}

func TestClientWrite(t *testing.T) {
	var got writeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/memories/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, nil, nil)
	msgs := []Message{
		{Role: "user", Content: "What is gravity?"},
		{Role: "assistant", Content: "Gravity is a force."},
	}
	if err := c.Write(context.Background(), "ns", "conv", msgs); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(got.Messages) != 2 || got.Messages[1].Content != "Gravity is a force." {
		t.Fatalf("server saw %+v", got.Messages)
	}
}

func TestClientWriteNoMessagesIsNoop(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1"}, nil, nil)
	if err := c.Write(context.Background(), "ns", "conv", nil); err != nil {
		t.Fatalf("Write(empty) error = %v", err)
	}
}
