package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientStatusSendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "unauthorized"})
			return
		}
		_ = json.NewEncoder(w).Encode(DaemonStatus{Running: true, PID: 42, Pairing: PairingStatus{State: "awaiting_first"}})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "secret")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.PID != 42 || status.Pairing.State != "awaiting_first" {
		t.Fatalf("unexpected status %+v", status)
	}

	anonymous, _ := NewClient(srv.URL, "")
	if _, err := anonymous.Status(context.Background()); err == nil {
		t.Fatal("expected unauthorized error")
	}
}

func TestClientOutcomesPassesLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(OutcomeListResponse{Outcomes: []Outcome{{ID: 9, Result: "match"}}})
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, "")
	outcomes, err := client.Outcomes(context.Background(), 5)
	if err != nil {
		t.Fatalf("Outcomes: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].ID != 9 {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
}

func TestClientUnavailable(t *testing.T) {
	client, err := NewClient("", "")
	if err != nil || client != nil {
		t.Fatalf("empty bind should yield nil client, got %v %v", client, err)
	}
	if _, err := client.Status(context.Background()); !errors.Is(err, ErrAPIUnavailable) {
		t.Fatalf("expected ErrAPIUnavailable, got %v", err)
	}

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().String()
	srv.Close()
	closed, _ := NewClient(addr, "")
	_, err = closed.Status(context.Background())
	if !IsAPIUnavailable(err) {
		t.Fatalf("expected connection error to be classified unavailable, got %v", err)
	}
}
