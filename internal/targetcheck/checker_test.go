package targetcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckReachableTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := New().Check(context.Background(), srv.URL); err != nil {
		t.Fatalf("expected reachable, got %v", err)
	}
}

func TestCheckErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if err := New().Check(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404 target")
	}
}

func TestCheckConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	if err := New().Check(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for closed server")
	}
}
