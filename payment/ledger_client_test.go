package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"perma-store/common"
)

func TestLedgerClientGetBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/alice/balance" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]int64{"balance": 4200})
	}))
	defer srv.Close()

	client, err := NewLedgerClient(srv.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	balance, err := client.GetBalance(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 4200 {
		t.Errorf("balance: got %d, want 4200", balance)
	}

	if _, err := client.GetBalance(context.Background(), "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLedgerClientDeduct(t *testing.T) {
	var gotAmount int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Amount int64  `json:"amount"`
			Memo   string `json:"memo"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		gotAmount = req.Amount
		if req.Amount > 100 {
			w.WriteHeader(http.StatusPaymentRequired)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"txRef": "tx-123"})
	}))
	defer srv.Close()

	client, err := NewLedgerClient(srv.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	txRef, err := client.Deduct(context.Background(), "alice", 60, "renewal:f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if txRef != "tx-123" {
		t.Errorf("txRef: got %s, want tx-123", txRef)
	}
	if gotAmount != 60 {
		t.Errorf("posted amount: got %d, want 60", gotAmount)
	}

	_, err = client.Deduct(context.Background(), "alice", 500, "renewal:f1")
	if !errors.Is(err, common.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestLedgerClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewLedgerClient(srv.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.GetBalance(context.Background(), "alice"); !errors.Is(err, common.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable on 500, got %v", err)
	}
	if _, err := client.Deduct(context.Background(), "alice", 1, "m"); !errors.Is(err, common.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable on 500, got %v", err)
	}
}
