package algorand

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

const (
	zeroAddress  = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAY5HFKQ"
	validAddress = "AAAQEAYEAUDAOCAJBIFQYDIOB4IBCEQTCQKRMFYYDENBWHA5DYP7MUPJQE"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"zero address", zeroAddress, false},
		{"sequential key", validAddress, false},
		{"bad checksum", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAY5HFKA", true},
		{"too short", "AAAA", true},
		{"lowercase", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaay5hfkq", true},
		{"not base32", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAY5HFK1", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateAddress(%q) err = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestAppStateAndPoolPrice(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Algo-API-Token")
		if r.URL.Path != "/v2/applications/42" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"id":42,"params":{"global-state":[
			{"key":%q,"value":{"type":2,"uint":3000000}},
			{"key":%q,"value":{"type":2,"uint":1000000}},
			{"key":%q,"value":{"type":1,"bytes":%q}}
		]}}`, b64("yes_pool"), b64("no_pool"), b64("question"), b64("Will it rain?"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret")
	state, err := c.AppState(context.Background(), 42)
	if err != nil {
		t.Fatalf("AppState: %v", err)
	}
	if gotToken != "secret" {
		t.Errorf("token header = %q", gotToken)
	}
	if q := string(state["question"].Bytes); q != "Will it rain?" {
		t.Errorf("question = %q", q)
	}

	p, err := PoolPrice(state, "yes_pool", "no_pool")
	if err != nil {
		t.Fatalf("PoolPrice: %v", err)
	}
	if !p.Yes.Equal(decimal.NewFromInt(3)) || !p.No.Equal(decimal.NewFromInt(1)) {
		t.Errorf("pools = %s / %s", p.Yes, p.No)
	}
	if !p.YesPrice.Equal(decimal.RequireFromString("0.75")) {
		t.Errorf("YesPrice = %s, want 0.75", p.YesPrice)
	}

	if _, err := PoolPrice(state, "yes_pool", "question"); err == nil {
		t.Error("expected error for bytes-typed pool key")
	}
	if _, err := c.AppState(context.Background(), 7); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing app: err = %v, want ErrNotFound", err)
	}
}

func TestPoolPriceEmpty(t *testing.T) {
	state := AppState{"y": {IsUint: true}, "n": {IsUint: true}}
	p, err := PoolPrice(state, "y", "n")
	if err != nil {
		t.Fatal(err)
	}
	if !p.YesPrice.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("YesPrice = %s, want 0.5", p.YesPrice)
	}
}

func TestPendingTx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/transactions/pending/CONFIRMED":
			fmt.Fprint(w, `{"confirmed-round": 1234, "pool-error": ""}`)
		case "/v2/transactions/pending/REJECTED":
			fmt.Fprint(w, `{"confirmed-round": 0, "pool-error": "overspend"}`)
		default:
			http.Error(w, `{"message":"txn does not exist"}`, http.StatusNotFound)
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "")

	p, err := c.PendingTx(context.Background(), "CONFIRMED")
	if err != nil || p.ConfirmedRound != 1234 {
		t.Errorf("confirmed = %+v, %v", p, err)
	}
	p, err = c.PendingTx(context.Background(), "REJECTED")
	if err != nil || p.PoolError != "overspend" {
		t.Errorf("rejected = %+v, %v", p, err)
	}
	if _, err := c.PendingTx(context.Background(), "UNKNOWN"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown: err = %v, want ErrNotFound", err)
	}
}
