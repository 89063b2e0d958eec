package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"craps/internal/access"
	"craps/internal/bets"
	"craps/internal/game"
	"craps/internal/settlement"
	"craps/internal/vault"
)

func newTestServer(t *testing.T) *FiberServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	acl := access.FromLists([]string{"op"}, []string{"boss"}, "settler")
	funds := vault.NewMemoryLedger("vault")
	v := vault.New(funds, vault.Config{Account: "vault", FeeRecipient: "treasury", FeeBps: 1000}, acl, nil, nil)
	funds.Credit("lp", 100_000)
	if _, err := v.Deposit(ctx, "lp", 100_000); err != nil {
		t.Fatal(err)
	}
	funds.Credit("alice", 10_000)

	table := game.NewStateMachine(game.DefaultHistoryLimit)
	ledger := bets.NewLedger(table, v, acl, bets.Limits{Min: 1, Max: 1000, OddsMultiple: 3}, nil, nil)
	oracle := game.NewProvablyFairOracle(0, nil)
	hub := game.NewHub(nil)
	mgr := game.NewManager(game.Deps{
		Table:   table,
		Ledger:  ledger,
		Settler: settlement.NewEngine(ledger, "settler", nil, nil),
		Vault:   v,
		RNG:     oracle,
		ACL:     acl,
		Hub:     hub,
	})
	oracle.SetFulfiller(mgr)
	go hub.Run(ctx)
	mgr.Start(ctx)
	t.Cleanup(mgr.Stop)

	return New(Deps{
		Manager: mgr,
		Hub:     hub,
		Assets:  funds,
		ACL:     acl,
		Oracle:  oracle,
		Faucet: FaucetFunc(func(ctx context.Context, account string, amount int64) (int64, error) {
			funds.Credit(account, amount)
			return funds.BalanceOf(ctx, account)
		}),
	})
}

func call(t *testing.T, s *FiberServer, method, path, who string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if who != "" {
		req.Header.Set(CallerHeader, who)
	}

	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("could not perform request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("could not read response body: %v", err)
	}
	var out map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("could not unmarshal %q: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)

	status, body := call(t, s, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected status OK; got %v", status)
	}
	gameHealth, ok := body["game"].(map[string]any)
	if !ok || gameHealth["status"] != "running" {
		t.Errorf("expected game status to be 'running'; got %v", body["game"])
	}
	if _, ok := body["database"]; ok {
		t.Error("database health reported without a database")
	}
}

func TestRoutes_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		method   string
		path     string
		caller   string
		body     any
		want     int
		wantCode string
	}{
		{"roll without caller", http.MethodPost, "/api/v1/table/roll", "", nil, http.StatusForbidden, "UNAUTHORIZED"},
		{"roll by player", http.MethodPost, "/api/v1/table/roll", "alice", nil, http.StatusForbidden, "UNAUTHORIZED"},
		{"roll with no series", http.MethodPost, "/api/v1/table/roll", "op", nil, http.StatusConflict, "NO_ACTIVE_SERIES"},
		{"abort by operator", http.MethodPost, "/api/v1/table/abort", "op", nil, http.StatusForbidden, "UNAUTHORIZED"},
		{"retry with nothing parked", http.MethodPost, "/api/v1/table/retry", "op", nil, http.StatusConflict, "UNKNOWN_REQUEST"},
		{"unknown bet type", http.MethodGet, "/api/v1/table/bet-types/lucky_13", "", nil, http.StatusConflict, "INVALID_BET_TYPE"},
		{"bet with no series", http.MethodPost, "/api/v1/bets", "alice", map[string]any{"type": "pass", "amount": 10}, http.StatusConflict, "NO_ACTIVE_SERIES"},
		{"bad bet body", http.MethodPost, "/api/v1/bets", "alice", map[string]any{"type": "nope"}, http.StatusBadRequest, ""},
		{"missing shooter", http.MethodPost, "/api/v1/table/series", "", map[string]any{}, http.StatusBadRequest, ""},
		{"faucet by player", http.MethodPost, "/api/v1/players/alice/balance", "alice", map[string]any{"amount": 5}, http.StatusForbidden, "UNAUTHORIZED"},
		{"zero deposit", http.MethodPost, "/api/v1/vault/deposit", "alice", map[string]any{"amount": 0}, http.StatusUnprocessableEntity, "ZERO_AMOUNT"},
		{"unknown preview", http.MethodGet, "/api/v1/vault/preview/borrow?amount=5", "", nil, http.StatusBadRequest, ""},
		{"fee by player", http.MethodPut, "/api/v1/vault/fee", "alice", map[string]any{"bps": 10}, http.StatusForbidden, "UNAUTHORIZED"},
		{"unknown proof", http.MethodGet, "/api/v1/oracle/proofs/nope", "", nil, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, s, tt.method, tt.path, tt.caller, tt.body)
			if status != tt.want {
				t.Fatalf("status = %d, want %d (%v)", status, tt.want, body)
			}
			if tt.wantCode != "" && body["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", body["code"], tt.wantCode)
			}
		})
	}
}

func TestRoutes_SeriesFlow(t *testing.T) {
	s := newTestServer(t)

	status, body := call(t, s, http.MethodPost, "/api/v1/table/series", "", map[string]any{"shooter": "alice"})
	if status != http.StatusCreated {
		t.Fatalf("start series = %d %v", status, body)
	}
	seriesID, _ := body["id"].(string)

	status, body = call(t, s, http.MethodGet, "/api/v1/table/bet-types/pass", "", nil)
	if status != http.StatusOK || body["can_place"] != true || body["category"] != "line" {
		t.Fatalf("bet type check = %d %v", status, body)
	}

	status, body = call(t, s, http.MethodPost, "/api/v1/bets", "alice", map[string]any{"type": "pass", "amount": 100})
	if status != http.StatusCreated {
		t.Fatalf("place bet = %d %v", status, body)
	}
	status, body = call(t, s, http.MethodPost, "/api/v1/bets", "alice", map[string]any{"type": "pass", "amount": 100})
	if status != http.StatusConflict || body["code"] != "DUPLICATE_BET" {
		t.Fatalf("duplicate bet = %d %v", status, body)
	}

	_, body = call(t, s, http.MethodGet, "/api/v1/players/alice", "", nil)
	if open, _ := body["bets"].([]any); len(open) != 1 {
		t.Fatalf("player bets = %v", body["bets"])
	}

	status, body = call(t, s, http.MethodPost, "/api/v1/table/roll", "op", nil)
	if status != http.StatusAccepted {
		t.Fatalf("request roll = %d %v", status, body)
	}
	requestID, _ := body["request_id"].(string)

	deadline := time.Now().Add(2 * time.Second)
	for s.gameManager.State().RollPending {
		if time.Now().After(deadline) {
			t.Fatal("roll never applied")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, body = call(t, s, http.MethodGet, "/api/v1/table/series/"+seriesID+"/rolls", "", nil)
	if rolls, _ := body["rolls"].([]any); len(rolls) != 1 {
		t.Errorf("roll history = %v", body["rolls"])
	}

	status, body = call(t, s, http.MethodGet, "/api/v1/oracle/proofs/"+requestID, "", nil)
	if status != http.StatusOK || body["request_id"] != requestID {
		t.Errorf("proof = %d %v", status, body)
	}
}

func TestRoutes_VaultAndFaucet(t *testing.T) {
	s := newTestServer(t)

	status, body := call(t, s, http.MethodPost, "/api/v1/players/bob/balance", "boss", map[string]any{"amount": 5_000})
	if status != http.StatusOK || body["balance"] != float64(5_000) {
		t.Fatalf("faucet = %d %v", status, body)
	}

	_, body = call(t, s, http.MethodGet, "/api/v1/vault/preview/deposit?amount=1000", "", nil)
	if body["result"] != float64(1_000) {
		t.Fatalf("preview deposit = %v, want 1000 at a 1:1 price", body)
	}

	status, body = call(t, s, http.MethodPost, "/api/v1/vault/deposit", "bob", map[string]any{"amount": 1_000})
	if status != http.StatusOK || body["shares_minted"] != float64(1_000) {
		t.Fatalf("deposit = %d %v", status, body)
	}

	_, body = call(t, s, http.MethodGet, "/api/v1/vault/holders/bob", "", nil)
	if body["shares"] != float64(1_000) || body["max_redeem"] != float64(1_000) {
		t.Fatalf("holder = %v", body)
	}

	status, body = call(t, s, http.MethodPost, "/api/v1/vault/redeem", "bob", map[string]any{"amount": 400})
	if status != http.StatusOK || body["assets_returned"] != float64(400) {
		t.Fatalf("redeem = %d %v", status, body)
	}

	_, body = call(t, s, http.MethodGet, "/api/v1/players/bob/balance", "", nil)
	if body["balance"] != float64(4_400) {
		t.Errorf("balance after redeem = %v, want 4400", body["balance"])
	}

	status, body = call(t, s, http.MethodPut, "/api/v1/limits", "boss", map[string]any{"min": 5, "max": 500, "odds_multiple": 2})
	if status != http.StatusOK || body["max"] != float64(500) {
		t.Errorf("set limits = %d %v", status, body)
	}
}
