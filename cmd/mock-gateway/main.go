// mock-gateway stands in for the external payment processor during local
// development. It accepts deposit and withdrawal notifications and calls the
// ledger API back after a short delay, the way the real gateway delivers
// asynchronous confirmations.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rupeevault/wallet-ledger/internal/auth"
	"github.com/rupeevault/wallet-ledger/internal/logging"
)

type gateway struct {
	apiBaseURL string
	token      string
	delay      time.Duration
	client     *http.Client
}

type notifyRequest struct {
	TransactionID string `json:"transaction_id"`
	Outcome       string `json:"outcome"`
}

func main() {
	logging.Init("mock-gateway", "info", os.Getenv("APP_ENV"))

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	token, err := auth.GenerateToken(uuid.New(), true, secret, 24*time.Hour)
	if err != nil {
		slog.Error("failed to mint callback token", "error", err)
		os.Exit(1)
	}

	g := &gateway{
		apiBaseURL: envOr("API_BASE_URL", "http://localhost:8080"),
		token:      token,
		delay:      2 * time.Second,
		client:     &http.Client{Timeout: 10 * time.Second},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	})
	mux.HandleFunc("POST /gateway/deposits", g.handleDeposit)
	mux.HandleFunc("POST /gateway/withdrawals", g.handleWithdrawal)

	addr := envOr("ADDR", ":8081")
	slog.Info("mock gateway started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func (g *gateway) handleDeposit(w http.ResponseWriter, r *http.Request) {
	req, ok := decode(w, r)
	if !ok {
		return
	}

	go func() {
		time.Sleep(g.delay)
		url := fmt.Sprintf("%s/api/v1/deposits/%s/confirm", g.apiBaseURL, req.TransactionID)
		g.callback(url, nil)
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (g *gateway) handleWithdrawal(w http.ResponseWriter, r *http.Request) {
	req, ok := decode(w, r)
	if !ok {
		return
	}
	outcome := req.Outcome
	if outcome == "" {
		outcome = "completed"
	}

	go func() {
		time.Sleep(g.delay)
		url := fmt.Sprintf("%s/api/v1/withdrawals/%s/settle", g.apiBaseURL, req.TransactionID)
		g.callback(url, map[string]string{"outcome": outcome})
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (g *gateway) callback(url string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("callback encode failed", "url", url, "error", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		slog.Error("callback build failed", "url", url, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Idempotency-Key", uuid.New().String())

	resp, err := g.client.Do(req)
	if err != nil {
		slog.Error("callback failed", "url", url, "error", err)
		return
	}
	defer resp.Body.Close()
	slog.Info("callback delivered", "url", url, "status", resp.StatusCode)
}

func decode(w http.ResponseWriter, r *http.Request) (*notifyRequest, bool) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return nil, false
	}
	if _, err := uuid.Parse(req.TransactionID); err != nil {
		http.Error(w, "invalid transaction_id", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
