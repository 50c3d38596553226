package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type transaction struct {
	ID          string `json:"id"`
	TxRef       string `json:"tx_ref"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Email       string `json:"email"`
	Status      string `json:"status"`
	CallbackURL string `json:"-"`
}

// transactionStore mimics the hosted checkout API: initialize, verify, and a
// test-only endpoint that settles a transaction and fires the callback.
type transactionStore struct {
	mu        sync.Mutex
	byRef     map[string]*transaction
	byID      map[string]*transaction
	publicURL string
	client    *http.Client
}

func newTransactionStore(publicURL string) *transactionStore {
	if publicURL == "" {
		publicURL = "http://localhost:8081"
	}
	return &transactionStore{
		byRef:     map[string]*transaction{},
		byID:      map[string]*transaction{},
		publicURL: strings.TrimRight(publicURL, "/"),
		client:    &http.Client{},
	}
}

type initializeBody struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	TxRef       string `json:"tx_ref"`
	Email       string `json:"email"`
	CallbackURL string `json:"callback_url"`
}

func (s *transactionStore) initialize(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid API Key", "status": "failed"})
		return
	}

	var body initializeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TxRef == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "tx_ref is required", "status": "failed"})
		return
	}

	s.mu.Lock()
	if _, exists := s.byRef[body.TxRef]; exists {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Transaction reference has been used before", "status": "failed"})
		return
	}
	tx := &transaction{
		ID:          "mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		TxRef:       body.TxRef,
		Amount:      body.Amount,
		Currency:    body.Currency,
		Email:       body.Email,
		Status:      "pending",
		CallbackURL: body.CallbackURL,
	}
	s.byRef[tx.TxRef] = tx
	s.byID[tx.ID] = tx
	s.mu.Unlock()

	slog.Info("transaction initialized", "tx_ref", tx.TxRef, "id", tx.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Hosted Link",
		"status":  "success",
		"data": map[string]any{
			"checkout_url": s.publicURL + "/checkout/" + tx.TxRef,
			"id":           tx.ID,
		},
	})
}

func (s *transactionStore) verify(w http.ResponseWriter, r *http.Request) {
	tx := s.lookup(r.PathValue("reference"))
	if tx == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Invalid transaction or Transaction not found", "status": "failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Payment details",
		"status":  "success",
		"data":    tx,
	})
}

func (s *transactionStore) setStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "status is required"})
		return
	}

	s.mu.Lock()
	stored := s.byRef[r.PathValue("reference")]
	if stored == nil {
		stored = s.byID[r.PathValue("reference")]
	}
	var tx transaction
	if stored != nil {
		stored.Status = body.Status
		tx = *stored
	}
	s.mu.Unlock()

	if stored == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
		return
	}

	if tx.CallbackURL != "" {
		go s.fireCallback(tx)
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *transactionStore) fireCallback(tx transaction) {
	payload, _ := json.Marshal(map[string]string{
		"tx_ref": tx.TxRef,
		"id":     tx.ID,
		"status": tx.Status,
	})
	resp, err := s.client.Post(tx.CallbackURL, "application/json", strings.NewReader(string(payload)))
	if err != nil {
		slog.Warn("callback delivery failed", "tx_ref", tx.TxRef, "error", err)
		return
	}
	resp.Body.Close()
	slog.Info("callback delivered", "tx_ref", tx.TxRef, "status", resp.StatusCode)
}

func (s *transactionStore) lookup(ref string) *transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.byRef[ref]
	if !ok {
		tx, ok = s.byID[ref]
	}
	if !ok {
		return nil
	}
	snapshot := *tx
	return &snapshot
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
