package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ndanchak/vyriy-income-expense-bot/internal/auth"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/jobs"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/ledger"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/syncer"
)

// OpsHandler is the read-mostly dashboard surface: what was recorded,
// what is scheduled, and how far behind the mirror is.
type OpsHandler struct {
	Ledger     *ledger.Service
	Jobs       *jobs.Repo
	Reconciler *syncer.Reconciler

	JWT          *auth.JWT
	PasswordHash string
}

type loginReq struct {
	Password string `json:"password"`
}

func (h *OpsHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if h.PasswordHash == "" || !auth.CheckPassword(h.PasswordHash, req.Password) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.JWT.Sign()
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"token": token})
}

type transactionDTO struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Date         time.Time  `json:"date"`
	Amount       string     `json:"amount"`
	Properties   []string   `json:"properties"`
	Platform     string     `json:"platform,omitempty"`
	Counterparty string     `json:"counterparty,omitempty"`
	Category     string     `json:"category,omitempty"`
	CheckinDate  *time.Time `json:"checkin_date,omitempty"`
	CheckoutDate *time.Time `json:"checkout_date,omitempty"`
	Skipped      []string   `json:"skipped_fields,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	SheetsSynced bool       `json:"sheets_synced"`
	SyncAttempts int        `json:"sync_attempts"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (h *OpsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	typ := strings.TrimSpace(r.URL.Query().Get("type"))

	var synced *bool
	switch strings.ToLower(r.URL.Query().Get("synced")) {
	case "true":
		v := true
		synced = &v
	case "false":
		v := false
		synced = &v
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	rows, err := h.Ledger.List(r.Context(), typ, synced, limit)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	out := make([]transactionDTO, 0, len(rows))
	for _, tx := range rows {
		out = append(out, transactionDTO{
			ID:           tx.ID,
			Type:         tx.Type,
			Date:         tx.Date,
			Amount:       tx.Amount,
			Properties:   tx.Properties,
			Platform:     tx.Platform,
			Counterparty: tx.Counterparty,
			Category:     tx.Category,
			CheckinDate:  tx.CheckinDate,
			CheckoutDate: tx.CheckoutDate,
			Skipped:      tx.SkippedFields,
			CancelledAt:  tx.CancelledAt,
			SheetsSynced: tx.SheetsSynced,
			SyncAttempts: tx.SyncAttempts,
			CreatedAt:    tx.CreatedAt,
		})
	}
	writeJSON(w, out)
}

// CancelBooking skips the pending touch points of a booking; sent ones
// stay sent.
func (h *OpsHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	skipped, err := h.Ledger.CancelBooking(r.Context(), id)
	if err == ledger.ErrNotFound {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"skipped_jobs": skipped})
}

type jobDTO struct {
	ID         uint64     `json:"id"`
	Type       string     `json:"type"`
	SubjectRef string     `json:"subject_ref"`
	RunAt      time.Time  `json:"run_at"`
	Status     string     `json:"status"`
	Attempts   int        `json:"attempts"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	LastError  *string    `json:"last_error,omitempty"`
}

func (h *OpsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	subject := strings.TrimSpace(r.URL.Query().Get("subject"))

	rows, err := h.Jobs.List(r.Context(), status, subject, 200)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	out := make([]jobDTO, 0, len(rows))
	for _, j := range rows {
		out = append(out, jobDTO{
			ID:         j.ID,
			Type:       j.Type,
			SubjectRef: j.SubjectRef,
			RunAt:      j.RunAt,
			Status:     j.Status,
			Attempts:   j.Attempts,
			SentAt:     j.SentAt,
			LastError:  j.LastError,
		})
	}
	writeJSON(w, out)
}

func (h *OpsHandler) SyncBacklog(w http.ResponseWriter, r *http.Request) {
	n, err := h.Reconciler.Backlog(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"unsynced": n})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
