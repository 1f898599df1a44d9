package clinic

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// Handler provides admin endpoints for accounts, FAQ and document requests.
type Handler struct {
	dir       *Directory
	stats     *StatsHandler
	dashboard *DashboardHandler
	logger    *logging.Logger
}

// NewHandler creates a clinic admin handler.
func NewHandler(dir *Directory, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{dir: dir, logger: logger}
}

// WithInsights adds the stats and dashboard endpoints to Routes. Either may be nil.
func (h *Handler) WithInsights(stats *StatsHandler, dashboard *DashboardHandler) *Handler {
	h.stats = stats
	h.dashboard = dashboard
	return h
}

// Routes returns the account admin routes, mounted under /admin/accounts.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.CreateAccount)
	r.Get("/{accountID}", h.GetAccount)
	if h.stats != nil {
		r.Get("/{accountID}/stats", h.stats.GetStats)
	}
	if h.dashboard != nil {
		r.Get("/{accountID}/dashboard", h.dashboard.GetDashboard)
	}
	r.Get("/{accountID}/faq", h.ListFAQ)
	r.Put("/{accountID}/faq/{intentKey}", h.PutFAQ)
	r.Get("/{accountID}/requests", h.ListRequests)
	r.Post("/{accountID}/requests/{requestID}/complete", h.CompleteRequest)
	return r
}

// CreateAccountRequest is the body for POST /admin/accounts.
type CreateAccountRequest struct {
	Account      Account       `json:"account"`
	Owner        *Professional `json:"owner,omitempty"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.dir.CreateAccount(r.Context(), &req.Account, req.Owner, req.Subscription); err != nil {
		h.logger.Error("failed to create account", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, req.Account)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	acc, err := h.dir.Store().Account(r.Context(), accountID)
	if errors.Is(err, ErrAccountNotFound) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load account", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *Handler) ListFAQ(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	items, err := h.dir.Store().ListFAQ(r.Context(), accountID)
	if err != nil {
		h.logger.Error("failed to list faq", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type faqRequest struct {
	Category         string `json:"category"`
	ExampleQuestions string `json:"example_questions"`
	Answer           string `json:"answer"`
}

func (h *Handler) PutFAQ(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	intentKey := strings.TrimSpace(chi.URLParam(r, "intentKey"))
	var body faqRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if intentKey == "" || strings.TrimSpace(body.Answer) == "" {
		writeError(w, http.StatusBadRequest, "intent key and answer required")
		return
	}
	item := &FAQItem{
		AccountID:        accountID,
		Category:         body.Category,
		IntentKey:        intentKey,
		ExampleQuestions: body.ExampleQuestions,
		Answer:           body.Answer,
	}
	if err := h.dir.Store().UpsertFAQ(r.Context(), item); err != nil {
		h.logger.Error("failed to save faq", "account_id", accountID, "intent_key", intentKey, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save faq")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	status := RequestStatus(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
	if status != "" && status != RequestPending && status != RequestCompleted {
		writeError(w, http.StatusBadRequest, "status must be PENDENTE or CONCLUIDO")
		return
	}
	reqs, err := h.dir.Store().ListDocumentRequests(r.Context(), accountID, status)
	if err != nil {
		h.logger.Error("failed to list document requests", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": reqs})
}

func (h *Handler) CompleteRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	err := h.dir.Store().CompleteDocumentRequest(r.Context(), requestID, time.Now().UTC())
	if errors.Is(err, ErrRequestNotFound) {
		writeError(w, http.StatusNotFound, "request not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to complete document request", "request_id", requestID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(RequestCompleted)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
