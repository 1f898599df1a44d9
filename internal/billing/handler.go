package billing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// Handler exposes balances and payment settlement to staff.
type Handler struct {
	biller *Biller
	logger *logging.Logger
}

func NewHandler(biller *Biller, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{biller: biller, logger: logger}
}

// Routes is mounted under /admin/billing.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/patients/{patientID}/balance", h.GetBalance)
	r.Post("/transactions/{transactionID}/pay", h.MarkPaid)
	return r
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	bal, err := h.biller.Outstanding(r.Context(), patientID)
	if err != nil {
		h.logger.Error("failed to load balance", "patient_id", patientID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "transactionID")
	var body struct {
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	method, err := ParseMethod(body.Method)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown payment method")
		return
	}
	err = h.biller.MarkPaid(r.Context(), id, method)
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "pending transaction not found")
	case err != nil:
		h.logger.Error("failed to mark transaction paid", "transaction_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": string(StatusPaid)})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
