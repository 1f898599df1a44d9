package handlers

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/atma-clinic-ai/internal/scheduling"
	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

type tokenConfirmer interface {
	ConfirmByToken(ctx context.Context, token string) (*scheduling.Appointment, error)
}

var confirmPage = template.Must(template.New("confirm").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;background:#f4f7f6;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0}
main{background:#fff;border-radius:12px;padding:2.5rem;max-width:28rem;text-align:center;box-shadow:0 4px 16px rgba(0,0,0,.08)}
h1{margin-top:0}
.ok h1{color:#2e7d32}
.fail h1{color:#c62828}
</style>
</head>
<body>
<main class="{{.Kind}}">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</main>
</body>
</html>
`))

type confirmView struct {
	Title   string
	Message string
	Kind    string
}

// AppointmentConfirmHandler serves the one-tap confirmation link sent with reminders.
type AppointmentConfirmHandler struct {
	statuses tokenConfirmer
	logger   *logging.Logger
}

func NewAppointmentConfirmHandler(statuses tokenConfirmer, logger *logging.Logger) *AppointmentConfirmHandler {
	if statuses == nil {
		panic("handlers: status service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentConfirmHandler{statuses: statuses, logger: logger}
}

// Confirm serves GET /appointments/confirm/{token}.
func (h *AppointmentConfirmHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	appt, err := h.statuses.ConfirmByToken(r.Context(), token)
	switch {
	case err == nil:
		h.logger.Info("appointment confirmed by link", "appointment_id", appt.ID, "org_id", appt.AccountID)
		renderConfirm(w, http.StatusOK, confirmView{
			Title:   "✅ Presença Confirmada!",
			Message: "Obrigado! Sua presença na consulta foi confirmada com sucesso. Até breve!",
			Kind:    "ok",
		})
	case errors.Is(err, scheduling.ErrNotFound):
		renderConfirm(w, http.StatusNotFound, confirmView{
			Title:   "Link inválido",
			Message: "Não encontramos esta consulta. O link pode ter expirado.",
			Kind:    "fail",
		})
	case errors.Is(err, scheduling.ErrInvalidTransition):
		renderConfirm(w, http.StatusConflict, confirmView{
			Title:   "Não foi possível confirmar",
			Message: "Esta consulta não pode mais ser confirmada. Entre em contato com a clínica.",
			Kind:    "fail",
		})
	default:
		h.logger.Error("failed to confirm appointment by link", "error", err)
		renderConfirm(w, http.StatusInternalServerError, confirmView{
			Title:   "Algo deu errado",
			Message: "Tente novamente em alguns minutos.",
			Kind:    "fail",
		})
	}
}

func renderConfirm(w http.ResponseWriter, status int, view confirmView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = confirmPage.Execute(w, view)
}
