package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// ProfessionalLocator resolves the time zone a professional works in.
type ProfessionalLocator interface {
	ProfessionalLocation(ctx context.Context, professionalID string) (*time.Location, error)
}

// HandlerConfig wires the staff scheduling endpoints.
type HandlerConfig struct {
	Calendar     CalendarStore
	Appointments AppointmentStore
	Booking      *BookingCoordinator
	Statuses     *StatusService
	Finder       *SlotFinder
	Locator      ProfessionalLocator
	Logger       *logging.Logger
}

// Handler exposes working hours, exceptions and appointments to staff.
type Handler struct {
	calendar     CalendarStore
	appointments AppointmentStore
	booking      *BookingCoordinator
	statuses     *StatusService
	finder       *SlotFinder
	locator      ProfessionalLocator
	logger       *logging.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Calendar == nil || cfg.Appointments == nil {
		panic("scheduling: handler stores required")
	}
	if cfg.Booking == nil || cfg.Statuses == nil {
		panic("scheduling: handler services required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Handler{
		calendar:     cfg.Calendar,
		appointments: cfg.Appointments,
		booking:      cfg.Booking,
		statuses:     cfg.Statuses,
		finder:       cfg.Finder,
		locator:      cfg.Locator,
		logger:       cfg.Logger,
	}
}

// Routes returns the staff scheduling routes, mounted under /admin/scheduling.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/professionals/{professionalID}", func(r chi.Router) {
		r.Put("/working-hours", h.PutWorkingHours)
		r.Get("/working-hours", h.GetWorkingHours)
		r.Put("/exceptions", h.PutException)
		r.Delete("/exceptions/{date}", h.DeleteException)
		r.Get("/appointments", h.ListAppointments)
		if h.finder != nil && h.locator != nil {
			r.Get("/slots", h.FindSlots)
		}
	})
	r.Post("/appointments", h.CreateAppointment)
	r.Get("/appointments/{appointmentID}", h.GetAppointment)
	r.Patch("/appointments/{appointmentID}/status", h.UpdateStatus)
	return r
}

type hoursBody struct {
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type hoursView struct {
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

func (h *Handler) PutWorkingHours(w http.ResponseWriter, r *http.Request) {
	professionalID := chi.URLParam(r, "professionalID")
	var body struct {
		Hours []hoursBody `json:"hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	hours := make([]WorkingHours, 0, len(body.Hours))
	for _, b := range body.Hours {
		start, err := ParseClock(b.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		end, err := ParseClock(b.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		hours = append(hours, WorkingHours{ProfessionalID: professionalID, Weekday: b.Weekday, Start: start, End: end, Active: true})
	}
	err := h.calendar.ReplaceWorkingHours(r.Context(), professionalID, hours)
	if errors.Is(err, ErrInvalidSchedule) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to replace working hours", "professional_id", professionalID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hours": viewHours(hours)})
}

func (h *Handler) GetWorkingHours(w http.ResponseWriter, r *http.Request) {
	professionalID := chi.URLParam(r, "professionalID")
	hours, err := h.calendar.ActiveWorkingHours(r.Context(), professionalID)
	if err != nil {
		h.logger.Error("failed to load working hours", "professional_id", professionalID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hours": viewHours(hours)})
}

func viewHours(hours []WorkingHours) []hoursView {
	out := make([]hoursView, 0, len(hours))
	for _, wh := range hours {
		out = append(out, hoursView{Weekday: wh.Weekday, Start: wh.Start.String(), End: wh.End.String()})
	}
	return out
}

type exceptionBody struct {
	Date        string `json:"date"`
	AllDay      bool   `json:"all_day"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Description string `json:"description,omitempty"`
}

func (h *Handler) PutException(w http.ResponseWriter, r *http.Request) {
	professionalID := chi.URLParam(r, "professionalID")
	var body exceptionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	date, err := time.Parse(time.DateOnly, strings.TrimSpace(body.Date))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	exc := &ScheduleException{ProfessionalID: professionalID, Date: date, AllDay: body.AllDay, Description: body.Description}
	if !body.AllDay {
		start, err := ParseClock(body.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		end, err := ParseClock(body.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		exc.Start, exc.End = &start, &end
	}
	if err := exc.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.calendar.UpsertException(r.Context(), exc); err != nil {
		h.logger.Error("failed to save schedule exception", "professional_id", professionalID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) DeleteException(w http.ResponseWriter, r *http.Request) {
	professionalID := chi.URLParam(r, "professionalID")
	date, err := time.Parse(time.DateOnly, chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if err := h.calendar.DeleteException(r.Context(), professionalID, date); err != nil {
		h.logger.Error("failed to delete schedule exception", "professional_id", professionalID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	professionalID := chi.URLParam(r, "professionalID")
	from, to, err := parseRange(r, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	appts, err := h.appointments.ListByProfessional(r.Context(), professionalID, from, to)
	if err != nil {
		h.logger.Error("failed to list appointments", "professional_id", professionalID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if appts == nil {
		appts = []Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

// parseRange reads RFC 3339 from/to, defaulting to the next seven days.
func parseRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	from, to := now, now.AddDate(0, 0, 7)
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be RFC 3339")
		}
		from = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be RFC 3339")
		}
		to = t
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, errors.New("from must be before to")
	}
	return from, to, nil
}

func (h *Handler) FindSlots(w http.ResponseWriter, r *http.Request) {
	professionalID := chi.URLParam(r, "professionalID")
	loc, err := h.locator.ProfessionalLocation(r.Context(), professionalID)
	if err != nil {
		writeError(w, http.StatusNotFound, "professional not found")
		return
	}
	prefs, err := parsePreferences(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	slots, err := h.finder.FindAvailable(r.Context(), Professional{ID: professionalID, Location: loc}, prefs, DefaultHorizonDays, intQuery(r, "limit", DefaultMaxResults))
	if err != nil {
		h.logger.Error("slot search failed", "professional_id", professionalID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if slots == nil {
		slots = []time.Time{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

func parsePreferences(r *http.Request) (*Preferences, error) {
	q := r.URL.Query()
	prefs := &Preferences{ExactTime: q.Get("exact_time")}
	if raw := q.Get("weekday"); raw != "" {
		wd, err := strconv.Atoi(raw)
		if err != nil || wd < 0 || wd > 6 {
			return nil, errors.New("weekday must be 0 (Monday) to 6 (Sunday)")
		}
		prefs.Weekday = &wd
	}
	if raw := q.Get("period"); raw != "" {
		p := Period(strings.ToLower(raw))
		if !p.Valid() {
			return nil, fmt.Errorf("unknown period %q", raw)
		}
		prefs.Period = p
	}
	return prefs, nil
}

func intQuery(r *http.Request, key string, fallback int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

type createAppointmentBody struct {
	AccountID      string    `json:"account_id"`
	PatientID      string    `json:"patient_id"`
	ProfessionalID string    `json:"professional_id"`
	ServiceID      *string   `json:"service_id,omitempty"`
	Title          string    `json:"title"`
	StartAt        time.Time `json:"start_at"`
}

// CreateAppointment books a slot on behalf of staff. Staff bookings start scheduled.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var body createAppointmentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	appt, err := h.booking.Book(r.Context(), BookingRequest{
		AccountID:      body.AccountID,
		PatientID:      body.PatientID,
		ProfessionalID: body.ProfessionalID,
		ServiceID:      body.ServiceID,
		Title:          body.Title,
		StartAt:        body.StartAt,
		Source:         SourceStaff,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, appt)
	case errors.Is(err, ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot no longer available")
	case errors.Is(err, ErrInvalidBooking):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("staff booking failed", "professional_id", body.ProfessionalID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "appointmentID")
	appt, err := h.appointments.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load appointment", "appointment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "appointmentID")
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	next, ok := ParseStatus(body.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	appt, err := h.statuses.Transition(r.Context(), id, next)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, appt)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("failed to update appointment status", "appointment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
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
