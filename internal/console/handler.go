package console

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/opd-console/internal/opd"
	"github.com/wolfman30/opd-console/pkg/logging"
)

// SessionCookie names the cookie carrying the console session id.
const SessionCookie = "opd_console_session"

// Pinger checks that the booking backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandlerConfig tunes the HTTP surface.
type HandlerConfig struct {
	SessionTTL    time.Duration
	SecureCookies bool
	Backend       Pinger
}

// Handler serves the console page and its form actions.
type Handler struct {
	console *Console
	logger  *logging.Logger
	cfg     HandlerConfig
}

// NewHandler creates the console HTTP handler.
func NewHandler(c *Console, logger *logging.Logger, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return &Handler{console: c, logger: logger, cfg: cfg}
}

// Routes mounts the page, the JSON state and the form actions. Middleware in
// actionMiddleware wraps only the /actions routes.
func (h *Handler) Routes(actionMiddleware ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Index)
	r.Get("/api/state", h.State)
	r.Route("/actions", func(actions chi.Router) {
		actions.Use(actionMiddleware...)
		actions.Post("/doctors", h.OnboardDoctor)
		actions.Post("/slots", h.CreateSlot)
		actions.Post("/bookings", h.BookToken)
		actions.Post("/view", h.ViewSlots)
		actions.Post("/slots/{slotID}/delay", h.DelaySlot)
		actions.Post("/slots/{slotID}/delete", h.DeleteSlot)
		actions.Post("/tokens/{tokenID}/cancel", h.CancelToken)
		actions.Post("/tokens/{tokenID}/noshow", h.MarkNoShow)
		actions.Post("/log/clear", h.ClearLog)
	})
	return r
}

// Index renders the console. ?doctor=<id> selects the doctor whose slots are shown.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, s *Session) {
		if doctor := strings.TrimSpace(r.URL.Query().Get("doctor")); doctor != "" {
			s.Fields.ViewDoctorID = doctor
		}
		h.console.LoadSlots(ctx, s)
	})
}

// State returns the same model Index renders, as JSON.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := h.open(w, r)
	if !ok {
		return
	}
	h.console.LoadSlots(ctx, s)
	view, ok := h.finish(ctx, w, s)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// OnboardDoctor handles the doctor form.
func (h *Handler) OnboardDoctor(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, s *Session) {
		h.console.OnboardDoctor(ctx, s, formValue(r, "name"), formValue(r, "specialization"))
	})
}

// CreateSlot handles the slot form.
func (h *Handler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, s *Session) {
		_ = h.console.CreateSlot(ctx, s, opd.CreateSlotRequest{
			DoctorID:  formValue(r, "doctor_id"),
			Date:      formValue(r, "date"),
			StartTime: formValue(r, "start_time"),
			EndTime:   formValue(r, "end_time"),
			Capacity:  parseCapacity(formValue(r, "capacity")),
		})
	})
}

// BookToken handles the booking form.
func (h *Handler) BookToken(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, s *Session) {
		_ = h.console.BookToken(ctx, s, opd.BookingRequest{
			DoctorID:    formValue(r, "doctor_id"),
			Date:        formValue(r, "date"),
			PatientName: formValue(r, "patient_name"),
			Source:      opd.TokenSource(formValue(r, "source")),
		})
	})
}

// ViewSlots handles the "load slots" form.
func (h *Handler) ViewSlots(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, s *Session) {
		s.Fields.ViewDoctorID = formValue(r, "doctor_id")
		h.console.LoadSlots(ctx, s)
	})
}

// DelaySlot pushes a slot back by the configured delay.
func (h *Handler) DelaySlot(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, s *Session) {
		h.console.DelaySlot(ctx, s, chi.URLParam(r, "slotID"))
	})
}

// DeleteSlot removes a slot; the form carries its time range for the log.
func (h *Handler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, s *Session) {
		h.console.DeleteSlot(ctx, s, chi.URLParam(r, "slotID"), formValue(r, "time_range"))
	})
}

// CancelToken cancels a booked token.
func (h *Handler) CancelToken(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, s *Session) {
		h.console.CancelToken(ctx, s, chi.URLParam(r, "tokenID"))
	})
}

// MarkNoShow toggles a token's no-show flag.
func (h *Handler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, s *Session) {
		h.console.MarkNoShow(ctx, s, chi.URLParam(r, "tokenID"))
	})
}

// ClearLog empties the activity log.
func (h *Handler) ClearLog(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, s *Session) {
		if err := h.console.ClearLog(ctx, s); err != nil {
			h.logger.Error("clear log failed", "session_id", s.ID, "error", err)
		}
	})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the booking backend answers.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Backend == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if err := h.cfg.Backend.Ping(r.Context()); err != nil {
		h.logger.Warn("backend not reachable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, s *Session)) {
	ctx := r.Context()
	s, ok := h.open(w, r)
	if !ok {
		return
	}
	action(ctx, s)
	view, ok := h.finish(ctx, w, s)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := Render(w, view); err != nil {
		h.logger.Error("render console failed", "session_id", s.ID, "error", err)
		http.Error(w, "failed to render console", http.StatusInternalServerError)
	}
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return nil, false
		}
	}
	sessionID := h.sessionID(w, r)
	s, err := h.console.Open(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("open console session failed", "session_id", sessionID, "error", err)
		http.Error(w, "console session unavailable", http.StatusInternalServerError)
		return nil, false
	}
	return s, true
}

func (h *Handler) finish(ctx context.Context, w http.ResponseWriter, s *Session) (*View, bool) {
	if err := h.console.Save(ctx, s); err != nil {
		h.logger.Error("save console session failed", "session_id", s.ID, "error", err)
		http.Error(w, "console session unavailable", http.StatusInternalServerError)
		return nil, false
	}
	view, err := h.console.View(ctx, s)
	if err != nil {
		h.logger.Error("build console view failed", "session_id", s.ID, "error", err)
		http.Error(w, "console session unavailable", http.StatusInternalServerError)
		return nil, false
	}
	return view, true
}

// sessionID returns the caller's session id, issuing a new cookie when the
// request has none or carries a malformed one.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}

// parseCapacity reads the leading integer of the capacity box; anything
// unparseable is sent as 0 and left to the backend to reject.
func parseCapacity(raw string) int {
	end := 0
	for end < len(raw) && (raw[end] >= '0' && raw[end] <= '9' || end == 0 && raw[end] == '-') {
		end++
	}
	n, err := strconv.Atoi(raw[:end])
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
