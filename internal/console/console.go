// Package console implements the operator-facing OPD booking console: form
// actions that call the booking backend and the page that renders the result.
package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/opd-console/internal/opd"
	"github.com/wolfman30/opd-console/pkg/logging"
)

// ErrDateRequired is returned when a slot or booking is submitted without a date.
var ErrDateRequired = errors.New("console: date is required")

const dateRequiredAlert = "Please select a date"

// Backend is the subset of the booking API the console drives.
type Backend interface {
	CreateDoctor(ctx context.Context, name, specialization string) (*opd.Doctor, error)
	CreateSlot(ctx context.Context, req opd.CreateSlotRequest) (*opd.Slot, error)
	BookToken(ctx context.Context, req opd.BookingRequest) (*opd.Token, error)
	ListSlots(ctx context.Context, doctorID string) ([]opd.Slot, error)
	DelaySlot(ctx context.Context, slotID string, minutes int) error
	CancelToken(ctx context.Context, tokenID string) error
	ToggleNoShow(ctx context.Context, tokenID string) error
	DeleteSlot(ctx context.Context, slotID string) error
}

// ActionObserver counts console actions by outcome.
type ActionObserver interface {
	ObserveAction(action, outcome string)
}

// Session is the console state one action works on: the linked fields, the
// alert to raise, and the slot panel if the action refreshed it.
type Session struct {
	ID     string
	Fields Fields
	Alert  string
	Slots  *SlotsPanel

	logs []LogEntry
}

// Console runs operator actions against the backend.
type Console struct {
	backend      Backend
	store        Store
	observer     ActionObserver
	logger       *logging.Logger
	delayMinutes int
	logLimit     int64
}

// Option configures a Console.
type Option func(*Console)

// WithObserver records action metrics.
func WithObserver(observer ActionObserver) Option {
	return func(c *Console) {
		c.observer = observer
	}
}

// WithDelayMinutes sets how far the delay button pushes a slot.
func WithDelayMinutes(minutes int) Option {
	return func(c *Console) {
		if minutes > 0 {
			c.delayMinutes = minutes
		}
	}
}

// WithLogLimit caps how many log lines a rendered page shows.
func WithLogLimit(limit int) Option {
	return func(c *Console) {
		c.logLimit = int64(limit)
	}
}

// New creates a console. A nil store falls back to an in-memory one.
func New(backend Backend, store Store, logger *logging.Logger, opts ...Option) *Console {
	if logger == nil {
		logger = logging.Default()
	}
	if store == nil {
		store = NewMemoryStore(200, 24*time.Hour)
	}
	c := &Console{
		backend:      backend,
		store:        store,
		logger:       logger,
		delayMinutes: 15,
		logLimit:     200,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DelayMinutes is the shift applied by DelaySlot.
func (c *Console) DelayMinutes() int {
	return c.delayMinutes
}

// Open loads the stored fields for a session.
func (c *Console) Open(ctx context.Context, sessionID string) (*Session, error) {
	fields, err := c.store.Fields(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Session{ID: sessionID, Fields: fields}, nil
}

// Save persists the session's fields and the log lines its actions produced.
func (c *Console) Save(ctx context.Context, s *Session) error {
	for _, entry := range s.logs {
		if err := c.store.Append(ctx, s.ID, entry); err != nil {
			return err
		}
	}
	s.logs = nil
	return c.store.SetFields(ctx, s.ID, s.Fields)
}

// ClearLog empties the session's activity log.
func (c *Console) ClearLog(ctx context.Context, s *Session) error {
	s.logs = nil
	return c.store.Clear(ctx, s.ID)
}

func (s *Session) log(level, format string, args ...any) {
	s.logs = append(s.logs, normalizeEntry(LogEntry{Message: fmt.Sprintf(format, args...), Level: level}))
}

func (c *Console) observe(action, outcome string) {
	if c.observer != nil {
		c.observer.ObserveAction(action, outcome)
	}
}

// OnboardDoctor registers a doctor, links all doctor-id fields to the new id
// and refreshes the slot panel.
func (c *Console) OnboardDoctor(ctx context.Context, s *Session, name, specialization string) {
	doctor, err := c.backend.CreateDoctor(ctx, name, specialization)
	if err != nil {
		msg := opd.MessageOr(err, "Failed to create doctor")
		c.logger.Error("onboard doctor failed", "session_id", s.ID, "error", err)
		s.log(LevelError, "Error creating doctor: %s", msg)
		s.Alert = msg
		c.observe("onboard_doctor", "failed")
		return
	}

	s.log(LevelInfo, "Created Doctor: %s (ID: %s)", doctor.Name, doctor.ID)
	s.Fields.LinkDoctor(doctor.ID)
	c.observe("onboard_doctor", "ok")
	c.LoadSlots(ctx, s)
}

// CreateSlot creates a slot and refreshes on success. Failures raise an alert
// and leave the slot panel untouched.
func (c *Console) CreateSlot(ctx context.Context, s *Session, req opd.CreateSlotRequest) error {
	s.Fields.SlotDoctorID = req.DoctorID
	if strings.TrimSpace(req.Date) == "" {
		s.Alert = dateRequiredAlert
		c.observe("create_slot", "rejected")
		return ErrDateRequired
	}

	slot, err := c.backend.CreateSlot(ctx, req)
	if err != nil {
		msg := opd.MessageOr(err, "Failed to create slot")
		c.logger.Warn("create slot failed", "session_id", s.ID, "doctor_id", req.DoctorID, "error", err)
		s.log(LevelError, "Error: %s", msg)
		s.Alert = "Error: " + msg
		c.observe("create_slot", "failed")
		return err
	}

	s.log(LevelInfo, "Created Slot: %s %s to %s", slot.Date, FormatTime(slot.StartTime), FormatTime(slot.EndTime))
	c.observe("create_slot", "ok")
	c.LoadSlots(ctx, s)
	return nil
}

// BookToken books a patient and refreshes on success.
func (c *Console) BookToken(ctx context.Context, s *Session, req opd.BookingRequest) error {
	s.Fields.BookDoctorID = req.DoctorID
	if strings.TrimSpace(req.Date) == "" {
		s.Alert = dateRequiredAlert
		c.observe("book_token", "rejected")
		return ErrDateRequired
	}

	token, err := c.backend.BookToken(ctx, req)
	if err != nil {
		msg := opd.MessageOr(err, "Booking Failed")
		c.logger.Warn("booking failed", "session_id", s.ID, "doctor_id", req.DoctorID, "source", req.Source, "error", err)
		s.log(LevelError, "❌ Booking Failed: %s", msg)
		s.Alert = "Booking Failed: " + msg
		c.observe("book_token", "failed")
		return err
	}

	s.log(LevelInfo, "✅ Booked: %s (%s)", token.PatientName, token.Source)
	c.observe("book_token", "ok")
	c.LoadSlots(ctx, s)
	return nil
}

// LoadSlots fetches the slots of the view doctor into the session. It does
// nothing when no doctor id is set.
func (c *Console) LoadSlots(ctx context.Context, s *Session) {
	doctorID := strings.TrimSpace(s.Fields.ViewDoctorID)
	if doctorID == "" {
		c.observe("load_slots", "skipped")
		return
	}

	slots, err := c.backend.ListSlots(ctx, doctorID)
	if err != nil {
		msg := opd.MessageOr(err, "Failed to load slots")
		c.logger.Error("load slots failed", "session_id", s.ID, "doctor_id", doctorID, "error", err)
		s.Slots = &SlotsPanel{DoctorID: doctorID, Loaded: true, Error: msg}
		s.Alert = msg
		c.observe("load_slots", "failed")
		return
	}

	s.Slots = buildSlotsPanel(doctorID, slots, c.delayMinutes)
	c.observe("load_slots", "ok")
}

// DelaySlot pushes a slot back by the configured delay. Failures are only logged.
func (c *Console) DelaySlot(ctx context.Context, s *Session, slotID string) {
	c.lifecycle(ctx, s, "delay_slot", func() error {
		return c.backend.DelaySlot(ctx, slotID, c.delayMinutes)
	}, fmt.Sprintf("⚠️ Slot Delayed by %d mins", c.delayMinutes), "Error delaying slot")
}

// CancelToken cancels a booking. Failures are only logged.
func (c *Console) CancelToken(ctx context.Context, s *Session, tokenID string) {
	c.lifecycle(ctx, s, "cancel_token", func() error {
		return c.backend.CancelToken(ctx, tokenID)
	}, "❌ Token Cancelled", "Error cancelling token")
}

// MarkNoShow toggles a token's no-show flag. Failures are only logged.
func (c *Console) MarkNoShow(ctx context.Context, s *Session, tokenID string) {
	c.lifecycle(ctx, s, "toggle_no_show", func() error {
		return c.backend.ToggleNoShow(ctx, tokenID)
	}, "🚫 Toggled No-Show", "Error toggling")
}

// DeleteSlot removes a slot; timeRange only labels the log line.
func (c *Console) DeleteSlot(ctx context.Context, s *Session, slotID, timeRange string) {
	c.lifecycle(ctx, s, "delete_slot", func() error {
		return c.backend.DeleteSlot(ctx, slotID)
	}, "🗑️ Slot Removed: "+timeRange, "Error deleting slot")
}

// lifecycle runs a fire-and-forget action: log the outcome, never alert.
// The slot panel is refreshed whenever the backend answered; a transport
// failure skips the refresh so it cannot escalate into a load alert.
func (c *Console) lifecycle(ctx context.Context, s *Session, action string, call func() error, okLine, errLine string) {
	err := call()
	if err == nil {
		s.log(LevelInfo, "%s", okLine)
		c.observe(action, "ok")
		c.LoadSlots(ctx, s)
		return
	}

	c.logger.Warn("lifecycle action failed", "action", action, "session_id", s.ID, "error", err)
	c.observe(action, "failed")
	var apiErr *opd.APIError
	if !errors.As(err, &apiErr) {
		s.log(LevelError, "%s", errLine)
		return
	}
	if apiErr.Message != "" {
		s.log(LevelError, "%s: %s", errLine, apiErr.Message)
	} else {
		s.log(LevelError, "%s", errLine)
	}
	c.LoadSlots(ctx, s)
}
