package console

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Fields are the console inputs that survive between actions: the three
// doctor-id boxes that onboarding fills in together.
type Fields struct {
	SlotDoctorID string `json:"slotDoctorId"`
	BookDoctorID string `json:"bookDoctorId"`
	ViewDoctorID string `json:"viewDoctorId"`
}

// LinkDoctor points every doctor-id field at id.
func (f *Fields) LinkDoctor(id string) {
	f.SlotDoctorID = id
	f.BookDoctorID = id
	f.ViewDoctorID = id
}

// Log levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// LogEntry is one line of the console's activity log.
type LogEntry struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// Store keeps per-session console state.
type Store interface {
	Fields(ctx context.Context, sessionID string) (Fields, error)
	SetFields(ctx context.Context, sessionID string, fields Fields) error
	Append(ctx context.Context, sessionID string, entry LogEntry) error
	// List returns up to limit entries, newest first. limit <= 0 means all.
	List(ctx context.Context, sessionID string, limit int64) ([]LogEntry, error)
	Clear(ctx context.Context, sessionID string) error
}

var errSessionRequired = errors.New("console: session id required")

func normalizeEntry(entry LogEntry) LogEntry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Level == "" {
		entry.Level = LevelInfo
	}
	return entry
}

// MemoryStore is an in-process Store used when Redis is not configured.
// Sessions untouched for longer than ttl are dropped.
type MemoryStore struct {
	mu         sync.Mutex
	sessions   map[string]*memorySession
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	lastSweep  time.Time
}

type memorySession struct {
	fields Fields
	logs   []LogEntry // oldest first
	seen   time.Time
}

// NewMemoryStore keeps at most maxEntries log lines per session (0 = unbounded)
// and forgets sessions idle for ttl (0 = never).
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]*memorySession),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Fields returns the session's linked doctor ids.
func (s *MemoryStore) Fields(_ context.Context, sessionID string) (Fields, error) {
	if sessionID == "" {
		return Fields{}, errSessionRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.lookup(sessionID, false); sess != nil {
		return sess.fields, nil
	}
	return Fields{}, nil
}

// SetFields replaces the session's linked doctor ids.
func (s *MemoryStore) SetFields(_ context.Context, sessionID string, fields Fields) error {
	if sessionID == "" {
		return errSessionRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookup(sessionID, true).fields = fields
	return nil
}

// Append adds a log line, dropping the oldest beyond maxEntries.
func (s *MemoryStore) Append(_ context.Context, sessionID string, entry LogEntry) error {
	if sessionID == "" {
		return errSessionRequired
	}
	entry = normalizeEntry(entry)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.lookup(sessionID, true)
	entries := append(sess.logs, entry)
	if s.maxEntries > 0 && len(entries) > s.maxEntries {
		entries = append([]LogEntry(nil), entries[len(entries)-s.maxEntries:]...)
	}
	sess.logs = entries
	return nil
}

// List returns up to limit log lines, newest first.
func (s *MemoryStore) List(_ context.Context, sessionID string, limit int64) ([]LogEntry, error) {
	if sessionID == "" {
		return nil, errSessionRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.lookup(sessionID, false)
	if sess == nil {
		return []LogEntry{}, nil
	}
	entries := sess.logs
	n := int64(len(entries))
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]LogEntry, 0, n)
	for i := len(entries) - 1; i >= 0 && int64(len(out)) < n; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

// Clear empties the session's log and keeps its fields.
func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return errSessionRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.lookup(sessionID, false); sess != nil {
		sess.logs = nil
	}
	return nil
}

// lookup returns the live session, creating it when create is set. Caller holds mu.
func (s *MemoryStore) lookup(sessionID string, create bool) *memorySession {
	now := s.now()
	s.sweep(now)

	sess, ok := s.sessions[sessionID]
	if ok && s.expired(sess, now) {
		delete(s.sessions, sessionID)
		sess, ok = nil, false
	}
	if !ok {
		if !create {
			return nil
		}
		sess = &memorySession{}
		s.sessions[sessionID] = sess
	}
	sess.seen = now
	return sess
}

func (s *MemoryStore) expired(sess *memorySession, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.seen) > s.ttl
}

// sweep drops expired sessions at most once per ttl. Caller holds mu.
func (s *MemoryStore) sweep(now time.Time) {
	if s.ttl <= 0 || now.Sub(s.lastSweep) < s.ttl {
		return
	}
	s.lastSweep = now
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
		}
	}
}

func (s *MemoryStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
