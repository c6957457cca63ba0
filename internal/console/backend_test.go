package console

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/wolfman30/opd-console/internal/opd"
	"github.com/wolfman30/opd-console/pkg/logging"
)

// fakeBackend is an in-memory stand-in for the booking API. It keeps just
// enough state to observe the console's calls; it allocates bookings to the
// first slot on the date and never bumps anyone.
type fakeBackend struct {
	mu       sync.Mutex
	nextID   int
	doctors  map[string]opd.Doctor
	slots    []*opd.Slot
	calls    map[string]int
	failures map[string]failure
}

type failure struct {
	status int
	body   string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		doctors:  make(map[string]opd.Doctor),
		calls:    make(map[string]int),
		failures: make(map[string]failure),
	}
}

func (b *fakeBackend) fail(op string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = failure{status: status, body: body}
}

func (b *fakeBackend) count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *fakeBackend) id(prefix string) string {
	b.nextID++
	return fmt.Sprintf("%s-%04d-aaaa-bbbb", prefix, b.nextID)
}

func (b *fakeBackend) addSlot(doctorID string, slot opd.Slot) *opd.Slot {
	b.mu.Lock()
	defer b.mu.Unlock()
	if slot.ID == "" {
		slot.ID = b.id("slot")
	}
	slot.DoctorID = doctorID
	b.slots = append(b.slots, &slot)
	return &slot
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/doctors", b.wrap("create_doctor", func(w http.ResponseWriter, r *http.Request) {
		doctor := opd.Doctor{ID: b.id("doc"), Name: r.URL.Query().Get("name"), Specialization: r.URL.Query().Get("specialization")}
		b.doctors[doctor.ID] = doctor
		writeJSON(w, http.StatusOK, doctor)
	}))
	mux.HandleFunc("POST /api/slots", b.wrap("create_slot", func(w http.ResponseWriter, r *http.Request) {
		var req opd.CreateSlotRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		slot := &opd.Slot{ID: b.id("slot"), DoctorID: req.DoctorID, Date: req.Date, StartTime: req.StartTime + ":00",
			EndTime: req.EndTime + ":00", MaxCapacity: req.Capacity, Tokens: []opd.Token{}}
		b.slots = append(b.slots, slot)
		writeJSON(w, http.StatusOK, slot)
	}))
	mux.HandleFunc("POST /api/bookings", b.wrap("book_token", func(w http.ResponseWriter, r *http.Request) {
		var req opd.BookingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, slot := range b.slots {
			if slot.DoctorID == req.DoctorID && slot.Date == req.Date {
				token := opd.Token{ID: b.id("tok"), PatientName: req.PatientName, Source: req.Source, Status: opd.TokenActive}
				slot.Tokens = append(slot.Tokens, token)
				writeJSON(w, http.StatusOK, token)
				return
			}
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No slots available for this doctor on " + req.Date})
	}))
	mux.HandleFunc("GET /api/doctors/{id}/slots", b.wrap("list_slots", func(w http.ResponseWriter, r *http.Request) {
		out := []opd.Slot{}
		for _, slot := range b.slots {
			if slot.DoctorID == r.PathValue("id") {
				out = append(out, *slot)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}))
	mux.HandleFunc("POST /api/slots/{id}/delay", b.wrap("delay_slot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	mux.HandleFunc("DELETE /api/slots/{id}", b.wrap("delete_slot", func(w http.ResponseWriter, r *http.Request) {
		kept := b.slots[:0]
		for _, slot := range b.slots {
			if slot.ID != r.PathValue("id") {
				kept = append(kept, slot)
			}
		}
		b.slots = kept
		w.WriteHeader(http.StatusOK)
	}))
	mux.HandleFunc("POST /api/tokens/{id}/noshow", b.wrap("toggle_no_show", func(w http.ResponseWriter, r *http.Request) {
		b.updateToken(r.PathValue("id"), func(t *opd.Token) {
			if t.Status == opd.TokenNoShow {
				t.Status = opd.TokenActive
			} else {
				t.Status = opd.TokenNoShow
			}
		})
		w.WriteHeader(http.StatusOK)
	}))
	mux.HandleFunc("POST /api/tokens/{id}/cancel", b.wrap("cancel_token", func(w http.ResponseWriter, r *http.Request) {
		b.updateToken(r.PathValue("id"), func(t *opd.Token) { t.Status = opd.TokenCancelled })
		w.WriteHeader(http.StatusOK)
	}))
	return mux
}

func (b *fakeBackend) wrap(op string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.calls[op]++
		if f, ok := b.failures[op]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}
		fn(w, r)
	}
}

func (b *fakeBackend) updateToken(id string, fn func(*opd.Token)) {
	for _, slot := range b.slots {
		for i := range slot.Tokens {
			if slot.Tokens[i].ID == id {
				fn(&slot.Tokens[i])
			}
		}
	}
}

type recordedAction struct{ action, outcome string }

type actionRecorder struct {
	mu      sync.Mutex
	actions []recordedAction
}

func (r *actionRecorder) ObserveAction(action, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, recordedAction{action, outcome})
}

// newTestConsole wires a Console to a fake backend over real HTTP.
func newTestConsole(t *testing.T) (*Console, *fakeBackend, *MemoryStore) {
	t.Helper()
	backend := newFakeBackend()
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)
	logger := logging.New("error")
	client := opd.NewClient(server.URL+"/api", opd.WithLogger(logger))
	store := NewMemoryStore(50, time.Hour)
	return New(client, store, logger), backend, store
}
