package console

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/opd-console/internal/opd"
	"github.com/wolfman30/opd-console/pkg/logging"
)

const testSessionID = "5f0c6a8e-7a4b-4c55-9a2d-1f7e7b0d9c11"

func newTestHandler(t *testing.T) (http.Handler, *fakeBackend) {
	t.Helper()
	c, backend, _ := newTestConsole(t)
	h := NewHandler(c, logging.New("error"), HandlerConfig{})
	return h.Routes(), backend
}

func postForm(t *testing.T, handler http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: testSessionID})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: testSessionID})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIndexIssuesSessionCookie(t *testing.T) {
	handler, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Contains(t, rec.Body.String(), "Enter a doctor ID and load slots.")
	assert.Contains(t, rec.Body.String(), "&gt; Ready.")
}

func TestIndexKeepsValidSession(t *testing.T) {
	handler, _ := newTestHandler(t)
	rec := get(t, handler, "/")
	assert.Empty(t, rec.Result().Cookies())
	assert.Contains(t, rec.Body.String(), testSessionID)
}

func TestOnboardThenRenderSlots(t *testing.T) {
	handler, backend := newTestHandler(t)

	rec := postForm(t, handler, "/actions/doctors", url.Values{"name": {"Dr. Mehta"}, "specialization": {"ENT"}})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Created Doctor: Dr. Mehta")
	assert.Contains(t, body, "No slots created for this Doctor yet.")
	assert.Equal(t, 1, backend.count("list_slots"))

	state := get(t, handler, "/api/state")
	var view View
	require.NoError(t, json.Unmarshal(state.Body.Bytes(), &view))
	assert.NotEmpty(t, view.Fields.ViewDoctorID)
	assert.Equal(t, view.Fields.ViewDoctorID, view.Fields.BookDoctorID)
	assert.Equal(t, view.Fields.ViewDoctorID, view.Fields.SlotDoctorID)
}

func TestCreateSlotRejectionRendersAlertWithoutRefresh(t *testing.T) {
	handler, backend := newTestHandler(t)
	backend.fail("create_slot", http.StatusBadRequest, `{"message":"Slot overlaps"}`)

	rec := postForm(t, handler, "/actions/slots", url.Values{
		"doctor_id": {"doc-1"}, "date": {"2026-10-20"}, "start_time": {"09:00"}, "end_time": {"10:00"}, "capacity": {"4"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `role="alertdialog"`)
	assert.Contains(t, body, "Error: Slot overlaps")
	assert.Zero(t, backend.count("list_slots"))
}

func TestFailedActionOffersReloadForViewedDoctor(t *testing.T) {
	handler, backend := newTestHandler(t)
	backend.addSlot("doc-1", opd.Slot{Date: "2026-10-20", StartTime: "09:00:00", EndTime: "10:00:00", MaxCapacity: 2})
	get(t, handler, "/?doctor=doc-1")
	backend.fail("book_token", http.StatusConflict, `{"message":"Slot full"}`)

	rec := postForm(t, handler, "/actions/bookings", url.Values{
		"doctor_id": {"doc-1"}, "date": {"2026-10-20"}, "patient_name": {"Ravi"}, "source": {"ONLINE"},
	})

	body := rec.Body.String()
	assert.Contains(t, body, "Booking Failed: Slot full")
	assert.Contains(t, body, "Slots for doctor doc-1 were not refreshed.")
	assert.Contains(t, body, `<input type="hidden" name="doctor_id" value="doc-1">`)
	assert.NotContains(t, body, "Enter a doctor ID and load slots.")
	assert.Equal(t, 1, backend.count("list_slots"))
}

func TestCreateSlotMissingDateAlerts(t *testing.T) {
	handler, backend := newTestHandler(t)

	rec := postForm(t, handler, "/actions/slots", url.Values{"doctor_id": {"doc-1"}})

	assert.Contains(t, rec.Body.String(), "Please select a date")
	assert.Zero(t, backend.count("create_slot"))
}

func TestBookingRendersEscapedPatientName(t *testing.T) {
	handler, backend := newTestHandler(t)
	backend.addSlot("doc-1", opd.Slot{Date: "2026-10-20", StartTime: "09:00:00", EndTime: "10:00:00", MaxCapacity: 2})
	get(t, handler, "/?doctor=doc-1")

	rec := postForm(t, handler, "/actions/bookings", url.Values{
		"doctor_id": {"doc-1"}, "date": {"2026-10-20"}, "patient_name": {`<img src=x onerror=alert(1)>`}, "source": {"WALK_IN"},
	})

	body := rec.Body.String()
	assert.NotContains(t, body, `<img src=x`)
	assert.Contains(t, body, "&lt;img src=x onerror=alert(1)&gt;")
	assert.Contains(t, body, "1/2")
	assert.Contains(t, body, "width: 50%")
	assert.Contains(t, body, "status-WALK_IN")
}

func TestNoShowRowRendersFaded(t *testing.T) {
	handler, backend := newTestHandler(t)
	backend.addSlot("doc-1", opd.Slot{Date: "2026-10-20", StartTime: "09:00:00", EndTime: "10:00:00", MaxCapacity: 2,
		Tokens: []opd.Token{{ID: "tok-1", PatientName: "Asha", Source: opd.SourceOnline, Status: opd.TokenActive}}})
	get(t, handler, "/?doctor=doc-1")

	rec := postForm(t, handler, "/actions/tokens/tok-1/noshow", nil)
	assert.Contains(t, rec.Body.String(), `class="token-item no-show"`)
	assert.Contains(t, rec.Body.String(), "Undo")

	rec = postForm(t, handler, "/actions/tokens/tok-1/noshow", nil)
	assert.NotContains(t, rec.Body.String(), `class="token-item no-show"`)
	assert.Contains(t, rec.Body.String(), `class="token-item"`)
	assert.Equal(t, 2, backend.count("toggle_no_show"))
}

func TestDeleteSlotUsesTimeRangeLabel(t *testing.T) {
	handler, backend := newTestHandler(t)
	slot := backend.addSlot("doc-1", opd.Slot{Date: "2026-10-20", StartTime: "09:00:00", EndTime: "10:00:00", MaxCapacity: 2})
	get(t, handler, "/?doctor=doc-1")

	rec := postForm(t, handler, "/actions/slots/"+slot.ID+"/delete", url.Values{"time_range": {"9:00 AM - 10:00 AM"}})

	assert.Contains(t, rec.Body.String(), "Slot Removed: 9:00 AM - 10:00 AM")
	assert.Equal(t, 1, backend.count("delete_slot"))
}

func TestClearLogHandler(t *testing.T) {
	handler, _ := newTestHandler(t)
	postForm(t, handler, "/actions/slots", url.Values{"doctor_id": {"doc-1"}, "date": {"2026-10-20"}})

	rec := postForm(t, handler, "/actions/log/clear", nil)

	assert.Contains(t, rec.Body.String(), "&gt; Ready.")
}

func TestStateJSON(t *testing.T) {
	handler, backend := newTestHandler(t)
	backend.addSlot("doc-1", opd.Slot{Date: "2026-10-20", StartTime: "13:00:00", EndTime: "14:00:00", MaxCapacity: 1})

	rec := get(t, handler, "/api/state?doctor=ignored")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	postForm(t, handler, "/actions/view", url.Values{"doctor_id": {"doc-1"}})
	rec = get(t, handler, "/api/state")
	var view View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.NotNil(t, view.Slots)
	require.Len(t, view.Slots.Cards, 1)
	assert.Equal(t, "1:00 PM - 2:00 PM", view.Slots.Cards[0].TimeRange)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestReady(t *testing.T) {
	c, _, _ := newTestConsole(t)

	ok := NewHandler(c, logging.New("error"), HandlerConfig{Backend: stubPinger{}})
	rec := httptest.NewRecorder()
	ok.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down := NewHandler(c, logging.New("error"), HandlerConfig{Backend: stubPinger{err: errors.New("connection refused")}})
	rec = httptest.NewRecorder()
	down.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestParseCapacity(t *testing.T) {
	tests := map[string]int{"4": 4, "12abc": 12, "": 0, "abc": 0, "-3": -3}
	for in, want := range tests {
		assert.Equal(t, want, parseCapacity(in), in)
	}
}

func TestAnonymousVisitsExpireFromMemoryStore(t *testing.T) {
	c, _, store := newTestConsole(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	handler := NewHandler(c, logging.New("error"), HandlerConfig{SessionTTL: time.Hour}).Routes()

	for i := 0; i < 200; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 200, store.size())

	now = now.Add(2 * time.Hour)
	get(t, handler, "/")
	assert.Equal(t, 1, store.size())
}
