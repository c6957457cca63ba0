// Package opd provides a client for the clinic OPD booking backend.
package opd

// TokenStatus is the lifecycle state of a booking token.
type TokenStatus string

const (
	TokenActive    TokenStatus = "ACTIVE"
	TokenNoShow    TokenStatus = "NO_SHOW"
	TokenCancelled TokenStatus = "CANCELLED"
)

// TokenSource is the channel a booking came from. The backend ranks sources;
// the console passes them through untouched.
type TokenSource string

const (
	SourceEmergency   TokenSource = "EMERGENCY"
	SourcePaidPremium TokenSource = "PAID_PREMIUM"
	SourceFollowUp    TokenSource = "FOLLOW_UP"
	SourceOnline      TokenSource = "ONLINE"
	SourceWalkIn      TokenSource = "WALK_IN"
)

// Sources lists the channels offered in the booking form, highest priority first.
func Sources() []TokenSource {
	return []TokenSource{SourceEmergency, SourcePaidPremium, SourceFollowUp, SourceOnline, SourceWalkIn}
}

// Doctor is a clinician registered with the backend.
type Doctor struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}

// Token is a booking placed against a slot.
type Token struct {
	ID             string      `json:"id"`
	PatientName    string      `json:"patientName"`
	Source         TokenSource `json:"source"`
	Status         TokenStatus `json:"status,omitempty"`
	AssignedSlotID string      `json:"assignedSlotId,omitempty"`
	CreatedAt      string      `json:"createdAt,omitempty"`
}

// Counts reports whether the token occupies capacity. A missing status is
// treated as ACTIVE.
func (t Token) Counts() bool {
	return t.Status == "" || t.Status == TokenActive
}

// Slot is a doctor's bookable time window.
type Slot struct {
	ID          string  `json:"id"`
	DoctorID    string  `json:"doctorId"`
	Date        string  `json:"date"`      // YYYY-MM-DD
	StartTime   string  `json:"startTime"` // HH:MM[:SS]
	EndTime     string  `json:"endTime"`
	MaxCapacity int     `json:"maxCapacity"`
	Tokens      []Token `json:"tokens"`
}

// CreateSlotRequest is the body of POST /slots.
type CreateSlotRequest struct {
	DoctorID  string `json:"doctorId"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Capacity  int    `json:"capacity"`
}

// BookingRequest is the body of POST /bookings.
type BookingRequest struct {
	DoctorID    string      `json:"doctorId"`
	Date        string      `json:"date"`
	PatientName string      `json:"patientName"`
	Source      TokenSource `json:"source"`
}
