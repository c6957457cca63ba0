package console

import (
	"context"

	"github.com/wolfman30/opd-console/internal/opd"
)

// SlotsPanel is the rendered slot area for one doctor.
type SlotsPanel struct {
	DoctorID string     `json:"doctorId"`
	Loaded   bool       `json:"loaded"`
	Error    string     `json:"error,omitempty"`
	Cards    []SlotCard `json:"cards"`
}

// Empty reports a successful load that returned no slots.
func (p *SlotsPanel) Empty() bool {
	return p != nil && p.Loaded && p.Error == "" && len(p.Cards) == 0
}

// SlotCard is one slot as drawn on the page.
type SlotCard struct {
	ID          string     `json:"id"`
	ShortID     string     `json:"shortId"`
	Date        string     `json:"date"`
	TimeRange   string     `json:"timeRange"`
	Filled      int        `json:"filled"`
	Capacity    int        `json:"capacity"`
	FillPercent float64    `json:"fillPercent"`
	Tokens      []TokenRow `json:"tokens"`

	DelayMinutes int `json:"-"`
}

// TokenRow is one booking inside a slot card.
type TokenRow struct {
	ID          string `json:"id"`
	PatientName string `json:"patientName"`
	Source      string `json:"source"`
	Status      string `json:"status"`
	// NoShow rows are drawn faded, struck through and greyscaled.
	NoShow      bool   `json:"noShow"`
	ToggleLabel string `json:"toggleLabel"`
	ToggleClass string `json:"toggleClass"`
}

func buildSlotsPanel(doctorID string, slots []opd.Slot, delayMinutes int) *SlotsPanel {
	panel := &SlotsPanel{DoctorID: doctorID, Loaded: true, Cards: make([]SlotCard, 0, len(slots))}
	for _, slot := range slots {
		card := buildSlotCard(slot)
		card.DelayMinutes = delayMinutes
		panel.Cards = append(panel.Cards, card)
	}
	return panel
}

func buildSlotCard(slot opd.Slot) SlotCard {
	filled := FilledCount(slot.Tokens)
	card := SlotCard{
		ID:          slot.ID,
		ShortID:     ShortID(slot.ID),
		Date:        slot.Date,
		TimeRange:   TimeRange(slot.StartTime, slot.EndTime),
		Filled:      filled,
		Capacity:    slot.MaxCapacity,
		FillPercent: FillPercent(filled, slot.MaxCapacity),
		Tokens:      make([]TokenRow, 0, len(slot.Tokens)),
	}
	for _, t := range slot.Tokens {
		card.Tokens = append(card.Tokens, buildTokenRow(t))
	}
	return card
}

func buildTokenRow(t opd.Token) TokenRow {
	status := t.Status
	if status == "" {
		status = opd.TokenActive
	}
	row := TokenRow{
		ID:          t.ID,
		PatientName: t.PatientName,
		Source:      string(t.Source),
		Status:      string(status),
		ToggleLabel: "🚫",
		ToggleClass: "btn-danger",
	}
	if status == opd.TokenNoShow {
		row.NoShow = true
		row.ToggleLabel = "Undo"
		row.ToggleClass = "btn-warning"
	}
	return row
}

// View is everything the page template needs.
type View struct {
	SessionID    string      `json:"-"`
	Fields       Fields      `json:"fields"`
	Alert        string      `json:"alert,omitempty"`
	Slots        *SlotsPanel `json:"slots,omitempty"`
	Log          []LogEntry  `json:"log"`
	Sources      []string    `json:"sources"`
	DelayMinutes int         `json:"delayMinutes"`
}

// View assembles the page model for a session after its actions were saved.
func (c *Console) View(ctx context.Context, s *Session) (*View, error) {
	entries, err := c.store.List(ctx, s.ID, c.logLimit)
	if err != nil {
		return nil, err
	}
	sources := make([]string, 0, len(opd.Sources()))
	for _, src := range opd.Sources() {
		sources = append(sources, string(src))
	}
	return &View{
		SessionID:    s.ID,
		Fields:       s.Fields,
		Alert:        s.Alert,
		Slots:        s.Slots,
		Log:          entries,
		Sources:      sources,
		DelayMinutes: c.delayMinutes,
	}, nil
}
