package console

import (
	"math"
	"strconv"
	"strings"

	"github.com/wolfman30/opd-console/internal/opd"
)

// FormatTime converts a 24h "HH:MM" or "HH:MM:SS" string to 12h form,
// e.g. "13:30" -> "1:30 PM". Empty input yields empty output; input without
// a parseable hour is returned unchanged.
func FormatTime(s string) string {
	if s == "" {
		return ""
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return s
	}
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hour < 0 {
		return s
	}
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	hour12 := hour % 12
	if hour12 == 0 {
		hour12 = 12
	}
	return strconv.Itoa(hour12) + ":" + parts[1] + " " + suffix
}

// TimeRange renders "start - end" in 12h form.
func TimeRange(start, end string) string {
	return FormatTime(start) + " - " + FormatTime(end)
}

// FilledCount counts tokens that occupy capacity: ACTIVE or without a status.
func FilledCount(tokens []opd.Token) int {
	n := 0
	for _, t := range tokens {
		if t.Counts() {
			n++
		}
	}
	return n
}

// FillPercent is filled/capacity as a percentage, capped at 100.
// A slot without capacity reads as full once anyone is in it.
func FillPercent(filled, capacity int) float64 {
	if capacity <= 0 {
		if filled > 0 {
			return 100
		}
		return 0
	}
	return math.Min(float64(filled)/float64(capacity)*100, 100)
}

// ShortID keeps the first eight characters of an id.
func ShortID(id string) string {
	runes := []rune(id)
	if len(runes) <= 8 {
		return id
	}
	return string(runes[:8])
}
