package middleware

import (
	"math"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

const rateLimitedResponse = "too many actions, slow down"

// RateLimit allows burst requests per client IP in every window of
// burst/rate seconds, which averages out to rate requests per second.
// Rejected requests get 429 with httprate's Retry-After headers.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	if burst < 1 {
		burst = 1
	}
	return httprate.Limit(burst, rateWindow(rate, burst),
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, rateLimitedResponse, http.StatusTooManyRequests)
		}),
	)
}

func rateWindow(rate float64, burst int) time.Duration {
	if rate <= 0 || math.IsInf(rate, 0) || math.IsNaN(rate) {
		return time.Second
	}
	window := time.Duration(float64(burst) / rate * float64(time.Second))
	if window < time.Millisecond {
		return time.Millisecond
	}
	return window
}
