package appMiddleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit rejects clients that exceed requestsPerMinute with a 429.
// Rate limiting is one of only two conditions that produce a genuine error
// response; everything else is absorbed into a conversational reply.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return httprate.LimitByRealIP(requestsPerMinute, time.Minute)
}
