package geocode

import (
	"time"

	"golang.org/x/time/rate"
)

// newLimiter allows one lookup per interval. A non-positive interval disables
// the limit.
func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
