package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/armavita/meta-ads-mcp/internal/logger"
)

const (
	// ProactiveRate throttles outgoing Graph calls (requests per second).
	ProactiveRate = 2.0

	// UsageThreshold is the x-app-usage percentage above which calls are
	// paused for UsageCooldown.
	UsageThreshold = 90

	// UsageCooldown is how long to hold off once the threshold is crossed.
	UsageCooldown = 60 * time.Second

	headerAppUsage       = "x-app-usage"
	headerBusinessUsage  = "x-business-use-case-usage"
	headerAdAccountUsage = "x-ad-account-usage"
)

// appUsage is Meta's x-app-usage header payload: percentages of the rolling
// hourly quota consumed.
type appUsage struct {
	CallCount    int `json:"call_count"`
	TotalCPUTime int `json:"total_cputime"`
	TotalTime    int `json:"total_time"`
}

// UsageTracker combines a proactive token bucket with a reactive hold-off
// driven by Meta's usage headers. There is no retry logic here: a request
// rejected by Meta is surfaced, the tracker only spaces future calls.
type UsageTracker struct {
	mu        sync.Mutex
	bucket    *rate.Limiter
	holdUntil time.Time
}

// NewUsageTracker creates a tracker with the default proactive rate.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		bucket: rate.NewLimiter(rate.Limit(ProactiveRate), 1),
	}
}

// Wait blocks until a request may be issued.
func (u *UsageTracker) Wait(ctx context.Context) error {
	if err := u.bucket.Wait(ctx); err != nil {
		return err
	}

	u.mu.Lock()
	holdUntil := u.holdUntil
	u.mu.Unlock()

	if now := time.Now(); now.Before(holdUntil) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(holdUntil.Sub(now)):
		}
	}
	return nil
}

// Observe records rate usage headers from a Graph response. Usage headers
// are logged for diagnostics; crossing the app-usage threshold pauses
// subsequent calls for one cooldown window.
func (u *UsageTracker) Observe(headers http.Header, endpoint string) {
	logged := map[string]any{}
	for _, name := range []string{headerAppUsage, headerBusinessUsage, headerAdAccountUsage} {
		if value := headers.Get(name); value != "" {
			logged[name] = value
		}
	}
	if len(logged) > 0 {
		logger.WithFields(logged).Infof("meta_rate_usage endpoint=%s", endpoint)
	}

	raw := headers.Get(headerAppUsage)
	if raw == "" {
		return
	}
	var usage appUsage
	if err := json.Unmarshal([]byte(raw), &usage); err != nil {
		return
	}
	if usage.CallCount >= UsageThreshold || usage.TotalCPUTime >= UsageThreshold || usage.TotalTime >= UsageThreshold {
		u.mu.Lock()
		u.holdUntil = time.Now().Add(UsageCooldown)
		u.mu.Unlock()
		logger.Warnf("app usage at %d%%, pausing graph calls for %s", usage.CallCount, UsageCooldown)
	}
}
