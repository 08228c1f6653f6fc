package models

import "time"

// EndpointClass groups routes that share a limit.
type EndpointClass string

const (
	// ClassAuth covers credential endpoints such as /auth/signin.
	ClassAuth EndpointClass = "auth"
	// ClassReport covers corroborating reports on /profiles/report.
	ClassReport EndpointClass = "report"
)

// Limit allows RequestsPerWindow requests per Window. A zero RequestsPerWindow disables the limit.
type Limit struct {
	RequestsPerWindow int
	Window            time.Duration
}

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// NewIPKey builds the bucket key for ip under class.
func NewIPKey(class EndpointClass, ip string) string {
	return "ip:" + string(class) + ":" + SanitizeKeySegment(ip)
}

// RetryAfterSeconds rounds up so clients never retry early.
func RetryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return int((d + time.Second - 1) / time.Second)
}
