package analyzer

import (
	"errors"
	"fmt"
)

// ErrNoAPIKey is wrapped in an upstream failure when no key is configured.
var ErrNoAPIKey = errors.New("no analyzer api key configured")

// Kind classifies an analyzer failure.
type Kind string

const (
	KindRateLimited       Kind = "rate_limited"
	KindQuotaExhausted    Kind = "quota_exhausted"
	KindUpstreamFailure   Kind = "upstream_failure"
	KindMalformedResponse Kind = "malformed_response"
)

// Error is the classified failure of one analyzer call.
// Status and Body are set for non-2xx upstream responses.
type Error struct {
	Kind   Kind
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("analyzer %s: HTTP %d: %s", e.Kind, e.Status, truncate(e.Body, 200))
	case e.Err != nil:
		return fmt.Sprintf("analyzer %s: %v", e.Kind, e.Err)
	default:
		return "analyzer " + string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// truncate limits a string to maxLen runes, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
