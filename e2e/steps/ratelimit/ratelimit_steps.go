package ratelimit

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(key string) string
	Expand(s string) string
}

// RegisterSteps registers sign-in throttling and enumeration step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I fail sign-in for "([^"]*)" (\d+) times$`, steps.failSignInNTimes)
	ctx.Step(`^the (\d+)(?:st|nd|rd|th) attempt should return (\d+)$`, steps.nthAttemptShouldReturn)
	ctx.Step(`^the response should indicate rate limiting$`, steps.responseShouldIndicateRateLimiting)

	ctx.Step(`^I attempt sign-in with unknown email "([^"]*)"$`, steps.attemptUnknownEmail)
	ctx.Step(`^I attempt sign-in for "([^"]*)" with a wrong password$`, steps.attemptWrongPassword)
	ctx.Step(`^both sign-in failures should carry the same message$`, steps.sameGenericMessage)
}

type ratelimitSteps struct {
	tc       TestContext
	statuses []int
	messages []string
}

func (s *ratelimitSteps) signIn(email, password string) error {
	return s.tc.POST("/auth/signin", map[string]string{"email": s.tc.Expand(email), "password": password})
}

func (s *ratelimitSteps) failSignInNTimes(ctx context.Context, email string, times int) error {
	s.statuses = s.statuses[:0]
	for i := 0; i < times; i++ {
		if err := s.signIn(email, "definitely-wrong-password"); err != nil {
			return err
		}
		s.statuses = append(s.statuses, s.tc.GetLastResponseStatus())
	}
	return nil
}

func (s *ratelimitSteps) nthAttemptShouldReturn(ctx context.Context, n, want int) error {
	if n < 1 || n > len(s.statuses) {
		return fmt.Errorf("only %d attempts were made", len(s.statuses))
	}
	if got := s.statuses[n-1]; got != want {
		return fmt.Errorf("attempt %d: expected %d, got %d (all: %v)", n, want, got, s.statuses)
	}
	return nil
}

func (s *ratelimitSteps) responseShouldIndicateRateLimiting(ctx context.Context) error {
	if s.tc.GetLastResponseStatus() != http.StatusTooManyRequests {
		return fmt.Errorf("expected 429, got %d", s.tc.GetLastResponseStatus())
	}
	if s.tc.GetLastResponseHeader("Retry-After") == "" {
		return fmt.Errorf("Retry-After header missing")
	}
	code, err := s.tc.GetResponseField("error")
	if err != nil {
		return err
	}
	if code != "rate_limited" {
		return fmt.Errorf("expected error rate_limited, got %v", code)
	}
	return nil
}

func (s *ratelimitSteps) recordFailure() error {
	if s.tc.GetLastResponseStatus() != http.StatusUnauthorized {
		return fmt.Errorf("expected 401, got %d", s.tc.GetLastResponseStatus())
	}
	msg, err := s.tc.GetResponseField("error_description")
	if err != nil {
		return err
	}
	s.messages = append(s.messages, fmt.Sprint(msg))
	return nil
}

func (s *ratelimitSteps) attemptUnknownEmail(ctx context.Context, email string) error {
	if err := s.signIn(email, "whatever-password"); err != nil {
		return err
	}
	return s.recordFailure()
}

func (s *ratelimitSteps) attemptWrongPassword(ctx context.Context, email string) error {
	if err := s.signIn(email, "definitely-wrong-password"); err != nil {
		return err
	}
	return s.recordFailure()
}

func (s *ratelimitSteps) sameGenericMessage(ctx context.Context) error {
	if len(s.messages) < 2 {
		return fmt.Errorf("expected two recorded failures, got %d", len(s.messages))
	}
	if s.messages[0] != s.messages[1] {
		return fmt.Errorf("messages differ: %q vs %q", s.messages[0], s.messages[1])
	}
	return nil
}
