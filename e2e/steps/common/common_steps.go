package common

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(key string) string
	Expand(s string) string
}

// RegisterSteps registers background, generic request and assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the service is running$`, steps.serviceIsRunning)
	ctx.Step(`^I send a (GET|POST|PUT|PATCH|DELETE) request to "([^"]*)"$`, steps.sendRequest)
	ctx.Step(`^I send a GET request to "([^"]*)" with token "([^"]*)"$`, steps.getWithToken)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the error code should be "([^"]*)"$`, steps.errorCodeShouldBe)
	ctx.Step(`^the response should have header "([^"]*)"$`, steps.shouldHaveHeader)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serviceIsRunning(ctx context.Context) error {
	if err := s.tc.Do("GET", "/healthz", nil, nil); err != nil {
		return err
	}
	return s.statusShouldBe(ctx, 200)
}

func (s *commonSteps) sendRequest(ctx context.Context, method, path string) error {
	return s.tc.Do(method, s.tc.Expand(path), nil, nil)
}

func (s *commonSteps) getWithToken(ctx context.Context, path, token string) error {
	return s.tc.Do("GET", s.tc.Expand(path), nil, map[string]string{"Authorization": "Bearer " + token})
}

func (s *commonSteps) statusShouldBe(ctx context.Context, want int) error {
	if got := s.tc.GetLastResponseStatus(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) fieldShouldBe(ctx context.Context, field, want string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != s.tc.Expand(want) {
		return fmt.Errorf("expected %s=%q, got %q", field, want, got)
	}
	return nil
}

func (s *commonSteps) errorCodeShouldBe(ctx context.Context, code string) error {
	return s.fieldShouldBe(ctx, "error", code)
}

func (s *commonSteps) shouldHaveHeader(ctx context.Context, key string) error {
	if strings.TrimSpace(s.tc.GetLastResponseHeader(key)) == "" {
		return fmt.Errorf("expected header %s to be set", key)
	}
	return nil
}
