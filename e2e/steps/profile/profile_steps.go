package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetAdminToken() string
	Expand(s string) string
}

// RegisterSteps registers profile intake, moderation and public listing steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &profileSteps{tc: tc, ids: map[string]string{}}

	ctx.Step(`^I validate the url "([^"]*)"$`, steps.validate)
	ctx.Step(`^I report the profile "([^"]*)"$`, steps.report)

	ctx.Step(`^the admin stages the profile "([^"]*)" with risk score (\d+)$`, steps.stage)
	ctx.Step(`^the admin sets the status of "([^"]*)" to "([^"]*)"$`, steps.setStatus)
	ctx.Step(`^the admin deletes "([^"]*)"$`, steps.delete)
	ctx.Step(`^the admin stages "([^"]*)" again$`, steps.stageAgain)

	ctx.Step(`^the public "([^"]*)" list should contain "([^"]*)"$`, steps.publicListShouldContain)
	ctx.Step(`^the public "([^"]*)" list should not contain "([^"]*)"$`, steps.publicListShouldNotContain)
	ctx.Step(`^the report count should be (\d+)$`, steps.reportCountShouldBe)
}

type profileSteps struct {
	tc  TestContext
	ids map[string]string
}

func (s *profileSteps) asAdmin() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.tc.GetAdminToken()}
}

func (s *profileSteps) validate(ctx context.Context, raw string) error {
	return s.tc.Do(http.MethodPost, "/profiles/validate", map[string]string{"url": s.tc.Expand(raw)}, nil)
}

func (s *profileSteps) report(ctx context.Context, raw string) error {
	return s.tc.Do(http.MethodPost, "/profiles/report", map[string]string{"url": s.tc.Expand(raw)}, nil)
}

func (s *profileSteps) stage(ctx context.Context, raw string, score int) error {
	u := s.tc.Expand(raw)
	body := map[string]any{
		"url": u,
		"analysis": map[string]any{
			"name":       "E2E Subject",
			"title":      "Talent Partner",
			"risk_score": score,
			"analysis":   "staged by e2e",
		},
	}
	if err := s.tc.Do(http.MethodPost, "/admin/profiles/", body, s.asAdmin()); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != http.StatusCreated {
		return fmt.Errorf("stage profile: expected 201, got %d: %s", status, s.tc.GetLastResponseBody())
	}
	id, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.ids[u] = fmt.Sprint(id)
	return nil
}

func (s *profileSteps) stageAgain(ctx context.Context, raw string) error {
	body := map[string]any{
		"url":      s.tc.Expand(raw),
		"analysis": map[string]any{"name": "dup", "title": "dup", "risk_score": 1, "analysis": "dup"},
	}
	return s.tc.Do(http.MethodPost, "/admin/profiles/", body, s.asAdmin())
}

func (s *profileSteps) idFor(raw string) (string, error) {
	id, ok := s.ids[s.tc.Expand(raw)]
	if !ok {
		return "", fmt.Errorf("profile %s was not staged in this scenario", raw)
	}
	return id, nil
}

func (s *profileSteps) setStatus(ctx context.Context, raw, status string) error {
	id, err := s.idFor(raw)
	if err != nil {
		return err
	}
	return s.tc.Do(http.MethodPatch, "/admin/profiles/"+id+"/status", map[string]string{"status": status}, s.asAdmin())
}

func (s *profileSteps) delete(ctx context.Context, raw string) error {
	id, err := s.idFor(raw)
	if err != nil {
		return err
	}
	return s.tc.Do(http.MethodDelete, "/admin/profiles/"+id, nil, s.asAdmin())
}

func (s *profileSteps) publicURLs(kind string) ([]string, error) {
	q := url.Values{"kind": {kind}, "limit": {"50"}}
	if err := s.tc.Do(http.MethodGet, "/profiles/public?"+q.Encode(), nil, nil); err != nil {
		return nil, err
	}
	if status := s.tc.GetLastResponseStatus(); status != http.StatusOK {
		return nil, fmt.Errorf("public list: expected 200, got %d", status)
	}
	var list struct {
		Profiles []struct {
			SourceURL string `json:"source_url"`
		} `json:"profiles"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &list); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list.Profiles))
	for _, p := range list.Profiles {
		out = append(out, p.SourceURL)
	}
	return out, nil
}

func (s *profileSteps) publicListShouldContain(ctx context.Context, kind, raw string) error {
	urls, err := s.publicURLs(kind)
	if err != nil {
		return err
	}
	want := s.tc.Expand(raw)
	for _, u := range urls {
		if u == want {
			return nil
		}
	}
	return fmt.Errorf("%s not in public %s list", want, kind)
}

func (s *profileSteps) publicListShouldNotContain(ctx context.Context, kind, raw string) error {
	urls, err := s.publicURLs(kind)
	if err != nil {
		return err
	}
	want := s.tc.Expand(raw)
	for _, u := range urls {
		if u == want {
			return fmt.Errorf("%s unexpectedly in public %s list", want, kind)
		}
	}
	return nil
}

func (s *profileSteps) reportCountShouldBe(ctx context.Context, want int) error {
	v, err := s.tc.GetResponseField("report_count")
	if err != nil {
		return err
	}
	if n, ok := v.(float64); !ok || int(n) != want {
		return fmt.Errorf("expected report_count %d, got %v", want, v)
	}
	return nil
}
