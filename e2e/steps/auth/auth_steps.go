package auth

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
	GetAccessToken() string
	SetAccessToken(token string)
	SetAdminToken(token string)
	Expand(s string) string
}

// AdminCredentials is implemented by contexts that know the bootstrap admin.
type AdminCredentials interface {
	TestContext
	AdminLogin() (email, password string)
}

// RegisterSteps registers account-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	ctx.Step(`^I sign up with email "([^"]*)" and password "([^"]*)"$`, steps.signUp)
	ctx.Step(`^I sign in with email "([^"]*)" and password "([^"]*)"$`, steps.signIn)
	ctx.Step(`^I am signed in as "([^"]*)" with password "([^"]*)"$`, steps.signedInAs)
	ctx.Step(`^an admin is signed in$`, steps.adminSignedIn)
	ctx.Step(`^I save the access token$`, steps.saveAccessToken)
	ctx.Step(`^I sign out$`, steps.signOut)
}

type authSteps struct {
	tc TestContext
}

func credentials(email, password string) map[string]string {
	return map[string]string{"email": email, "password": password}
}

func (s *authSteps) signUp(ctx context.Context, email, password string) error {
	return s.tc.POST("/auth/signup", credentials(s.tc.Expand(email), password))
}

func (s *authSteps) signIn(ctx context.Context, email, password string) error {
	return s.tc.POST("/auth/signin", credentials(s.tc.Expand(email), password))
}

func (s *authSteps) signedInAs(ctx context.Context, email, password string) error {
	if err := s.signUp(ctx, email, password); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != http.StatusCreated && status != http.StatusConflict {
		return fmt.Errorf("sign up failed with %d: %s", status, s.tc.GetLastResponseBody())
	}
	token, err := s.obtainToken(email, password)
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(token)
	return nil
}

func (s *authSteps) adminSignedIn(ctx context.Context) error {
	creds, ok := s.tc.(AdminCredentials)
	if !ok {
		return godog.ErrPending
	}
	email, password := creds.AdminLogin()
	token, err := s.obtainToken(email, password)
	if err != nil {
		return fmt.Errorf("admin sign in: %w", err)
	}
	s.tc.SetAdminToken(token)
	return nil
}

func (s *authSteps) obtainToken(email, password string) (string, error) {
	if err := s.tc.POST("/auth/signin", credentials(s.tc.Expand(email), password)); err != nil {
		return "", err
	}
	if status := s.tc.GetLastResponseStatus(); status != http.StatusOK {
		return "", fmt.Errorf("sign in failed with %d: %s", status, s.tc.GetLastResponseBody())
	}
	token, err := s.tc.GetResponseField("access_token")
	if err != nil {
		return "", err
	}
	str, ok := token.(string)
	if !ok || str == "" {
		return "", fmt.Errorf("access_token missing from sign in response")
	}
	return str, nil
}

func (s *authSteps) saveAccessToken(ctx context.Context) error {
	token, err := s.tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(token.(string))
	return nil
}

func (s *authSteps) signOut(ctx context.Context) error {
	return s.tc.POST("/auth/signout", nil)
}
