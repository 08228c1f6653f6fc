package e2e

import (
	"github.com/cucumber/godog"

	"badguys/e2e/steps/auth"
	"badguys/e2e/steps/common"
	"badguys/e2e/steps/profile"
	"badguys/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (background, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register authentication-specific steps
	auth.RegisterSteps(ctx, tc)

	ratelimit.RegisterSteps(ctx, tc)
	profile.RegisterSteps(ctx, tc)
}
