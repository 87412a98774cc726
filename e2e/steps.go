package e2e

import (
	"github.com/cucumber/godog"

	"qrpass/e2e/steps/attendance"
	"qrpass/e2e/steps/common"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	attendance.RegisterSteps(ctx, tc)
}
