package attendance

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any, headers map[string]string) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetAdminToken() string
	DeviceID(name string) string
	Mobile(suffix string) string
	DeviceToken(name string) string
	SetDeviceToken(name, token string)
	CredentialID(owner string) string
	CredentialToken(owner string) string
	SetCredential(owner, id, token string)
}

// RegisterSteps registers device, credential and scan steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &attendanceSteps{tc: tc}

	ctx.Step(`^a pending "(owner|scanner)" device "([^"]*)"$`, steps.pendingDevice)
	ctx.Step(`^an approved "(owner|scanner)" device "([^"]*)"$`, steps.approvedDevice)
	ctx.Step(`^I approve device "([^"]*)" without an admin token$`, steps.approveWithoutAdminToken)
	ctx.Step(`^the approval decision for "([^"]*)" should be "([^"]*)"$`, steps.approvalDecisionShouldBe)

	ctx.Step(`^device "([^"]*)" generates a credential for "([^"]*)" with mobile ending "(\d{4})" valid for (\d+) days$`, steps.generateCredential)
	ctx.Step(`^device "([^"]*)" disables the credential of "([^"]*)"$`, steps.disableCredential)
	ctx.Step(`^device "([^"]*)" reads the credential of "([^"]*)"$`, steps.readCredential)

	ctx.Step(`^device "([^"]*)" scans the credential of "([^"]*)"$`, steps.scanCredential)
	ctx.Step(`^device "([^"]*)" scans the raw token "([^"]*)"$`, steps.scanRawToken)
}

type attendanceSteps struct {
	tc TestContext
}

func (s *attendanceSteps) bearer(device string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.tc.DeviceToken(device)}
}

func (s *attendanceSteps) register(role, name string) error {
	body := map[string]any{
		"device_id":    s.tc.DeviceID(name),
		"model":        "e2e",
		"manufacturer": "qrpass",
		"role":         role,
	}
	if err := s.tc.POST("/devices/register", body, nil); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != http.StatusCreated {
		return fmt.Errorf("register %s returned %d: %s", name, s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	token, err := s.tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	s.tc.SetDeviceToken(name, fmt.Sprint(token))
	return nil
}

func (s *attendanceSteps) pendingDevice(ctx context.Context, role, name string) error {
	return s.register(role, name)
}

func (s *attendanceSteps) approvedDevice(ctx context.Context, role, name string) error {
	if err := s.register(role, name); err != nil {
		return err
	}
	if s.tc.GetAdminToken() == "" {
		return godog.ErrPending
	}
	path := "/admin/devices/" + s.tc.DeviceID(name) + "/approve"
	if err := s.tc.POST(path, map[string]any{}, map[string]string{
		"X-Admin-Token": s.tc.GetAdminToken(),
		"X-Admin-Actor": "e2e",
	}); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != http.StatusOK {
		return fmt.Errorf("approve %s returned %d: %s", name, s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *attendanceSteps) approveWithoutAdminToken(ctx context.Context, name string) error {
	return s.tc.POST("/admin/devices/"+s.tc.DeviceID(name)+"/approve", map[string]any{}, nil)
}

func (s *attendanceSteps) approvalDecisionShouldBe(ctx context.Context, name, expected string) error {
	if err := s.tc.GET("/devices/"+s.tc.DeviceID(name)+"/approval", nil); err != nil {
		return err
	}
	decision, err := s.tc.GetResponseField("decision")
	if err != nil {
		return err
	}
	if fmt.Sprint(decision) != expected {
		return fmt.Errorf("expected decision %q but got %q", expected, fmt.Sprint(decision))
	}
	return nil
}

func (s *attendanceSteps) generateCredential(ctx context.Context, device, owner, suffix string, days int) error {
	body := map[string]any{
		"name":        owner,
		"mobile":      s.tc.Mobile(suffix),
		"expiry_days": days,
	}
	if err := s.tc.POST("/credentials", body, s.bearer(device)); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != http.StatusCreated {
		return nil
	}
	id, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	token, err := s.tc.GetResponseField("token")
	if err != nil {
		return err
	}
	s.tc.SetCredential(owner, fmt.Sprint(id), fmt.Sprint(token))
	return nil
}

func (s *attendanceSteps) disableCredential(ctx context.Context, device, owner string) error {
	id := s.tc.CredentialID(owner)
	if id == "" {
		return fmt.Errorf("no credential recorded for %s", owner)
	}
	return s.tc.POST("/credentials/"+id+"/disable", map[string]any{}, s.bearer(device))
}

func (s *attendanceSteps) readCredential(ctx context.Context, device, owner string) error {
	id := s.tc.CredentialID(owner)
	if id == "" {
		return fmt.Errorf("no credential recorded for %s", owner)
	}
	return s.tc.GET("/credentials/"+id, s.bearer(device))
}

func (s *attendanceSteps) scanCredential(ctx context.Context, device, owner string) error {
	token := s.tc.CredentialToken(owner)
	if token == "" {
		return fmt.Errorf("no credential recorded for %s", owner)
	}
	return s.tc.POST("/scans", map[string]any{"token": token}, s.bearer(device))
}

func (s *attendanceSteps) scanRawToken(ctx context.Context, device, token string) error {
	return s.tc.POST("/scans", map[string]any{"token": token}, s.bearer(device))
}
