// Package seeder registers demo devices and issues demo credentials so a
// fresh development server can be exercised end to end.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	credmodels "qrpass/internal/credential/models"
	credservice "qrpass/internal/credential/service"
	devmodels "qrpass/internal/device/models"
	devservice "qrpass/internal/device/service"
	"qrpass/pkg/platform/privacy"
)

const (
	OwnerDeviceID   = "demo-owner-phone"
	ScannerDeviceID = "demo-gate-scanner"
	seedActor       = "seeder"
)

type Devices interface {
	Register(ctx context.Context, req devservice.RegisterRequest) (*devmodels.Device, error)
	Approve(ctx context.Context, deviceID, actor string) (*devmodels.Device, error)
}

type Credentials interface {
	GenerateForDevice(ctx context.Context, req credservice.GenerateRequest) (*credmodels.Credential, credservice.GenerationError)
}

var demoOwners = []struct {
	name   string
	mobile string
	days   int
}{
	{"Asha Rao", "9876543210", 30},
	{"Vikram Nair", "9123456780", 7},
	{"Meera Iyer", "9988776655", 90},
}

type Seeder struct {
	devices     Devices
	credentials Credentials
	logger      *slog.Logger
}

func New(devices Devices, credentials Credentials, logger *slog.Logger) *Seeder {
	return &Seeder{devices: devices, credentials: credentials, logger: logger}
}

// SeedAll approves the demo devices and issues one credential per demo owner.
// Owners that already hold a live credential are skipped, so reseeding a
// persistent store is harmless. Any other rejection fails the seed.
func (s *Seeder) SeedAll(ctx context.Context) error {
	s.logger.InfoContext(ctx, "seeding demo data")

	for _, d := range []devservice.RegisterRequest{
		{DeviceID: OwnerDeviceID, Model: "Demo Phone", Manufacturer: "qrpass", Platform: "Android"},
		{DeviceID: ScannerDeviceID, Model: "Demo Scanner", Manufacturer: "qrpass", Platform: "Android"},
	} {
		if _, err := s.devices.Register(ctx, d); err != nil {
			return fmt.Errorf("register %s: %w", d.DeviceID, err)
		}
		if _, err := s.devices.Approve(ctx, d.DeviceID, seedActor); err != nil {
			return fmt.Errorf("approve %s: %w", d.DeviceID, err)
		}
	}

	issued := 0
	for _, o := range demoOwners {
		cred, gerr := s.credentials.GenerateForDevice(ctx, credservice.GenerateRequest{
			OwnerName:   o.name,
			OwnerMobile: o.mobile,
			ExpiryDays:  o.days,
			DeviceID:    OwnerDeviceID,
		})
		var exists *credservice.ActiveCredentialExists
		if errors.As(gerr, &exists) {
			s.logger.InfoContext(ctx, "demo owner already has a live credential",
				"owner_mobile", privacy.MaskMobile(o.mobile),
			)
			continue
		}
		if gerr != nil {
			return fmt.Errorf("issue demo credential (%s): %w", credservice.RejectionReason(gerr), gerr)
		}
		issued++
		s.logger.DebugContext(ctx, "demo credential issued", "credential_id", cred.ID)
	}

	s.logger.InfoContext(ctx, "demo data seeded",
		"devices", 2,
		"credentials", issued,
	)
	return nil
}
