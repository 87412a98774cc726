package seeder

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	credmodels "qrpass/internal/credential/models"
	credservice "qrpass/internal/credential/service"
	credstore "qrpass/internal/credential/store"
	"qrpass/internal/credential/token"
	devmodels "qrpass/internal/device/models"
	devservice "qrpass/internal/device/service"
	devstore "qrpass/internal/device/store"
	"qrpass/pkg/platform/middleware/requesttime"
	"qrpass/pkg/testutil"
)

func TestSeedAllIsRepeatable(t *testing.T) {
	ctx := requesttime.WithTime(context.Background(), time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	devices := devservice.New(devstore.NewInMemoryStore(), devservice.WithLogger(logger))
	codec, err := token.New(testutil.TestSecret)
	require.NoError(t, err)
	creds := credstore.NewInMemoryStore()
	credentials := credservice.New(creds, codec,
		credservice.WithLogger(logger),
		credservice.WithApprovalGate(devices),
	)
	s := New(devices, credentials, logger)

	require.NoError(t, s.SeedAll(ctx))
	require.NoError(t, s.SeedAll(ctx))

	for _, id := range []string{OwnerDeviceID, ScannerDeviceID} {
		decision, err := devices.Check(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, devmodels.DecisionApproved, decision)
	}
	for _, o := range demoOwners {
		issued, err := creds.FindByStatusAndOwner(ctx, credmodels.StoredActive, o.mobile)
		require.NoError(t, err)
		assert.Len(t, issued, 1, "reseeding must not issue a second credential")
		assert.Equal(t, OwnerDeviceID, issued[0].IssuingDeviceID)
	}
}
