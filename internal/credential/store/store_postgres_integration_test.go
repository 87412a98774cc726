//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"qrpass/internal/credential/models"
	"qrpass/internal/credential/store"
	"qrpass/internal/sentinel"
	"qrpass/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "credentials"))
}

func (s *PostgresStoreSuite) credential(id, mobile, tok string, created time.Time) *models.Credential {
	return &models.Credential{
		ID:                 id,
		OwnerName:          "Asha Rao",
		OwnerMobile:        mobile,
		CreatedAt:          created,
		ExpiryDurationDays: 30,
		StoredStatus:       models.StoredActive,
		Token:              tok,
		Salt:               []byte{1, 2, 3, 4},
		IssuingDeviceID:    "phone-1",
		Version:            models.PayloadVersion,
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	c := s.credential("cred-1", "9876543210", "tok-1", s.now)
	s.Require().NoError(s.store.Put(ctx, c))

	got, err := s.store.Get(ctx, "cred-1")
	s.Require().NoError(err)
	s.Equal("Asha Rao", got.OwnerName)
	s.Equal([]byte{1, 2, 3, 4}, got.Salt)
	s.True(got.CreatedAt.Equal(s.now))
	s.Nil(got.LastUsedAt)

	byToken, err := s.store.FindByToken(ctx, "tok-1")
	s.Require().NoError(err)
	s.Equal("cred-1", byToken.ID)

	_, err = s.store.Get(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindByToken(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestPutUpdatesInPlace() {
	ctx := context.Background()
	c := s.credential("cred-1", "9876543210", "tok-1", s.now)
	s.Require().NoError(s.store.Put(ctx, c))

	c.StoredStatus = models.StoredDisabled
	c.ExpiryDurationDays = 45
	s.Require().NoError(s.store.Put(ctx, c))

	got, err := s.store.Get(ctx, "cred-1")
	s.Require().NoError(err)
	s.Equal(models.StoredDisabled, got.StoredStatus)
	s.Equal(45, got.ExpiryDurationDays)
}

func (s *PostgresStoreSuite) TestDuplicateTokenConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, s.credential("cred-1", "9876543210", "tok-1", s.now)))
	err := s.store.Put(ctx, s.credential("cred-2", "9876543210", "tok-1", s.now))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestOwnerQueriesNewestFirst() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, s.credential("old", "9876543210", "tok-1", s.now.Add(-time.Hour))))
	s.Require().NoError(s.store.Put(ctx, s.credential("new", "9876543210", "tok-2", s.now)))
	disabled := s.credential("off", "9876543210", "tok-3", s.now.Add(-2*time.Hour))
	disabled.StoredStatus = models.StoredDisabled
	s.Require().NoError(s.store.Put(ctx, disabled))
	s.Require().NoError(s.store.Put(ctx, s.credential("other", "9123456780", "tok-4", s.now)))

	all, err := s.store.FindByOwner(ctx, "9876543210")
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal("new", all[0].ID)

	active, err := s.store.FindByStatusAndOwner(ctx, models.StoredActive, "9876543210")
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal([]string{"new", "old"}, []string{active[0].ID, active[1].ID})
}

func (s *PostgresStoreSuite) TestRecordUsage() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, s.credential("cred-1", "9876543210", "tok-1", s.now)))

	s.Require().NoError(s.store.RecordUsage(ctx, "cred-1", s.now.Add(time.Hour)))
	s.Require().NoError(s.store.RecordUsage(ctx, "cred-1", s.now.Add(2*time.Hour)))

	got, err := s.store.Get(ctx, "cred-1")
	s.Require().NoError(err)
	s.Equal(2, got.UsageCount)
	s.Require().NotNil(got.LastUsedAt)
	s.True(got.LastUsedAt.Equal(s.now.Add(2 * time.Hour)))

	s.ErrorIs(s.store.RecordUsage(ctx, "missing", s.now), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSetStatusLeavesUsageAlone() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, s.credential("cred-1", "9876543210", "tok-1", s.now)))
	s.Require().NoError(s.store.RecordUsage(ctx, "cred-1", s.now.Add(time.Hour)))

	got, err := s.store.SetStatus(ctx, "cred-1", models.StoredDisabled)
	s.Require().NoError(err)
	s.Equal(models.StoredDisabled, got.StoredStatus)
	s.Equal(1, got.UsageCount)
	s.Require().NotNil(got.LastUsedAt)

	_, err = s.store.SetStatus(ctx, "missing", models.StoredDisabled)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestExtendExpiryOnlyWhileActive() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, s.credential("cred-1", "9876543210", "tok-1", s.now)))

	got, err := s.store.ExtendExpiry(ctx, "cred-1", 15)
	s.Require().NoError(err)
	s.Equal(45, got.ExpiryDurationDays)
	s.Equal(models.StoredActive, got.StoredStatus)

	_, err = s.store.SetStatus(ctx, "cred-1", models.StoredDisabled)
	s.Require().NoError(err)
	_, err = s.store.ExtendExpiry(ctx, "cred-1", 15)
	s.ErrorIs(err, sentinel.ErrInvalidState)

	stored, err := s.store.Get(ctx, "cred-1")
	s.Require().NoError(err)
	s.Equal(models.StoredDisabled, stored.StoredStatus)
	s.Equal(45, stored.ExpiryDurationDays)

	_, err = s.store.ExtendExpiry(ctx, "missing", 15)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
