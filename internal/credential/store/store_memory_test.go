package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"qrpass/internal/credential/models"
	"qrpass/internal/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) credential(id, mobile, token string, createdAt time.Time) *models.Credential {
	return &models.Credential{
		ID:                 id,
		OwnerName:          "Asha Rao",
		OwnerMobile:        mobile,
		CreatedAt:          createdAt,
		ExpiryDurationDays: 7,
		StoredStatus:       models.StoredActive,
		Token:              token,
		Salt:               []byte{1, 2, 3},
		Version:            models.PayloadVersion,
	}
}

func (s *InMemoryStoreSuite) TestGetAndFindByToken() {
	c := s.credential("c1", "9876543210", "tok-1", s.now)
	s.Require().NoError(s.store.Put(s.ctx, c))

	got, err := s.store.Get(s.ctx, "c1")
	s.Require().NoError(err)
	s.Equal(c, got)

	byToken, err := s.store.FindByToken(s.ctx, "tok-1")
	s.Require().NoError(err)
	s.Equal("c1", byToken.ID)

	_, err = s.store.Get(s.ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindByToken(s.ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestReturnsCopies() {
	s.Require().NoError(s.store.Put(s.ctx, s.credential("c1", "9876543210", "tok-1", s.now)))

	got, err := s.store.Get(s.ctx, "c1")
	s.Require().NoError(err)
	got.StoredStatus = models.StoredDisabled

	again, err := s.store.Get(s.ctx, "c1")
	s.Require().NoError(err)
	s.Equal(models.StoredActive, again.StoredStatus)
}

func (s *InMemoryStoreSuite) TestPutReplacesTokenIndex() {
	c := s.credential("c1", "9876543210", "tok-1", s.now)
	s.Require().NoError(s.store.Put(s.ctx, c))

	c.Token = "tok-2"
	s.Require().NoError(s.store.Put(s.ctx, c))

	_, err := s.store.FindByToken(s.ctx, "tok-1")
	s.ErrorIs(err, sentinel.ErrNotFound)
	got, err := s.store.FindByToken(s.ctx, "tok-2")
	s.Require().NoError(err)
	s.Equal("c1", got.ID)
}

func (s *InMemoryStoreSuite) TestPutRejectsDuplicateToken() {
	s.Require().NoError(s.store.Put(s.ctx, s.credential("c1", "9876543210", "tok-1", s.now)))
	err := s.store.Put(s.ctx, s.credential("c2", "9876543210", "tok-1", s.now))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestFindByOwnerNewestFirst() {
	s.Require().NoError(s.store.Put(s.ctx, s.credential("old", "9876543210", "t1", s.now.Add(-48*time.Hour))))
	s.Require().NoError(s.store.Put(s.ctx, s.credential("new", "9876543210", "t2", s.now)))
	s.Require().NoError(s.store.Put(s.ctx, s.credential("other", "1111111111", "t3", s.now)))

	got, err := s.store.FindByOwner(s.ctx, "9876543210")
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("new", got[0].ID)
	s.Equal("old", got[1].ID)

	none, err := s.store.FindByOwner(s.ctx, "0000000000")
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *InMemoryStoreSuite) TestFindByStatusAndOwner() {
	disabled := s.credential("d", "9876543210", "t1", s.now)
	disabled.StoredStatus = models.StoredDisabled
	s.Require().NoError(s.store.Put(s.ctx, disabled))
	s.Require().NoError(s.store.Put(s.ctx, s.credential("a", "9876543210", "t2", s.now)))

	active, err := s.store.FindByStatusAndOwner(s.ctx, models.StoredActive, "9876543210")
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal("a", active[0].ID)
}

func (s *InMemoryStoreSuite) TestRecordUsage() {
	s.Require().NoError(s.store.Put(s.ctx, s.credential("c1", "9876543210", "tok-1", s.now)))

	s.Require().NoError(s.store.RecordUsage(s.ctx, "c1", s.now.Add(time.Hour)))
	s.Require().NoError(s.store.RecordUsage(s.ctx, "c1", s.now.Add(2*time.Hour)))

	got, err := s.store.Get(s.ctx, "c1")
	s.Require().NoError(err)
	s.Equal(2, got.UsageCount)
	s.Require().NotNil(got.LastUsedAt)
	s.Equal(s.now.Add(2*time.Hour), *got.LastUsedAt)

	s.ErrorIs(s.store.RecordUsage(s.ctx, "missing", s.now), sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestSetStatusLeavesUsageAlone() {
	s.Require().NoError(s.store.Put(s.ctx, s.credential("c1", "9876543210", "tok-1", s.now)))
	s.Require().NoError(s.store.RecordUsage(s.ctx, "c1", s.now.Add(time.Hour)))

	got, err := s.store.SetStatus(s.ctx, "c1", models.StoredDisabled)
	s.Require().NoError(err)
	s.Equal(models.StoredDisabled, got.StoredStatus)
	s.Equal(1, got.UsageCount)

	_, err = s.store.SetStatus(s.ctx, "missing", models.StoredDisabled)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestExtendExpiryOnlyWhileActive() {
	s.Require().NoError(s.store.Put(s.ctx, s.credential("c1", "9876543210", "tok-1", s.now)))

	got, err := s.store.ExtendExpiry(s.ctx, "c1", 15)
	s.Require().NoError(err)
	s.Equal(22, got.ExpiryDurationDays)

	_, err = s.store.SetStatus(s.ctx, "c1", models.StoredDisabled)
	s.Require().NoError(err)
	_, err = s.store.ExtendExpiry(s.ctx, "c1", 15)
	s.ErrorIs(err, sentinel.ErrInvalidState)

	stored, err := s.store.Get(s.ctx, "c1")
	s.Require().NoError(err)
	s.Equal(22, stored.ExpiryDurationDays)

	_, err = s.store.ExtendExpiry(s.ctx, "missing", 15)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
