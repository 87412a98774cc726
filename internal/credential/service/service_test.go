package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"qrpass/internal/audit"
	"qrpass/internal/credential/models"
	"qrpass/internal/credential/service/mocks"
	"qrpass/internal/credential/store"
	"qrpass/internal/credential/token"
	devicemodels "qrpass/internal/device/models"
	"qrpass/internal/sentinel"
	dErrors "qrpass/pkg/domain-errors"
	"qrpass/pkg/platform/middleware/requesttime"
)

const (
	ownerMobile = "9876543210"
	ownerName   = "Asha Rao"
	deviceID    = "device-1"
)

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	mockStore  *mocks.MockStore
	mockIssuer *mocks.MockTokenIssuer
	mockGate   *mocks.MockApprovalGate
	auditStore *audit.InMemoryStore
	service    *Service
	now        time.Time
	ctx        context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.mockIssuer = mocks.NewMockTokenIssuer(s.ctrl)
	s.mockGate = mocks.NewMockApprovalGate(s.ctrl)
	s.auditStore = audit.NewInMemoryStore()
	s.service = New(s.mockStore, s.mockIssuer,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditor(audit.NewPublisher(s.auditStore)),
		WithApprovalGate(s.mockGate),
	)
	s.now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s.ctx = requesttime.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) request() GenerateRequest {
	return GenerateRequest{
		OwnerName:   ownerName,
		OwnerMobile: ownerMobile,
		ExpiryDays:  30,
		DeviceID:    deviceID,
	}
}

func (s *ServiceSuite) credential(id string, status models.StoredStatus, createdAt time.Time) *models.Credential {
	return &models.Credential{
		ID:                 id,
		OwnerName:          ownerName,
		OwnerMobile:        ownerMobile,
		CreatedAt:          createdAt,
		ExpiryDurationDays: 30,
		StoredStatus:       status,
		Token:              "tok-" + id,
		Salt:               []byte("salt-" + id),
		Version:            models.PayloadVersion,
	}
}

func (s *ServiceSuite) expectNoLive() {
	s.mockStore.EXPECT().
		FindByStatusAndOwner(gomock.Any(), models.StoredActive, ownerMobile).
		Return(nil, nil)
}

func (s *ServiceSuite) expectIssue() {
	s.mockIssuer.EXPECT().Issue(gomock.Any()).
		Return(token.Issued{Token: "fresh-token", Salt: []byte("fresh-salt")}, nil)
}

func (s *ServiceSuite) TestApprovalDecisions() {
	cases := []struct {
		decision devicemodels.Decision
		reason   ApprovalReason
	}{
		{devicemodels.DecisionPending, ApprovalPending},
		{devicemodels.DecisionRejected, ApprovalRejected},
		{devicemodels.DecisionNotRegistered, ApprovalNotRegistered},
		{devicemodels.Decision("garbled"), ApprovalCheckFailed},
	}
	for _, tc := range cases {
		s.Run(string(tc.decision), func() {
			cred, gerr := s.service.Generate(s.ctx, s.request(), tc.decision)
			s.Nil(cred)
			var approval *ApprovalError
			s.Require().ErrorAs(gerr, &approval)
			s.Equal(tc.reason, approval.Reason)
		})
	}

	s.Run("each reason has a distinct message", func() {
		seen := map[string]bool{}
		for _, tc := range cases {
			msg := approvalFailure(tc.decision).Error()
			s.False(seen[msg], msg)
			seen[msg] = true
		}
	})
}

func (s *ServiceSuite) TestValidation() {
	cases := []struct {
		name  string
		mut   func(*GenerateRequest)
		field string
	}{
		{"short name", func(r *GenerateRequest) { r.OwnerName = "A" }, "name"},
		{"blank name", func(r *GenerateRequest) { r.OwnerName = "   " }, "name"},
		{"short mobile", func(r *GenerateRequest) { r.OwnerMobile = "98765" }, "mobile"},
		{"letters in mobile", func(r *GenerateRequest) { r.OwnerMobile = "98765abcde" }, "mobile"},
		{"zero days", func(r *GenerateRequest) { r.ExpiryDays = 0 }, "expiry_days"},
		{"too many days", func(r *GenerateRequest) { r.ExpiryDays = 91 }, "expiry_days"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := s.request()
			tc.mut(&req)
			_, gerr := s.service.Generate(s.ctx, req, devicemodels.DecisionApproved)
			var verr *ValidationError
			s.Require().ErrorAs(gerr, &verr)
			s.Equal(tc.field, verr.Field)
		})
	}
}

func (s *ServiceSuite) TestRateLimitedBeforeDedup() {
	live := make([]*models.Credential, 0, 5)
	for i := range 5 {
		live = append(live, s.credential(string(rune('a'+i)), models.StoredActive, s.now.Add(-time.Duration(i)*time.Hour)))
	}
	s.mockStore.EXPECT().
		FindByStatusAndOwner(gomock.Any(), models.StoredActive, ownerMobile).
		Return(live, nil)

	_, gerr := s.service.Generate(s.ctx, s.request(), devicemodels.DecisionApproved)
	var rl *RateLimitedError
	s.Require().ErrorAs(gerr, &rl)
	s.Equal(5, rl.Active)
	s.Equal(5, rl.Limit)
}

func (s *ServiceSuite) TestExpiredCredentialsDoNotCountTowardsCap() {
	stale := make([]*models.Credential, 0, 5)
	for i := range 5 {
		stale = append(stale, s.credential(string(rune('a'+i)), models.StoredActive, s.now.AddDate(0, 0, -40)))
	}
	s.mockStore.EXPECT().
		FindByStatusAndOwner(gomock.Any(), models.StoredActive, ownerMobile).
		Return(stale, nil)
	s.mockStore.EXPECT().FindByOwner(gomock.Any(), ownerMobile).Return(stale, nil)
	s.expectIssue()
	s.mockStore.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil)

	cred, gerr := s.service.Generate(s.ctx, s.request(), devicemodels.DecisionApproved)
	s.Require().Nil(gerr)
	s.NotEmpty(cred.ID)
}

func (s *ServiceSuite) TestActiveCredentialExists() {
	existing := s.credential("live", models.StoredActive, s.now.Add(-time.Hour))
	s.mockStore.EXPECT().
		FindByStatusAndOwner(gomock.Any(), models.StoredActive, ownerMobile).
		Return([]*models.Credential{existing}, nil)
	s.mockStore.EXPECT().FindByOwner(gomock.Any(), ownerMobile).
		Return([]*models.Credential{existing}, nil)

	_, gerr := s.service.Generate(s.ctx, s.request(), devicemodels.DecisionApproved)
	var exists *ActiveCredentialExists
	s.Require().ErrorAs(gerr, &exists)
	s.Equal("live", exists.CredentialID)
}

func (s *ServiceSuite) TestCredentialUsedTodayStillBlocksGeneration() {
	existing := s.credential("used", models.StoredActive, s.now.AddDate(0, 0, -2))
	usedAt := s.now.Add(-time.Hour)
	existing.UsageCount = 1
	existing.LastUsedAt = &usedAt
	s.Require().Equal(models.StatusUsed, models.EffectiveStatus(existing, s.now))

	s.mockStore.EXPECT().
		FindByStatusAndOwner(gomock.Any(), models.StoredActive, ownerMobile).
		Return([]*models.Credential{existing}, nil)
	s.mockStore.EXPECT().FindByOwner(gomock.Any(), ownerMobile).
		Return([]*models.Credential{existing}, nil)

	_, gerr := s.service.Generate(s.ctx, s.request(), devicemodels.DecisionApproved)
	s.IsType(&ActiveCredentialExists{}, gerr)
}

func (s *ServiceSuite) TestReactivatesMostRecentDisabled() {
	older := s.credential("older", models.StoredDisabled, s.now.AddDate(0, 0, -20))
	newer := s.credential("newer", models.StoredDisabled, s.now.AddDate(0, 0, -3))
	lastUsed := s.now.AddDate(0, 0, -4)
	newer.UsageCount = 5
	newer.LastUsedAt = &lastUsed

	s.expectNoLive()
	s.mockStore.EXPECT().FindByOwner(gomock.Any(), ownerMobile).
		Return([]*models.Credential{older, newer}, nil)
	s.mockIssuer.EXPECT().Issue(gomock.Any()).DoAndReturn(func(p models.Payload) (token.Issued, error) {
		s.Equal("newer", p.CredentialID)
		return token.Issued{Token: "fresh-token", Salt: []byte("fresh-salt")}, nil
	})
	var saved *models.Credential
	s.mockStore.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, c *models.Credential) error {
		saved = c
		return nil
	})

	req := s.request()
	req.OwnerName = "Asha R"
	req.ExpiryDays = 10
	cred, gerr := s.service.Generate(s.ctx, req, devicemodels.DecisionApproved)
	s.Require().Nil(gerr)

	s.Equal("newer", cred.ID)
	s.Equal(0, cred.UsageCount)
	s.Nil(cred.LastUsedAt)
	s.Equal(models.StoredActive, cred.StoredStatus)
	s.Equal(s.now, cred.CreatedAt)
	s.Equal("Asha R", cred.OwnerName)
	s.Equal(10, cred.ExpiryDurationDays)
	s.Equal("fresh-token", cred.Token)
	s.Equal(cred, saved)
	s.Equal(models.StatusActive, models.EffectiveStatus(cred, s.now))

	s.Len(s.auditStore.ByAction(audit.ActionCredentialReactivated), 1)
}

func (s *ServiceSuite) TestMintsWhenOnlyExpiredCredentialsExist() {
	expired := s.credential("expired", models.StoredActive, s.now.AddDate(0, 0, -31))
	s.mockStore.EXPECT().
		FindByStatusAndOwner(gomock.Any(), models.StoredActive, ownerMobile).
		Return([]*models.Credential{expired}, nil)
	s.mockStore.EXPECT().FindByOwner(gomock.Any(), ownerMobile).
		Return([]*models.Credential{expired}, nil)
	s.expectIssue()
	s.mockStore.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil)

	cred, gerr := s.service.Generate(s.ctx, s.request(), devicemodels.DecisionApproved)
	s.Require().Nil(gerr)
	s.NotEqual("expired", cred.ID)
	s.Equal(deviceID, cred.IssuingDeviceID)
	s.Len(s.auditStore.ByAction(audit.ActionCredentialIssued), 1)
}

func (s *ServiceSuite) TestIssuanceFailed() {
	s.expectNoLive()
	s.mockStore.EXPECT().FindByOwner(gomock.Any(), ownerMobile).Return(nil, nil)
	s.mockIssuer.EXPECT().Issue(gomock.Any()).Return(token.Issued{}, token.ErrIssuanceFailed)

	_, gerr := s.service.Generate(s.ctx, s.request(), devicemodels.DecisionApproved)
	var failed *IssuanceFailed
	s.Require().ErrorAs(gerr, &failed)
	s.ErrorIs(gerr, token.ErrIssuanceFailed)
}

func (s *ServiceSuite) TestStoreFailuresAreTransient() {
	boom := errors.New("connection reset")

	s.Run("rate cap query", func() {
		s.mockStore.EXPECT().FindByStatusAndOwner(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, boom)
		_, gerr := s.service.Generate(s.ctx, s.request(), devicemodels.DecisionApproved)
		s.IsType(&TransientFailure{}, gerr)
		s.ErrorIs(gerr, boom)
	})

	s.Run("owner lookup", func() {
		s.expectNoLive()
		s.mockStore.EXPECT().FindByOwner(gomock.Any(), ownerMobile).Return(nil, boom)
		_, gerr := s.service.Generate(s.ctx, s.request(), devicemodels.DecisionApproved)
		s.IsType(&TransientFailure{}, gerr)
	})

	s.Run("persist", func() {
		s.expectNoLive()
		s.mockStore.EXPECT().FindByOwner(gomock.Any(), ownerMobile).Return(nil, nil)
		s.expectIssue()
		s.mockStore.EXPECT().Put(gomock.Any(), gomock.Any()).Return(boom)
		_, gerr := s.service.Generate(s.ctx, s.request(), devicemodels.DecisionApproved)
		s.IsType(&TransientFailure{}, gerr)
	})
}

func (s *ServiceSuite) TestGenerateForDevice() {
	s.Run("gate error is a failed check", func() {
		s.mockGate.EXPECT().Check(gomock.Any(), deviceID).Return(devicemodels.Decision(""), errors.New("timeout"))
		_, gerr := s.service.GenerateForDevice(s.ctx, s.request())
		var approval *ApprovalError
		s.Require().ErrorAs(gerr, &approval)
		s.Equal(ApprovalCheckFailed, approval.Reason)
	})

	s.Run("pending device", func() {
		s.mockGate.EXPECT().Check(gomock.Any(), deviceID).Return(devicemodels.DecisionPending, nil)
		_, gerr := s.service.GenerateForDevice(s.ctx, s.request())
		var approval *ApprovalError
		s.Require().ErrorAs(gerr, &approval)
		s.Equal(ApprovalPending, approval.Reason)
	})

	s.Run("approved device mints", func() {
		s.mockGate.EXPECT().Check(gomock.Any(), deviceID).Return(devicemodels.DecisionApproved, nil)
		s.expectNoLive()
		s.mockStore.EXPECT().FindByOwner(gomock.Any(), ownerMobile).Return(nil, nil)
		s.expectIssue()
		s.mockStore.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil)
		cred, gerr := s.service.GenerateForDevice(s.ctx, s.request())
		s.Require().Nil(gerr)
		s.Equal(deviceID, cred.IssuingDeviceID)
	})

	s.NotEmpty(s.auditStore.ByAction(audit.ActionGenerationRejected))
}

func (s *ServiceSuite) TestDisable() {
	s.Run("writes only the status", func() {
		c := s.credential("c1", models.StoredActive, s.now)
		disabled := c.Clone()
		disabled.StoredStatus = models.StoredDisabled
		s.mockStore.EXPECT().Get(gomock.Any(), "c1").Return(c, nil)
		s.mockStore.EXPECT().SetStatus(gomock.Any(), "c1", models.StoredDisabled).Return(disabled, nil)
		got, err := s.service.Disable(s.ctx, "c1")
		s.Require().NoError(err)
		s.Equal(models.StoredDisabled, got.StoredStatus)
	})

	s.Run("already disabled is a no-op", func() {
		c := s.credential("c2", models.StoredDisabled, s.now)
		s.mockStore.EXPECT().Get(gomock.Any(), "c2").Return(c, nil)
		_, err := s.service.Disable(s.ctx, "c2")
		s.NoError(err)
	})

	s.Run("missing credential", func() {
		s.mockStore.EXPECT().Get(gomock.Any(), "nope").Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Disable(s.ctx, "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("store failure is unavailable", func() {
		c := s.credential("c3", models.StoredActive, s.now)
		s.mockStore.EXPECT().Get(gomock.Any(), "c3").Return(c, nil)
		s.mockStore.EXPECT().SetStatus(gomock.Any(), "c3", models.StoredDisabled).Return(nil, errors.New("db down"))
		_, err := s.service.Disable(s.ctx, "c3")
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func (s *ServiceSuite) TestExtend() {
	s.Run("adds days", func() {
		extended := s.credential("c1", models.StoredActive, s.now)
		extended.ExpiryDurationDays = 45
		s.mockStore.EXPECT().ExtendExpiry(gomock.Any(), "c1", 15).Return(extended, nil)
		got, err := s.service.Extend(s.ctx, "c1", 15)
		s.Require().NoError(err)
		s.Equal(45, got.ExpiryDurationDays)
		s.NotEmpty(s.auditStore.ByAction(audit.ActionCredentialExtended))
	})

	s.Run("disabled credential", func() {
		s.mockStore.EXPECT().ExtendExpiry(gomock.Any(), "c2", 15).Return(nil, sentinel.ErrInvalidState)
		_, err := s.service.Extend(s.ctx, "c2", 15)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("missing credential", func() {
		s.mockStore.EXPECT().ExtendExpiry(gomock.Any(), "nope", 15).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Extend(s.ctx, "nope", 15)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("out of range", func() {
		_, err := s.service.Extend(s.ctx, "c1", 0)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestListByOwnerComputesStatus() {
	active := s.credential("a", models.StoredActive, s.now.Add(-time.Hour))
	expired := s.credential("e", models.StoredActive, s.now.AddDate(0, 0, -31))
	disabled := s.credential("d", models.StoredDisabled, s.now.AddDate(0, 0, -2))
	s.mockStore.EXPECT().FindByOwner(gomock.Any(), ownerMobile).
		Return([]*models.Credential{expired, disabled, active}, nil)

	views, err := s.service.ListByOwner(s.ctx, ownerMobile, s.now)
	s.Require().NoError(err)
	s.Require().Len(views, 3)
	s.Equal("a", views[0].Credential.ID)
	s.Equal(models.StatusActive, views[0].Status)
	s.Equal(models.StatusDisabled, views[1].Status)
	s.Equal(models.StatusExpired, views[2].Status)
}

func (s *ServiceSuite) TestActiveCount() {
	s.Run("counts only live credentials", func() {
		live := s.credential("a", models.StoredActive, s.now.Add(-time.Hour))
		expired := s.credential("e", models.StoredActive, s.now.AddDate(0, 0, -31))
		s.mockStore.EXPECT().FindByStatusAndOwner(gomock.Any(), models.StoredActive, ownerMobile).
			Return([]*models.Credential{live, expired}, nil)

		count, err := s.service.ActiveCount(s.ctx, ownerMobile, s.now)
		s.Require().NoError(err)
		s.Equal(1, count)
	})

	s.Run("invalid mobile", func() {
		_, err := s.service.ActiveCount(s.ctx, "12345", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("store failure", func() {
		s.mockStore.EXPECT().FindByStatusAndOwner(gomock.Any(), models.StoredActive, ownerMobile).
			Return(nil, errors.New("connection reset"))
		_, err := s.service.ActiveCount(s.ctx, ownerMobile, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

// TestGenerateOnFreshOwner runs the real store and codec end to end.
func TestGenerateOnFreshOwner(t *testing.T) {
	codec, err := token.New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	st := store.NewInMemoryStore()
	svc := New(st, codec, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	now := time.Date(2026, 5, 2, 23, 59, 0, 0, time.UTC)
	ctx := requesttime.WithTime(context.Background(), now)

	mobiles := []string{"9000000001", "9000000002", "9000000003"}
	for _, mobile := range mobiles {
		cred, gerr := svc.Generate(ctx, GenerateRequest{
			OwnerName: "Ravi", OwnerMobile: mobile, ExpiryDays: 1, DeviceID: deviceID,
		}, devicemodels.DecisionApproved)
		require.Nil(t, gerr)
		assert.Equal(t, models.StatusActive, models.EffectiveStatus(cred, cred.CreatedAt))
		assert.True(t, codec.Verify(cred.Token, cred.Salt, models.PayloadOf(cred)))
	}

	count, err := svc.ActiveCount(ctx, mobiles[0], now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, gerr := svc.Generate(ctx, GenerateRequest{
		OwnerName: "Ravi", OwnerMobile: mobiles[0], ExpiryDays: 1, DeviceID: deviceID,
	}, devicemodels.DecisionApproved)
	assert.IsType(t, &ActiveCredentialExists{}, gerr)
}

func TestToDomainError(t *testing.T) {
	cases := []struct {
		err  GenerationError
		code dErrors.Code
	}{
		{&ApprovalError{Reason: ApprovalPending}, dErrors.CodeForbidden},
		{&ApprovalError{Reason: ApprovalCheckFailed}, dErrors.CodeUnavailable},
		{&ValidationError{Field: "name", Reason: "too short"}, dErrors.CodeValidation},
		{&ActiveCredentialExists{}, dErrors.CodeConflict},
		{&RateLimitedError{Limit: 5}, dErrors.CodeRateLimited},
		{&IssuanceFailed{}, dErrors.CodeInternal},
		{&TransientFailure{}, dErrors.CodeUnavailable},
	}
	for _, tc := range cases {
		t.Run(RejectionReason(tc.err), func(t *testing.T) {
			assert.True(t, dErrors.HasCode(ToDomainError(tc.err), tc.code))
		})
	}
}
