package token

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrpass/internal/credential/models"
)

var secret = []byte("test-secret-with-enough-entropy!")

func payload() models.Payload {
	return models.Payload{
		OwnerName:          "Asha Rao",
		OwnerMobile:        "9876543210",
		Timestamp:          "2026-03-14T10:30:00Z",
		ExpiryDurationDays: 7,
		CredentialID:       "cred-1",
		Version:            models.PayloadVersion,
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy source unavailable") }

func TestNewRejectsWeakSecret(t *testing.T) {
	_, err := New([]byte("short"))
	require.ErrorIs(t, err, ErrWeakSecret)
}

func TestIssueProducesVerifiableToken(t *testing.T) {
	c, err := New(secret)
	require.NoError(t, err)

	issued, err := c.Issue(payload())
	require.NoError(t, err)
	assert.Len(t, issued.Salt, SaltSize)
	assert.True(t, WellFormed(issued.Token))
	assert.True(t, c.Verify(issued.Token, issued.Salt, payload()))
}

func TestSamePayloadNeverRepeatsToken(t *testing.T) {
	c, err := New(secret)
	require.NoError(t, err)

	seen := make(map[string]struct{})
	for range 200 {
		issued, err := c.Issue(payload())
		require.NoError(t, err)
		_, dup := seen[issued.Token]
		require.False(t, dup, "token repeated")
		seen[issued.Token] = struct{}{}
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	c, err := New(secret)
	require.NoError(t, err)
	issued, err := c.Issue(payload())
	require.NoError(t, err)

	t.Run("different payload", func(t *testing.T) {
		p := payload()
		p.OwnerMobile = "1111111111"
		assert.False(t, c.Verify(issued.Token, issued.Salt, p))
	})

	t.Run("different salt", func(t *testing.T) {
		salt := bytes.Clone(issued.Salt)
		salt[0] ^= 0xff
		assert.False(t, c.Verify(issued.Token, salt, payload()))
	})

	t.Run("different server secret", func(t *testing.T) {
		other, err := New([]byte("another-secret-of-32-bytes-long!"))
		require.NoError(t, err)
		assert.False(t, other.Verify(issued.Token, issued.Salt, payload()))
	})

	t.Run("garbage", func(t *testing.T) {
		assert.False(t, c.Verify("not-a-token", issued.Salt, payload()))
		assert.False(t, WellFormed("not-a-token"))
		assert.False(t, WellFormed(""))
	})
}

func TestIssueFailsWithoutEntropy(t *testing.T) {
	c, err := New(secret, WithRandom(failingReader{}))
	require.NoError(t, err)

	_, err = c.Issue(payload())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIssuanceFailed)
}

func TestDeterministicWithFixedEntropy(t *testing.T) {
	entropy := bytes.Repeat([]byte{7}, 64)
	a, err := New(secret, WithRandom(bytes.NewReader(entropy)))
	require.NoError(t, err)
	b, err := New(secret, WithRandom(bytes.NewReader(entropy)))
	require.NoError(t, err)

	ia, err := a.Issue(payload())
	require.NoError(t, err)
	ib, err := b.Issue(payload())
	require.NoError(t, err)
	assert.Equal(t, ia.Token, ib.Token, "the token is a function of entropy, secret and payload only")
}
