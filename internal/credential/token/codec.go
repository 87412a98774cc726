// Package token builds the opaque bearer tokens printed into QR codes.
//
// A token is base64url(id || tag) where id is 16 random bytes and tag is
// HMAC-SHA256 over id, the per-credential salt and the canonical payload,
// keyed by HKDF(serverSecret, salt). Verification at the gate is string
// equality against the stored token; Verify exists for audits and tests.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"qrpass/internal/credential/models"
)

const (
	idSize      = 16
	tagSize     = sha256.Size
	SaltSize    = 16
	keySize     = 32
	minSecret   = 16
	derivedInfo = "qrpass/token/v1"
)

var (
	// ErrIssuanceFailed wraps every serialization or entropy failure.
	ErrIssuanceFailed = errors.New("token issuance failed")
	ErrWeakSecret     = errors.New("token secret must be at least 16 bytes")
)

var encoding = base64.RawURLEncoding

// Issued is the output of one issuance.
type Issued struct {
	Token string
	Salt  []byte
}

type Codec struct {
	secret []byte
	random io.Reader
}

type Option func(*Codec)

// WithRandom replaces crypto/rand as the entropy source.
func WithRandom(r io.Reader) Option {
	return func(c *Codec) {
		c.random = r
	}
}

func New(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) < minSecret {
		return nil, ErrWeakSecret
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue mints a fresh salt and token for payload. Two calls with the same
// payload never return the same token.
func (c *Codec) Issue(payload models.Payload) (Issued, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Issued{}, fmt.Errorf("%w: serialize payload: %w", ErrIssuanceFailed, err)
	}

	buf := make([]byte, SaltSize+idSize)
	if _, err := io.ReadFull(c.random, buf); err != nil {
		return Issued{}, fmt.Errorf("%w: read entropy: %w", ErrIssuanceFailed, err)
	}
	salt, id := buf[:SaltSize], buf[SaltSize:]

	tag, err := c.tag(id, salt, body)
	if err != nil {
		return Issued{}, fmt.Errorf("%w: %w", ErrIssuanceFailed, err)
	}

	raw := make([]byte, 0, idSize+tagSize)
	raw = append(raw, id...)
	raw = append(raw, tag...)
	return Issued{
		Token: encoding.EncodeToString(raw),
		Salt:  append([]byte(nil), salt...),
	}, nil
}

// Verify reports whether token was issued by this codec for payload and salt.
func (c *Codec) Verify(token string, salt []byte, payload models.Payload) bool {
	raw, err := encoding.DecodeString(token)
	if err != nil || len(raw) != idSize+tagSize {
		return false
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	want, err := c.tag(raw[:idSize], salt, body)
	if err != nil {
		return false
	}
	return hmac.Equal(raw[idSize:], want)
}

func (c *Codec) tag(id, salt, body []byte) ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, c.secret, salt, []byte(derivedInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(id)
	mac.Write(salt)
	mac.Write(body)
	return mac.Sum(nil), nil
}

// WellFormed reports whether s has the shape of a token. It does not
// authenticate it.
func WellFormed(s string) bool {
	raw, err := encoding.DecodeString(s)
	return err == nil && len(raw) == idSize+tagSize
}
