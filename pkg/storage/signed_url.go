package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed and forged tokens.
	ErrInvalidToken = errors.New("storage: invalid signed token")
	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("storage: signed token expired")
)

// SignedRef is the payload carried by a signed token: the subject it grants
// access to (a saved plan, an uploaded file) and an opaque reference bound to it.
type SignedRef struct {
	Subject   string
	Ref       string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates signed access tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a token for subject and ref.
func (s *SignedURLSigner) Generate(subject, ref string) (string, time.Time, error) {
	if subject == "" || ref == "" {
		return "", time.Time{}, fmt.Errorf("subject and ref required")
	}
	if strings.Contains(subject, ".") {
		return "", time.Time{}, fmt.Errorf("subject must not contain '.'")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedRef := base64.RawURLEncoding.EncodeToString([]byte(ref))
	token := strings.Join([]string{subject, ts, encodedRef, s.sign(subject, ts, encodedRef)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded reference.
// When allowExpired is true, the timestamp check is skipped (used by cleanup routines).
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (SignedRef, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return SignedRef{}, ErrInvalidToken
	}
	subject, ts, encodedRef, signature := parts[0], parts[1], parts[2], parts[3]

	expected := s.sign(subject, ts, encodedRef)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return SignedRef{}, ErrInvalidToken
	}
	rawRef, err := base64.RawURLEncoding.DecodeString(encodedRef)
	if err != nil {
		return SignedRef{}, fmt.Errorf("%w: decode ref: %v", ErrInvalidToken, err)
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return SignedRef{}, fmt.Errorf("%w: invalid timestamp", ErrInvalidToken)
	}

	ref := SignedRef{Subject: subject, Ref: string(rawRef), ExpiresAt: time.Unix(expUnix, 0)}
	if !allowExpired && s.now().After(ref.ExpiresAt) {
		return ref, ErrTokenExpired
	}
	return ref, nil
}

func (s *SignedURLSigner) sign(subject, ts, encodedRef string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(subject + "|" + ts + "|" + encodedRef))
	return hex.EncodeToString(mac.Sum(nil))
}
