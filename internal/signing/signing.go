// Package signing mints and checks the HMAC-SHA256 tags carried by
// attachment references.
package signing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

var (
	// ErrMalformed means the expiry or the tag could not be decoded.
	ErrMalformed = errors.New("malformed signature")
	// ErrMismatch means the tag does not cover subject and expiry.
	ErrMismatch = errors.New("signature mismatch")
)

// Signer tags a subject together with an expiry.
type Signer struct {
	key []byte
}

// NewSigner returns a Signer keyed with secret, or with a random key when
// secret is empty. Tags from a random key die with the process.
func NewSigner(secret []byte) *Signer {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		// crypto/rand.Read does not fail on supported platforms.
		_, _ = rand.Read(secret)
	}
	return &Signer{key: append([]byte(nil), secret...)}
}

// Sign returns the hex tag for subject valid until expires.
func (s *Signer) Sign(subject string, expires time.Time) string {
	return hex.EncodeToString(s.mac(subject, expires.Unix()))
}

// Verify checks tag against subject and the decimal unix expiry. It does not
// compare the expiry with the clock.
func (s *Signer) Verify(subject, expires, tag string) error {
	unix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrMalformed
	}
	got, err := hex.DecodeString(tag)
	if err != nil {
		return ErrMalformed
	}
	if !hmac.Equal(got, s.mac(subject, unix)) {
		return ErrMismatch
	}
	return nil
}

func (s *Signer) mac(subject string, unix int64) []byte {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(subject))
	h.Write([]byte{0})
	h.Write(strconv.AppendInt(nil, unix, 10))
	return h.Sum(nil)
}
