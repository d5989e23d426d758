package signing

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	expires := time.Unix(1700000000, 0)
	unix := strconv.FormatInt(expires.Unix(), 10)
	tag := s.Sign("7:abc", expires)
	require.Len(t, tag, 64)

	assert.NoError(t, s.Verify("7:abc", unix, tag))
	assert.ErrorIs(t, s.Verify("8:abc", unix, tag), ErrMismatch, "other subject")
	assert.ErrorIs(t, s.Verify("7:abc", "42", tag), ErrMismatch, "other expiry")
	assert.ErrorIs(t, s.Verify("7:abc", "soon", tag), ErrMalformed)
	assert.ErrorIs(t, s.Verify("7:abc", unix, "zz"+tag[2:]), ErrMalformed)
}

func TestSubjectAndExpiryDoNotRunTogether(t *testing.T) {
	s := NewSigner([]byte("k"))
	tag := s.Sign("1:2", time.Unix(34, 0))
	assert.ErrorIs(t, s.Verify("1:23", "4", tag), ErrMismatch)
}

func TestRandomKeyIsPerSigner(t *testing.T) {
	a := NewSigner(nil)
	b := NewSigner(nil)
	tag := a.Sign("1:x", time.Unix(1700000000, 0))
	assert.NoError(t, a.Verify("1:x", "1700000000", tag))
	assert.ErrorIs(t, b.Verify("1:x", "1700000000", tag), ErrMismatch)
}

func TestSecretIsCopied(t *testing.T) {
	secret := []byte("mutable")
	s := NewSigner(secret)
	tag := s.Sign("1:x", time.Unix(1, 0))
	secret[0] = 'X'
	assert.NoError(t, s.Verify("1:x", "1", tag))
}
