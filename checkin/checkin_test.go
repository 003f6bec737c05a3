package checkin

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	issuer := NewIssuer("top-secret")

	code, err := issuer.Sign("evt1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	assert.NoError(t, issuer.Verify(code, "evt1"))
	assert.ErrorIs(t, issuer.Verify(code, "evt2"), ErrWrongEvent)
}

func TestVerifyExpired(t *testing.T) {
	issuer := NewIssuer("top-secret")
	code, err := issuer.Sign("evt1", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	assert.ErrorIs(t, issuer.Verify(code, "evt1"), ErrInvalidToken)
}

func TestVerifyWrongSecret(t *testing.T) {
	code, err := NewIssuer("one").Sign("evt1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	assert.ErrorIs(t, NewIssuer("two").Verify(code, "evt1"), ErrInvalidToken)
	assert.ErrorIs(t, NewIssuer("one").Verify("garbage", "evt1"), ErrInvalidToken)
}

func TestNoSecret(t *testing.T) {
	issuer := NewIssuer("")
	_, err := issuer.Sign("evt1", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrNoSecret)
	assert.ErrorIs(t, issuer.Verify("x", "evt1"), ErrNoSecret)
}

func TestQRCode(t *testing.T) {
	png, err := QRCode("some-code")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestVerifyAtScanTime(t *testing.T) {
	issuer := NewIssuer("top-secret")
	expires := time.Now().Add(-time.Hour)
	code, err := issuer.Sign("evt1", expires)
	require.NoError(t, err)

	assert.NoError(t, issuer.VerifyAt(code, "evt1", expires.Add(-30*time.Minute)))
	assert.ErrorIs(t, issuer.VerifyAt(code, "evt1", expires.Add(time.Minute)), ErrInvalidToken)
	assert.ErrorIs(t, issuer.Verify(code, "evt1"), ErrInvalidToken)
}
