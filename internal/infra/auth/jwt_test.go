package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderSignVerify(t *testing.T) {
	p, err := NewProvider("test-secret", time.Hour)
	require.NoError(t, err)

	token, err := p.Sign(42)
	require.NoError(t, err)

	claims, err := p.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
}

func TestProviderRejectsEmptySecret(t *testing.T) {
	_, err := NewProvider("", time.Hour)
	assert.Error(t, err)
}

func TestProviderRejectsForeignSignature(t *testing.T) {
	issuer, err := NewProvider("secret-a", time.Hour)
	require.NoError(t, err)
	verifier, err := NewProvider("secret-b", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Sign(42)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.Error(t, err)
}

func TestProviderRejectsExpiredToken(t *testing.T) {
	p, err := NewProvider("test-secret", time.Hour)
	require.NoError(t, err)
	p.expiry = -time.Minute

	token, err := p.Sign(42)
	require.NoError(t, err)

	_, err = p.Verify(token)
	assert.Error(t, err)
}

func TestProviderRejectsGarbage(t *testing.T) {
	p, err := NewProvider("test-secret", time.Hour)
	require.NoError(t, err)

	_, err = p.Verify("not.a.token")
	assert.Error(t, err)
}
