package tokenstore

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsignedJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	enc := func(v any) string {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(b)
	}
	header := map[string]any{"alg": "none", "typ": "JWT"}
	return enc(header) + "." + enc(claims) + "."
}

func TestCleanStripsBearerPrefix(t *testing.T) {
	assert.Equal(t, "abc123", Clean("Bearer abc123"))
	assert.Equal(t, "abc123", Clean("bearer abc123"))
	assert.Equal(t, "abc123", Clean("  abc123\n"))
	assert.Equal(t, "abc123", Clean("abc123"))
}

func TestSetCleansToken(t *testing.T) {
	s := New("")
	s.Set("Bearer  tok")
	assert.Equal(t, "tok", s.Get())
}

func TestExpiryReadsExpClaim(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	s := New(unsignedJWT(t, map[string]any{"exp": exp.Unix()}))

	got, err := s.Expiry()
	require.NoError(t, err)
	assert.True(t, got.Equal(exp), "expected %v, got %v", exp, got)
}

func TestExpiryErrors(t *testing.T) {
	_, err := New("").Expiry()
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = New("not-a-jwt").Expiry()
	assert.Error(t, err)

	_, err = New(unsignedJWT(t, map[string]any{"sub": "nobody"})).Expiry()
	assert.Error(t, err)
}

func TestMasked(t *testing.T) {
	s := New("")
	assert.Equal(t, "", s.Masked())

	s.Set("shorttoken")
	assert.Equal(t, "shorttoken", s.Masked())

	s.Set("abcdefgh0123456789ijklmnop")
	assert.Equal(t, "abcdefgh...ijklmnop", s.Masked())
}
