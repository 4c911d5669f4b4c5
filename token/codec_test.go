package token_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-session-authority/token"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

func newTestCodec(t *testing.T, now time.Time) *token.Codec {
	t.Helper()
	codec, err := token.New(testSecret, "HS256", token.WithNowFunc(func() time.Time { return now }))
	require.NoError(t, err)
	return codec
}

func TestNewRejectsUnsupportedAlgorithm(t *testing.T) {
	_, err := token.New(testSecret, "RS256")
	require.Error(t, err)

	_, err = token.New(testSecret, "none")
	require.Error(t, err)

	_, err = token.New("", "HS256")
	require.Error(t, err)
}

func TestIssueAndDecode(t *testing.T) {
	now := time.Now()
	codec := newTestCodec(t, now)

	raw, err := codec.Issue("alice", "active", 5*time.Minute)
	require.NoError(t, err)

	claims, err := codec.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
	require.Equal(t, "active", claims.Status)
	require.NotEmpty(t, claims.TokenID)
	require.Equal(t, now.Add(5*time.Minute).Unix(), claims.ExpiresAt.Unix())
}

func TestDecodeExpiredToken(t *testing.T) {
	issuedAt := time.Now().Add(-time.Hour)
	issuer := newTestCodec(t, issuedAt)

	raw, err := issuer.Issue("alice", "active", 5*time.Minute)
	require.NoError(t, err)

	codec := newTestCodec(t, time.Now())
	_, err = codec.Decode(raw)
	require.ErrorIs(t, err, token.ErrExpired)

	// Signature-only re-decode still recovers the claims.
	claims, err := codec.DecodeExpired(raw)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
}

func TestDecodeBadSignature(t *testing.T) {
	now := time.Now()
	codec := newTestCodec(t, now)

	other, err := token.New("a-different-secret", "HS256")
	require.NoError(t, err)
	raw, err := other.Issue("alice", "active", 5*time.Minute)
	require.NoError(t, err)

	_, err = codec.Decode(raw)
	require.ErrorIs(t, err, token.ErrBadSignature)

	// DecodeExpired never skips the signature check.
	_, err = codec.DecodeExpired(raw)
	require.ErrorIs(t, err, token.ErrBadSignature)
}

func TestDecodeTamperedPayload(t *testing.T) {
	codec := newTestCodec(t, time.Now())

	raw, err := codec.Issue("alice", "active", 5*time.Minute)
	require.NoError(t, err)

	tampered := []byte(raw)
	tampered[len(tampered)/2] ^= 0x01

	_, err = codec.Decode(string(tampered))
	require.Error(t, err)
}

func TestDecodeMalformedToken(t *testing.T) {
	codec := newTestCodec(t, time.Now())

	for _, raw := range []string{"", "garbage", "a.b", "a.b.c"} {
		_, err := codec.Decode(raw)
		require.ErrorIs(t, err, token.ErrMalformed, "token %q", raw)
	}
}

func TestIssuedTokensAreUnique(t *testing.T) {
	codec := newTestCodec(t, time.Now())

	first, err := codec.Issue("alice", "active", 5*time.Minute)
	require.NoError(t, err)
	second, err := codec.Issue("alice", "active", 5*time.Minute)
	require.NoError(t, err)

	// jti makes two tokens for the same subject distinct.
	require.NotEqual(t, first, second)
}
