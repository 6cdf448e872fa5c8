package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuscore/backend-go/internal/token"
)

func newTestCodec(accessTTL, refreshTTL time.Duration) *token.Codec {
	return token.NewCodec(token.Options{
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
	})
}

func TestCodec_AccessRoundTrip(t *testing.T) {
	codec := newTestCodec(15*time.Minute, 7*24*time.Hour)

	signed, err := codec.SignAccess("42", "student", "family-1", "jti-access")
	require.NoError(t, err)

	claims, err := codec.VerifyAccess(signed)
	require.NoError(t, err)

	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, "family-1", claims.FamilyID)
	assert.Equal(t, "jti-access", claims.ID)
	assert.Equal(t, token.TypeAccess, claims.TokenType)
}

func TestCodec_RefreshRoundTrip(t *testing.T) {
	codec := newTestCodec(15*time.Minute, 7*24*time.Hour)

	signed, err := codec.SignRefresh("42", "family-1", "jti-refresh")
	require.NoError(t, err)

	claims, err := codec.VerifyRefresh(signed)
	require.NoError(t, err)

	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "family-1", claims.FamilyID)
	assert.Equal(t, "jti-refresh", claims.ID)
	assert.Equal(t, token.TypeRefresh, claims.TokenType)
}

func TestCodec_KindsAreNotInterchangeable(t *testing.T) {
	codec := newTestCodec(15*time.Minute, 7*24*time.Hour)

	access, err := codec.SignAccess("42", "student", "family-1", "jti-1")
	require.NoError(t, err)
	refresh, err := codec.SignRefresh("42", "family-1", "jti-2")
	require.NoError(t, err)

	// Each kind is signed with its own secret, so the cross
	// verification must fail.
	_, err = codec.VerifyRefresh(access)
	assert.ErrorIs(t, err, token.ErrTokenInvalid)

	_, err = codec.VerifyAccess(refresh)
	assert.ErrorIs(t, err, token.ErrTokenInvalid)
}

func TestCodec_WrongSecret(t *testing.T) {
	codec := newTestCodec(15*time.Minute, 7*24*time.Hour)
	other := token.NewCodec(token.Options{
		AccessSecret:  "different-access-secret",
		RefreshSecret: "different-refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	})

	signed, err := codec.SignRefresh("42", "family-1", "jti-1")
	require.NoError(t, err)

	_, err = other.VerifyRefresh(signed)
	assert.ErrorIs(t, err, token.ErrTokenInvalid)
}

func TestCodec_Expired(t *testing.T) {
	codec := newTestCodec(-time.Minute, -time.Minute)

	signed, err := codec.SignRefresh("42", "family-1", "jti-1")
	require.NoError(t, err)

	_, err = codec.VerifyRefresh(signed)
	assert.ErrorIs(t, err, token.ErrTokenExpired)
}

func TestCodec_DecodeUnverified(t *testing.T) {
	codec := newTestCodec(-time.Minute, -time.Minute)

	tests := []struct {
		name       string
		tokenInput func(t *testing.T) string
		wantNil    bool
		wantFamily string
	}{
		{
			name: "expired token still yields claims",
			tokenInput: func(t *testing.T) string {
				signed, err := codec.SignRefresh("42", "family-leaked", "jti-1")
				require.NoError(t, err)
				return signed
			},
			wantFamily: "family-leaked",
		},
		{
			name: "garbage yields nil",
			tokenInput: func(t *testing.T) string {
				return "not-a-token"
			},
			wantNil: true,
		},
		{
			name: "empty yields nil",
			tokenInput: func(t *testing.T) string {
				return ""
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := codec.DecodeUnverified(tt.tokenInput(t))
			if tt.wantNil {
				assert.Nil(t, claims)
				return
			}
			require.NotNil(t, claims)
			assert.Equal(t, tt.wantFamily, claims.FamilyID)
		})
	}
}

func TestHashToken(t *testing.T) {
	h1 := token.HashToken("token-a")
	h2 := token.HashToken("token-a")
	h3 := token.HashToken("token-b")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestNewJTI_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		jti := token.NewJTI()
		assert.Len(t, jti, 32)
		assert.False(t, seen[jti], "jti collision")
		seen[jti] = true
	}
}

func TestNewFamilyID_Unique(t *testing.T) {
	a := token.NewFamilyID()
	b := token.NewFamilyID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
