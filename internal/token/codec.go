package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Codec errors
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// AccessClaims is the payload of a signed access token
type AccessClaims struct {
	Role      string `json:"role"`
	FamilyID  string `json:"familyId"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a signed refresh token
type RefreshClaims struct {
	FamilyID  string `json:"familyId"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Options configures a Codec. Secrets and lifetimes are independent per
// token kind.
type Options struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Codec signs and verifies the two token kinds used by the session
// lifecycle: short-lived access tokens and rotating refresh tokens.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewCodec creates a new token codec instance
func NewCodec(opts Options) *Codec {
	return &Codec{
		accessSecret:  []byte(opts.AccessSecret),
		refreshSecret: []byte(opts.RefreshSecret),
		accessTTL:     opts.AccessTTL,
		refreshTTL:    opts.RefreshTTL,
	}
}

// AccessTTL returns the configured access token lifetime
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the configured refresh token lifetime
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// SignAccess produces a signed access token for the given user
func (c *Codec) SignAccess(userID string, role, familyID, jti string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Role:      role,
		FamilyID:  familyID,
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.accessSecret)
}

// SignRefresh produces a signed refresh token for the given user
func (c *Codec) SignRefresh(userID string, familyID, jti string) (string, error) {
	now := time.Now()
	claims := RefreshClaims{
		FamilyID:  familyID,
		TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshSecret)
}

// VerifyAccess checks the signature and expiry of an access token and
// returns its claims
func (c *Codec) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.verify(tokenString, claims, c.accessSecret); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeAccess {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// VerifyRefresh checks the signature and expiry of a refresh token and
// returns its claims
func (c *Codec) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.verify(tokenString, claims, c.refreshSecret); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeRefresh {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (c *Codec) verify(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}

// DecodeUnverified extracts refresh claims without checking the
// signature or expiry. Used only to recover a familyId for emergency
// revocation after verification has already failed; never to authorize.
// Returns nil when the token is not structurally parseable.
func (c *Codec) DecodeUnverified(tokenString string) *RefreshClaims {
	claims := &RefreshClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil
	}
	return claims
}

// HashToken returns the hex-encoded SHA-256 digest of a raw token
// string. Only this digest is ever persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewJTI generates a unique per-token identifier from a
// cryptographically secure random source (16 bytes, hex encoded)
func NewJTI() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is unrecoverable
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// NewFamilyID generates the identifier shared by every token descended
// from one login
func NewFamilyID() string {
	return uuid.NewString()
}
