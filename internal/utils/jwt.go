package utils // package utils holds token and password helpers shared by auth handlers and middleware

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrClaims is returned by ParseAccessToken for a correctly signed token
// that lacks a subject or a role.
var ErrClaims = errors.New("access token: incomplete claims")

// Claims is the payload of an access token.  ShopID is only present for
// shop owners so the ACL gate can scope box mutations without a database
// round-trip.
type Claims struct {
	Role   string `json:"role"`
	ShopID *int64 `json:"shop_id,omitempty"`
	jwt.RegisteredClaims
}

// AccessToken is a signed HS256 JWT and the moment it stops being accepted.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken is handed to the client once; only HashRefreshRaw(Raw) is
// persisted.
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// NewAccessToken signs a token for username valid for ttlMin minutes.
func NewAccessToken(secret, username, role string, shopID *int64, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := Claims{
		Role:   role,
		ShopID: shopID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw against secret.  Only HS256 is accepted and
// tokens without an expiry are rejected.
func ParseAccessToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.Role == "" {
		return nil, ErrClaims
	}
	return claims, nil
}

// NewRefreshToken returns 48 random bytes, hex encoded, expiring after
// ttlDays.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: hex.EncodeToString(buf),
		Exp: time.Now().UTC().AddDate(0, 0, ttlDays),
	}, nil
}

// HashRefreshRaw is the lookup key stored for a refresh token.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
