package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid covers every verification failure: bad signature, malformed
// payload, expiry. Callers must not tell them apart.
var ErrTokenInvalid = errors.New("token is invalid or has expired")

// Clock is the subset of common.Clock the codec needs.
type Clock interface {
	Now() time.Time
}

// Claims is the verified content of a session token.
type Claims struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenTimePrecision is the granularity of iat and exp in issued tokens.
const TokenTimePrecision = time.Millisecond

func init() {
	// NumericDate decodes through float64, which can drop below the last
	// serialized digit. Encoding one unit finer than TokenTimePrecision lets
	// Verify round back to the exact issued instant.
	jwt.TimePrecision = time.Microsecond
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// TokenCodec signs and verifies HS256 session tokens bound to a user id.
// The secret is fixed at construction.
type TokenCodec struct {
	secret   []byte
	lifetime time.Duration
	clock    Clock
}

func NewTokenCodec(secret []byte, lifetime time.Duration, clock Clock) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token signing secret is required")
	}
	if lifetime <= 0 {
		return nil, fmt.Errorf("token lifetime must be positive, got %s", lifetime)
	}
	if clock == nil {
		clock = systemClock{}
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenCodec{secret: key, lifetime: lifetime, clock: clock}, nil
}

// Lifetime returns the configured token lifetime.
func (c *TokenCodec) Lifetime() time.Duration {
	return c.lifetime
}

// Issue signs a token for userID that expires after the configured lifetime.
func (c *TokenCodec) Issue(userID string) (string, error) {
	now := c.clock.Now().Truncate(TokenTimePrecision)
	claims := tokenClaims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.lifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of tokenString and returns its claims.
func (c *TokenCodec) Verify(tokenString string) (*Claims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.clock.Now),
	)
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.ID == "" || claims.IssuedAt == nil {
		return nil, ErrTokenInvalid
	}
	return &Claims{
		UserID:    claims.ID,
		IssuedAt:  claims.IssuedAt.Time.Round(TokenTimePrecision),
		ExpiresAt: claims.ExpiresAt.Time.Round(TokenTimePrecision),
	}, nil
}
