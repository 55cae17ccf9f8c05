package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/booking-ledger/internal"
)

// Claims carried by the access tokens issued by the identity provider.
type Claims struct {
	UserID      int64    `json:"user_id"`
	Email       string   `json:"email"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// User converts the claims into the caller stored on the request context.
func (c *Claims) User() *internal.User {
	return &internal.User{
		ID:          c.UserID,
		Email:       c.Email,
		Permissions: append([]string(nil), c.Permissions...),
	}
}

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// JWTVerifier checks RS256 tokens against the configured public key. This
// service never issues tokens.
type JWTVerifier struct {
	publicKey *rsa.PublicKey
	issuer    string
	leeway    time.Duration
}

type VerifierOption func(*JWTVerifier)

func WithIssuer(issuer string) VerifierOption {
	return func(v *JWTVerifier) { v.issuer = issuer }
}

func WithLeeway(leeway time.Duration) VerifierOption {
	return func(v *JWTVerifier) { v.leeway = leeway }
}

func NewJWTVerifier(publicKey *rsa.PublicKey, opts ...VerifierOption) *JWTVerifier {
	v := &JWTVerifier{publicKey: publicKey, leeway: 30 * time.Second}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateToken validates a JWT token and returns claims
func (v *JWTVerifier) ValidateToken(tokenString string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, internal.ErrInvalidToken
	}

	// older tokens only carry the user id in the subject
	if claims.UserID == 0 && claims.Subject != "" {
		id, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			return nil, internal.ErrInvalidToken
		}
		claims.UserID = id
	}
	if claims.UserID <= 0 {
		return nil, internal.ErrInvalidToken
	}

	return claims, nil
}
