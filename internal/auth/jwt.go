// Package auth implements identity for the messaging API: issuing and
// verifying identity tokens, hashing passwords, resolving the caller's
// identity for each request, and the authorization rules built on top of it.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. POST /auth/register or /auth/login → server issues a signed JWT for the username
//  2. The client sends that token back on every request (Authorization: Bearer,
//     or a "_token" field in the JSON body / query string)
//  3. The Authenticate middleware verifies it and attaches an Identity to the context.
//     A missing or bad token simply leaves the request anonymous.
//  4. Policy checks (RequireLoggedIn, RequireSameUser, MessageParty, Recipient)
//     decide whether the resolved identity may touch the requested resource.
//
// WHY JWT?
// JWT is stateless — the server doesn't store sessions. Everything needed
// (username, expiry) is inside the signed token, and the signature ensures
// nobody can tamper with it without the secret key.
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"alice","iss":"messagely","iat":...,"exp":...,"jti":"..."}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

// ErrInvalidToken is returned by Verify for every kind of bad token:
// malformed, wrong signature, wrong issuer, expired, or missing subject.
// Callers should not need to tell these apart.
var ErrInvalidToken = errors.New("auth: invalid token")

// DefaultIssuer is the "iss" claim written into, and required on, every token.
const DefaultIssuer = "messagely"

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens.
// The same secret must be used for both operations.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret and token lifetime.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret, issuer string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token lifetime must be positive")
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// claims is the JWT payload. The username travels in "sub".
type claims struct {
	jwt.RegisteredClaims
}

// Issue creates and signs a token asserting username.
// It does not touch storage: whether the user exists is the caller's concern.
func (s *TokenService) Issue(username string) (string, error) {
	return s.issue(username, s.ttl)
}

// IssueWithDuration is Issue with a custom lifetime. Used by tests to mint
// already-expired tokens.
func (s *TokenService) IssueWithDuration(username string, d time.Duration) (string, error) {
	return s.issue(username, d)
}

func (s *TokenService) issue(username string, d time.Duration) (string, error) {
	if username == "" {
		return "", errors.New("auth: cannot issue a token without a username")
	}

	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			ID:        xid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses and verifies a token and returns the username it asserts.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid
//   - Algorithm is HS256 (prevents "alg: none" and algorithm confusion)
//   - Token is not expired, and carries an expiry at all
//   - Issuer matches
//
// Any failure comes back as ErrInvalidToken (wrapping the library's reason).
func (s *TokenService) Verify(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if c.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}

	return c.Subject, nil
}
