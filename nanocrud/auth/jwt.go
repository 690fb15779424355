package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// JWTAuthenticator accepts HMAC-SHA256 signed bearer tokens. The token's
// subject becomes the user id.
type JWTAuthenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// JWTOption configures a JWTAuthenticator
type JWTOption func(*JWTAuthenticator)

// WithIssuer sets the iss claim on issued tokens and requires it on parsed ones
func WithIssuer(issuer string) JWTOption {
	return func(a *JWTAuthenticator) { a.issuer = issuer }
}

// WithClock overrides the time source used for issuing and validating
func WithClock(now func() time.Time) JWTOption {
	return func(a *JWTAuthenticator) { a.now = now }
}

// NewJWT creates an authenticator for secret
func NewJWT(secret []byte, opts ...JWTOption) (*JWTAuthenticator, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	a := &JWTAuthenticator{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

var _ Authenticator = (*JWTAuthenticator)(nil)

// Issue mints a token for subject valid for ttl
func (a *JWTAuthenticator) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Parse validates token and returns its user
func (a *JWTAuthenticator) Parse(token string) (*User, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("invalid token: missing subject")
	}
	return &User{ID: claims.Subject}, nil
}

// Authenticate reads the Authorization bearer token
func (a *JWTAuthenticator) Authenticate(r *http.Request) (*User, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrNoCredentials
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return nil, errors.New("authorization header is not a bearer token")
	}
	return a.Parse(strings.TrimSpace(header[len(bearerPrefix):]))
}
