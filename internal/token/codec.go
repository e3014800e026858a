// Package token issues and verifies the signed bearer tokens that prove a
// user's identity for a fixed validity window.
package token

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"

	"github.com/cloudpanel/authcore/types"
)

// Validity is how long a token is accepted after it was issued.
const Validity = 24 * time.Hour

var (
	// ErrMalformed is returned when the token does not have the structure of
	// a signed token, or its signed content cannot be decoded.
	ErrMalformed = errors.New("malformed token")

	// ErrBadSignature is returned when the signature does not match the
	// signed content under the codec's secret.
	ErrBadSignature = errors.New("bad token signature")

	// ErrExpired is returned for an authentic token past its expiry.
	ErrExpired = errors.New("token expired")
)

// Payload is the claim set carried inside a token.
type Payload struct {
	UserID    string
	Email     string
	Role      types.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type claims struct {
	UserID string     `json:"uid"`
	Email  string     `json:"email"`
	Role   types.Role `json:"role"`
	jwt.RegisteredClaims
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock replaces time.Now as the codec's time source.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// Codec signs and verifies HS256 tokens with a server-held secret.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// NewCodec creates a Codec for the given secret.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, oops.Code("TOKEN_SECRET_EMPTY").Errorf("token secret cannot be empty")
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
		// Expiry is checked by Verify against the codec clock.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Sign issues a token for user, valid for Validity from now.
// It returns the token together with the payload it encodes.
func (c *Codec) Sign(user types.User) (string, Payload, error) {
	now := c.now()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(Validity))

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	})
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", Payload{}, oops.Code("TOKEN_SIGN_FAILED").
			With("user_id", user.ID).
			Wrap(err)
	}

	return signed, Payload{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
	}, nil
}

// Verify authenticates tokenString and returns its payload.
//
// Checks run in order: structure (ErrMalformed), signature over the raw
// signed segments (ErrBadSignature), claim decoding (ErrMalformed), expiry
// (ErrExpired). No claim is decoded before the signature has been checked.
func (c *Codec) Verify(tokenString string) (Payload, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Payload{}, ErrMalformed
	}

	sig, err := base64.RawURLEncoding.Strict().DecodeString(parts[2])
	if err != nil {
		return Payload{}, ErrBadSignature
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, c.secret); err != nil {
		return Payload{}, ErrBadSignature
	}

	var cl claims
	if _, err := c.parser.ParseWithClaims(tokenString, &cl, c.key); err != nil {
		return Payload{}, errors.Join(ErrMalformed, err)
	}
	if cl.UserID == "" || cl.IssuedAt == nil || cl.ExpiresAt == nil {
		return Payload{}, ErrMalformed
	}

	payload := Payload{
		UserID:    cl.UserID,
		Email:     cl.Email,
		Role:      cl.Role,
		IssuedAt:  cl.IssuedAt.Time,
		ExpiresAt: cl.ExpiresAt.Time,
	}
	if c.now().After(payload.ExpiresAt) {
		return Payload{}, ErrExpired
	}
	return payload, nil
}

func (c *Codec) key(*jwt.Token) (any, error) {
	return c.secret, nil
}
