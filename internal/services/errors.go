package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"

	"github.com/cloudpanel/authcore/internal/password"
	"github.com/cloudpanel/authcore/internal/store"
	"github.com/cloudpanel/authcore/internal/token"
)

var (
	// ErrInvalidCredentials is the single failure returned by Login for an
	// unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrDuplicateEmail     = store.ErrDuplicateEmail
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrWeakPassword       = errors.New("weak password")
	ErrInvalidInput       = store.ErrInvalidRecord

	ErrMalformedToken = token.ErrMalformed
	ErrBadSignature   = token.ErrBadSignature
	ErrExpiredToken   = token.ErrExpired

	// ErrUserNotFound is returned when a user id or email has no record,
	// including a validly signed token whose user no longer exists.
	ErrUserNotFound = errors.New("user not found")

	ErrInternal = errors.New("internal failure")
)

// WeakPasswordError lists every password policy rule that was violated.
// It matches ErrWeakPassword with errors.Is.
type WeakPasswordError struct {
	Rules []password.Rule
}

func (e *WeakPasswordError) Error() string {
	return "weak password: " + strings.Join(e.Reasons(), "; ")
}

// Reasons returns the human-readable message of each violated rule.
func (e *WeakPasswordError) Reasons() []string {
	reasons := make([]string, len(e.Rules))
	for i, rule := range e.Rules {
		reasons[i] = rule.Message()
	}
	return reasons
}

func (e *WeakPasswordError) Is(target error) bool {
	return target == ErrWeakPassword
}

// IsTokenError reports whether err comes from token verification.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrBadSignature) ||
		errors.Is(err, ErrExpiredToken)
}

func internalError(operation string, err error) error {
	return oops.Code("AUTH_INTERNAL").
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", ErrInternal, err))
}
