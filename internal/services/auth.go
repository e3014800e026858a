package services

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cloudpanel/authcore/internal/logging"
	"github.com/cloudpanel/authcore/internal/password"
	"github.com/cloudpanel/authcore/internal/store"
	"github.com/cloudpanel/authcore/internal/token"
	"github.com/cloudpanel/authcore/types"
)

// SessionTTL is the lifetime of a session recorded at login. It mirrors the
// token validity window.
const SessionTTL = token.Validity

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether email has the shape local@domain.tld.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// SessionRepository records login sessions.
type SessionRepository interface {
	Put(ctx context.Context, sessionID, userID string, ttl time.Duration) (types.Session, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, hash string) (bool, error)
	DummyHash() string
}

// TokenCodec signs and verifies bearer tokens.
type TokenCodec interface {
	Sign(user types.User) (string, token.Payload, error)
	Verify(tokenString string) (token.Payload, error)
}

// EventPublisher receives auth lifecycle events.
type EventPublisher interface {
	PublishAuthEvent(ctx context.Context, event types.AuthEvent) error
}

// AuthServiceConfig holds the collaborators of an AuthService.
// Users, Sessions, Hasher and Codec are required.
type AuthServiceConfig struct {
	Users    UserRepository
	Sessions SessionRepository
	Hasher   PasswordHasher
	Codec    TokenCodec

	// Events is optional. Publish failures are logged and otherwise ignored.
	Events EventPublisher

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Registerer, when set, receives the auth attempt counter.
	Registerer prometheus.Registerer

	// Clock defaults to time.Now. Used for event timestamps.
	Clock func() time.Time

	// NewSessionID defaults to uuid.NewString.
	NewSessionID func() string
}

// AuthResult is returned by a successful Register or Login. User never
// carries a password hash. SessionID is empty after Register.
type AuthResult struct {
	User      types.User
	Token     string
	SessionID string
}

// AuthService implements register, login and token authentication.
type AuthService struct {
	users        UserRepository
	sessions     SessionRepository
	hasher       PasswordHasher
	codec        TokenCodec
	events       EventPublisher
	logger       *slog.Logger
	clock        func() time.Time
	newSessionID func() string
	attempts     *prometheus.CounterVec
}

const (
	opRegister     = "register"
	opLogin        = "login"
	opAuthenticate = "authenticate"
	opLogout       = "logout"

	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

func NewAuthService(cfg AuthServiceConfig) *AuthService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	newSessionID := cfg.NewSessionID
	if newSessionID == nil {
		newSessionID = uuid.NewString
	}

	s := &AuthService{
		users:        cfg.Users,
		sessions:     cfg.Sessions,
		hasher:       cfg.Hasher,
		codec:        cfg.Codec,
		events:       cfg.Events,
		logger:       logger.With("component", "auth_service"),
		clock:        clock,
		newSessionID: newSessionID,
	}

	if cfg.Registerer != nil {
		s.attempts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_auth_attempts_total",
				Help: "Total number of auth operations by operation and outcome",
			},
			[]string{"op", "outcome"},
		)
		cfg.Registerer.MustRegister(s.attempts)
	}
	return s
}

// Register validates the input, stores a new user with role user and
// returns it with a signed token. Email format and password policy are both
// checked; when both fail the returned error matches ErrInvalidEmailFormat
// and ErrWeakPassword. No session is recorded.
func (s *AuthService) Register(ctx context.Context, email, plaintext, name string) (AuthResult, error) {
	var invalid []error
	if !ValidEmail(email) {
		invalid = append(invalid, ErrInvalidEmailFormat)
	}
	if rules := password.ValidatePolicy(plaintext); len(rules) > 0 {
		invalid = append(invalid, &WeakPasswordError{Rules: rules})
	}
	if err := errors.Join(invalid...); err != nil {
		s.record(opRegister, outcomeRejected)
		return AuthResult{}, err
	}

	hash, err := s.hasher.Hash(ctx, plaintext)
	if err != nil {
		return AuthResult{}, s.fail(ctx, opRegister, internalError("register.hash", err))
	}

	user, err := s.users.Create(ctx, types.User{
		Email:        email,
		Name:         name,
		Role:         types.RoleUser,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			s.record(opRegister, outcomeRejected)
			return AuthResult{}, ErrDuplicateEmail
		}
		if errors.Is(err, store.ErrInvalidRecord) {
			s.record(opRegister, outcomeRejected)
			return AuthResult{}, err
		}
		return AuthResult{}, s.fail(ctx, opRegister, internalError("register.create", err))
	}

	signed, _, err := s.codec.Sign(user)
	if err != nil {
		return AuthResult{}, s.fail(ctx, opRegister, internalError("register.sign", err))
	}

	s.record(opRegister, outcomeSuccess)
	s.publish(ctx, types.EventUserRegistered, user)
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)

	return AuthResult{User: user.Sanitized(), Token: signed}, nil
}

// Login checks the credentials and on success signs a token and records a
// session. An unknown email and a wrong password both yield
// ErrInvalidCredentials, and both pay one password verification.
func (s *AuthService) Login(ctx context.Context, email, plaintext string) (AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return AuthResult{}, s.fail(ctx, opLogin, internalError("login.lookup", err))
		}
		// Unknown emails fail the same way as wrong passwords, including
		// when no hashing slot is available.
		if _, err := s.hasher.Verify(ctx, plaintext, s.hasher.DummyHash()); err != nil {
			return AuthResult{}, s.fail(ctx, opLogin, internalError("login.verify", err))
		}
		s.record(opLogin, outcomeRejected)
		return AuthResult{}, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(ctx, plaintext, user.PasswordHash)
	if err != nil {
		return AuthResult{}, s.fail(ctx, opLogin, internalError("login.verify", err))
	}
	if !ok {
		s.record(opLogin, outcomeRejected)
		return AuthResult{}, ErrInvalidCredentials
	}

	signed, _, err := s.codec.Sign(user)
	if err != nil {
		return AuthResult{}, s.fail(ctx, opLogin, internalError("login.sign", err))
	}

	session, err := s.sessions.Put(ctx, s.newSessionID(), user.ID, SessionTTL)
	if err != nil {
		return AuthResult{}, s.fail(ctx, opLogin, internalError("login.session", err))
	}

	s.record(opLogin, outcomeSuccess)
	s.publish(ctx, types.EventUserLoggedIn, user)
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID, "session_id", session.ID)

	return AuthResult{User: user.Sanitized(), Token: signed, SessionID: session.ID}, nil
}

// Authenticate verifies tokenString and returns the user it names.
// Token failures return ErrMalformedToken, ErrBadSignature or
// ErrExpiredToken; a valid token for a missing user returns ErrUserNotFound.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (types.User, error) {
	payload, err := s.codec.Verify(tokenString)
	if err != nil {
		s.record(opAuthenticate, outcomeRejected)
		s.logger.DebugContext(ctx, "token rejected", "reason", err.Error())
		return types.User{}, err
	}

	user, err := s.users.GetByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.record(opAuthenticate, outcomeRejected)
			return types.User{}, ErrUserNotFound
		}
		return types.User{}, s.fail(ctx, opAuthenticate, internalError("authenticate.lookup", err))
	}

	s.record(opAuthenticate, outcomeSuccess)
	return user.Sanitized(), nil
}

// Logout has no server-side effect. The token stays valid until it expires;
// the caller is expected to discard it.
func (s *AuthService) Logout(ctx context.Context) {
	s.record(opLogout, outcomeSuccess)
	s.logger.DebugContext(ctx, "logout")
}

func (s *AuthService) publish(ctx context.Context, eventType types.EventType, user types.User) {
	if s.events == nil {
		return
	}
	event := types.AuthEvent{
		Type:       eventType,
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
		OccurredAt: s.clock(),
	}
	if err := s.events.PublishAuthEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish auth event",
			"event_type", eventType, "user_id", user.ID, "error", err)
	}
}

func (s *AuthService) fail(ctx context.Context, op string, err error) error {
	s.record(op, outcomeError)
	logging.LogError(ctx, s.logger, op+" failed", err)
	return err
}

func (s *AuthService) record(op, outcome string) {
	if s.attempts != nil {
		s.attempts.WithLabelValues(op, outcome).Inc()
	}
}
