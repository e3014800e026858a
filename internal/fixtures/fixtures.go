// Package fixtures seeds demo users before the server takes traffic.
package fixtures

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/cloudpanel/authcore/internal/services"
	"github.com/cloudpanel/authcore/types"
)

// UserFixture is one demo user. Role defaults to user.
type UserFixture struct {
	Email    string         `yaml:"email"`
	Password string         `yaml:"password"`
	Name     string         `yaml:"name"`
	Role     types.Role     `yaml:"role"`
	Profile  *types.Profile `yaml:"profile"`
}

type document struct {
	Users []UserFixture `yaml:"users"`
}

// Parse decodes a fixture document. Unknown fields are rejected.
func Parse(data []byte) ([]UserFixture, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, oops.Code("FIXTURES_PARSE_FAILED").Wrap(err)
	}

	for i, u := range doc.Users {
		if u.Email == "" || u.Password == "" {
			return nil, oops.Code("FIXTURES_INVALID").With("index", i).Errorf("fixture %d: email and password are required", i)
		}
		if u.Role != "" && !u.Role.Valid() {
			return nil, oops.Code("FIXTURES_INVALID").With("index", i).Errorf("fixture %d: unknown role %q", i, u.Role)
		}
	}
	return doc.Users, nil
}

// Registrar creates users with credentials.
type Registrar interface {
	Register(ctx context.Context, email, password, name string) (services.AuthResult, error)
}

// Updater changes stored users.
type Updater interface {
	Update(ctx context.Context, id string, upd types.UserUpdate) (types.User, error)
}

// Source returns the raw fixture document stored under key.
type Source interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// Result summarizes a load.
type Result struct {
	Created []types.User
	Skipped []string
}

// Loader registers fixtures through the auth service so they obey the
// same validation and hashing as real sign-ups.
type Loader struct {
	auth   Registrar
	users  Updater
	logger *slog.Logger
}

func NewLoader(auth Registrar, users Updater, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{auth: auth, users: users, logger: logger.With("component", "fixtures")}
}

// LoadFrom reads key from src and loads it.
func (l *Loader) LoadFrom(ctx context.Context, src Source, key string) (Result, error) {
	data, err := src.Read(ctx, key)
	if err != nil {
		return Result{}, err
	}
	fixtures, err := Parse(data)
	if err != nil {
		return Result{}, oops.With("key", key).Wrap(err)
	}
	return l.Load(ctx, fixtures)
}

// Load registers each fixture in order. Emails that are already registered
// are skipped; any other failure stops the load.
func (l *Loader) Load(ctx context.Context, fixtures []UserFixture) (Result, error) {
	var result Result
	for _, f := range fixtures {
		registered, err := l.auth.Register(ctx, f.Email, f.Password, f.Name)
		if errors.Is(err, services.ErrDuplicateEmail) {
			l.logger.InfoContext(ctx, "fixture user already exists", "email", f.Email)
			result.Skipped = append(result.Skipped, f.Email)
			continue
		}
		if err != nil {
			return result, fmt.Errorf("fixture %s: %w", f.Email, err)
		}

		user := registered.User
		if upd, ok := f.update(); ok {
			user, err = l.users.Update(ctx, user.ID, upd)
			if err != nil {
				return result, fmt.Errorf("fixture %s: %w", f.Email, err)
			}
		}
		result.Created = append(result.Created, user)
	}

	l.logger.InfoContext(ctx, "fixtures loaded", "created", len(result.Created), "skipped", len(result.Skipped))
	return result, nil
}

func (f UserFixture) update() (types.UserUpdate, bool) {
	var upd types.UserUpdate
	changed := false
	if f.Role != "" && f.Role != types.RoleUser {
		role := f.Role
		upd.Role = &role
		changed = true
	}
	if f.Profile != nil {
		upd.Profile = f.Profile
		changed = true
	}
	return upd, changed
}
