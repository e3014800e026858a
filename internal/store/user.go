package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloudpanel/authcore/types"
)

// UserRegistry is the authoritative in-memory store of users.
//
// Every operation holds mu for its full duration, so operations are
// linearizable: of two concurrent Creates with the same email exactly one
// succeeds. Records are copied in and out; callers never share memory with
// the stored value.
type UserRegistry struct {
	mu      sync.RWMutex
	byID    map[string]types.User
	byEmail map[string]string
	now     func() time.Time
}

// NewUserRegistry creates an empty registry. now defaults to time.Now.
func NewUserRegistry(now func() time.Time) *UserRegistry {
	if now == nil {
		now = time.Now
	}
	return &UserRegistry{
		byID:    make(map[string]types.User),
		byEmail: make(map[string]string),
		now:     now,
	}
}

func (r *UserRegistry) GetByID(_ context.Context, id string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return clone(user), nil
}

func (r *UserRegistry) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return clone(r.byID[id]), nil
}

// Create stores a new user. An empty ID is replaced by a fresh UUID and an
// empty role defaults to types.RoleUser. CreatedAt and UpdatedAt are set
// to the registry clock.
func (r *UserRegistry) Create(_ context.Context, user types.User) (types.User, error) {
	if user.Email == "" {
		return types.User{}, fmt.Errorf("%w: email is required", ErrInvalidRecord)
	}
	if user.Role == "" {
		user.Role = types.RoleUser
	}
	if !user.Role.Valid() {
		return types.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidRecord, user.Role)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[user.Email]; taken {
		return types.User{}, ErrDuplicateEmail
	}
	if _, taken := r.byID[user.ID]; taken {
		return types.User{}, ErrDuplicateID
	}

	now := r.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.byID[user.ID] = clone(user)
	r.byEmail[user.Email] = user.ID
	return user, nil
}

// Update merges upd into the user with the given id and refreshes UpdatedAt.
// Changing the email to one held by another user fails with ErrDuplicateEmail.
func (r *UserRegistry) Update(_ context.Context, id string, upd types.UserUpdate) (types.User, error) {
	if upd.Email != nil && *upd.Email == "" {
		return types.User{}, fmt.Errorf("%w: email is required", ErrInvalidRecord)
	}
	if upd.Role != nil && !upd.Role.Valid() {
		return types.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidRecord, *upd.Role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return types.User{}, ErrNotFound
	}

	if upd.Email != nil && *upd.Email != user.Email {
		if _, taken := r.byEmail[*upd.Email]; taken {
			return types.User{}, ErrDuplicateEmail
		}
		delete(r.byEmail, user.Email)
		r.byEmail[*upd.Email] = id
		user.Email = *upd.Email
	}
	if upd.Name != nil {
		user.Name = *upd.Name
	}
	if upd.Role != nil {
		user.Role = *upd.Role
	}
	if upd.PasswordHash != nil {
		user.PasswordHash = *upd.PasswordHash
	}
	if upd.Profile != nil {
		user.Profile = upd.Profile.Clone()
	}
	user.UpdatedAt = r.now()

	r.byID[id] = clone(user)
	return clone(user), nil
}

// Count returns the number of registered users.
func (r *UserRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func clone(u types.User) types.User {
	u.Profile = u.Profile.Clone()
	return u
}
