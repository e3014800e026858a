package services

import (
	"context"
	"errors"

	"github.com/cloudpanel/authcore/internal/store"
	"github.com/cloudpanel/authcore/types"
)

// UserRepository defines storage operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, id string, upd types.UserUpdate) (types.User, error)
}

// UserService encapsulates user use-cases. Every user it returns is
// sanitized.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, mapUserError("user.get_by_id", err)
	}
	return user.Sanitized(), nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return types.User{}, mapUserError("user.get_by_email", err)
	}
	return user.Sanitized(), nil
}

// Update merges upd into the user with the given id.
func (s *UserService) Update(ctx context.Context, id string, upd types.UserUpdate) (types.User, error) {
	if upd.Email != nil && !ValidEmail(*upd.Email) {
		return types.User{}, ErrInvalidEmailFormat
	}
	user, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		return types.User{}, mapUserError("user.update", err)
	}
	return user.Sanitized(), nil
}

func mapUserError(operation string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrUserNotFound
	case errors.Is(err, store.ErrDuplicateEmail), errors.Is(err, store.ErrInvalidRecord):
		return err
	default:
		return internalError(operation, err)
	}
}
