package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"social_auth/internal/common"
	"social_auth/internal/domain/model"
	"social_auth/internal/domain/repository"
)

// PublicProfile is what anyone may see about a user.
type PublicProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	model.Profile
	// Self is set when the viewer owns the profile.
	Self bool `json:"self"`
}

type UserService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// GetByID looks a user up by id. Ids that are not UUIDs cannot exist.
func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	notFound := common.NewError(common.ErrNotFound, "No user found with that ID")
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, notFound
		}
		return nil, oops.In("users").Code("USER_LOOKUP_FAILED").With("user_id", id).Wrap(err)
	}
	return user, nil
}

// Profile returns the public view of user id. viewer may be nil for
// anonymous visitors.
func (s *UserService) Profile(ctx context.Context, id string, viewer *model.User) (*PublicProfile, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PublicProfile{
		ID:       user.ID,
		Username: user.Username,
		Profile:  user.Profile,
		Self:     viewer != nil && viewer.ID == user.ID,
	}, nil
}
