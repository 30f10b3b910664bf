package usecase

import (
	"context"
	"strings"
	"time"

	"chatkit/internal/domain/entity"
	"chatkit/internal/domain/repository"
	"chatkit/pkg/errors"
)

type UserUseCase struct {
	userRepo repository.UserRepository
}

func NewUserUseCase(userRepo repository.UserRepository) *UserUseCase {
	return &UserUseCase{
		userRepo: userRepo,
	}
}

// SearchUsers lists chat partners matching the query by username or email,
// case-insensitive, always excluding the requesting user. An empty query
// returns everyone else up to the limit.
func (uc *UserUseCase) SearchUsers(ctx context.Context, requesterID, query string, limit int) ([]*entity.User, error) {
	users, err := uc.userRepo.List(ctx, limit)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))

	matched := make([]*entity.User, 0, len(users))
	for _, user := range users {
		if user.ID == requesterID {
			continue
		}
		if query == "" ||
			strings.Contains(strings.ToLower(user.Username), query) ||
			strings.Contains(strings.ToLower(user.Email), query) {
			matched = append(matched, user)
		}
	}

	return matched, nil
}

type UpdateProfileInput struct {
	Username        string
	ProfileImageURL string
}

func (uc *UserUseCase) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.NotFound("User", err)
	}

	if input.Username != "" {
		user.Username = input.Username
	}
	if input.ProfileImageURL != "" {
		user.ProfileImageURL = input.ProfileImageURL
	}
	user.UpdatedAt = time.Now()

	if err := uc.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}
