package query

import (
	"github.com/eaglebank/webclient/internal/sandbox/repository"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/models"
)

type UserQueryService struct {
	users *repository.UserRepository
}

func NewUserQueryService(users *repository.UserRepository) *UserQueryService {
	return &UserQueryService{users: users}
}

func (s *UserQueryService) GetUser(q cqrs.GetUserQuery) (*models.UserProfile, error) {
	if q.UserID != q.RequestingUserID {
		return nil, repository.ErrForbidden
	}
	user, err := s.users.GetByID(q.UserID)
	if err != nil {
		return nil, err
	}
	profile := models.ProfileFromUser(user)
	return &profile, nil
}
