package command

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/eaglebank/webclient/internal/sandbox/repository"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/models"
	"github.com/eaglebank/webclient/shared/utils"
)

type UserCommandService struct {
	users *repository.UserRepository
	log   *zap.SugaredLogger
}

func NewUserCommandService(users *repository.UserRepository, log *zap.SugaredLogger) *UserCommandService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &UserCommandService{users: users, log: log}
}

// UpdateUser applies the non-empty fields of the update. Users may only
// change their own profile.
func (s *UserCommandService) UpdateUser(cmd cqrs.UpdateProfileCommand) (*models.UserProfile, error) {
	if cmd.UserID != cmd.RequestingUserID {
		return nil, repository.ErrForbidden
	}
	user, err := s.users.GetByID(cmd.UserID)
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(cmd.Email); v != "" {
		user.Email = v
	}
	if v := strings.TrimSpace(cmd.FirstName); v != "" {
		user.FirstName = v
	}
	if v := strings.TrimSpace(cmd.LastName); v != "" {
		user.LastName = v
	}
	if v := strings.TrimSpace(cmd.PhoneNumber); v != "" {
		user.PhoneNumber = v
	}
	if cmd.Password != "" {
		hash, err := utils.HashPassword(cmd.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	if err := s.users.Update(user); err != nil {
		return nil, err
	}
	s.log.Infow("user updated", "userId", user.ID)
	profile := models.ProfileFromUser(user)
	return &profile, nil
}
