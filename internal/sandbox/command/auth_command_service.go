package command

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eaglebank/webclient/internal/sandbox/repository"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/models"
	"github.com/eaglebank/webclient/shared/utils"
)

// AuthCommandService registers users and activates them through the emailed
// verification token. The sandbox has no mailer: the token is logged.
type AuthCommandService struct {
	users      *repository.UserRepository
	autoVerify bool
	log        *zap.SugaredLogger
	now        func() time.Time
}

func NewAuthCommandService(users *repository.UserRepository, autoVerify bool, log *zap.SugaredLogger) *AuthCommandService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &AuthCommandService{users: users, autoVerify: autoVerify, log: log, now: time.Now}
}

// Signup creates a pending user and returns its profile together with the
// verification token. The token is empty when users are activated at once.
func (s *AuthCommandService) Signup(cmd cqrs.SignupCommand) (*models.UserProfile, string, error) {
	passwordHash, err := utils.HashPassword(cmd.Password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		ID:           utils.GenerateID("usr"),
		Email:        strings.TrimSpace(cmd.Email),
		PasswordHash: passwordHash,
		FirstName:    strings.TrimSpace(cmd.FirstName),
		LastName:     strings.TrimSpace(cmd.LastName),
		PhoneNumber:  strings.TrimSpace(cmd.PhoneNumber),
		BirthDate:    cmd.BirthDate,
		Status:       models.UserStatusPending,
		CreatedAt:    s.now().UTC(),
	}
	if s.autoVerify {
		user.Status = models.UserStatusActive
	}
	if err := s.users.Create(user); err != nil {
		return nil, "", err
	}

	var token string
	if !s.autoVerify {
		token = utils.GenerateToken()
		s.users.SaveVerification(token, user.ID)
		s.log.Infow("verification token issued", "userId", user.ID, "email", user.Email, "token", token)
	}
	profile := models.ProfileFromUser(user)
	return &profile, token, nil
}

func (s *AuthCommandService) VerifyAccount(cmd cqrs.VerifyAccountCommand) error {
	userID, err := s.users.ConsumeVerification(cmd.Token)
	if err != nil {
		return err
	}
	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}
	user.Status = models.UserStatusActive
	if err := s.users.Update(user); err != nil {
		return err
	}
	s.log.Infow("user verified", "userId", userID)
	return nil
}
