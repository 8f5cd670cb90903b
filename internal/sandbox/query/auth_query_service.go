package query

import (
	"errors"
	"time"

	"github.com/eaglebank/webclient/internal/sandbox/repository"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/models"
	"github.com/eaglebank/webclient/shared/tokens"
	"github.com/eaglebank/webclient/shared/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("account not verified")
)

// AuthQueryService handles login. There's no command side for it because a
// login does not change any state the API exposes.
type AuthQueryService struct {
	users  *repository.UserRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthQueryService(users *repository.UserRepository, secret []byte, ttl time.Duration) *AuthQueryService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthQueryService{users: users, secret: secret, ttl: ttl, now: time.Now}
}

func (s *AuthQueryService) Login(cmd cqrs.LoginCommand) (string, error) {
	user, err := s.users.GetByEmail(cmd.Email)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if !utils.CheckPassword(cmd.Password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	if user.Status != models.UserStatusActive {
		return "", ErrNotVerified
	}
	now := s.now()
	token, err := tokens.Sign(s.secret, user.ID, user.Email, user.FirstName, now, s.ttl)
	if err != nil {
		return "", err
	}
	s.users.TouchLogin(user.ID, now)
	return token, nil
}
