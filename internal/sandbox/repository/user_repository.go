package repository

import (
	"strings"
	"sync"
	"time"

	"github.com/eaglebank/webclient/shared/models"
)

// UserRepository keeps users and their pending email verification tokens in
// memory. Returned users are copies; callers write back through Update.
type UserRepository struct {
	mu            sync.RWMutex
	byID          map[string]*models.User
	byEmail       map[string]string
	verifications map[string]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:          make(map[string]*models.User),
		byEmail:       make(map[string]string),
		verifications: make(map[string]string),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) Create(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := emailKey(user.Email)
	if _, exists := r.byEmail[key]; exists {
		return ErrEmailTaken
	}
	u := *user
	r.byID[u.ID] = &u
	r.byEmail[key] = u.ID
	return nil
}

func (r *UserRepository) GetByID(id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[emailKey(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *r.byID[id]
	return &out, nil
}

// Update replaces the stored user, moving the email index when it changed.
func (r *UserRepository) Update(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	oldKey, newKey := emailKey(current.Email), emailKey(user.Email)
	if oldKey != newKey {
		if _, taken := r.byEmail[newKey]; taken {
			return ErrEmailTaken
		}
		delete(r.byEmail, oldKey)
		r.byEmail[newKey] = user.ID
	}
	u := *user
	r.byID[u.ID] = &u
	return nil
}

func (r *UserRepository) TouchLogin(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		t := at.UTC()
		u.LastLoginAt = &t
	}
}

func (r *UserRepository) SaveVerification(token, userID string) {
	r.mu.Lock()
	r.verifications[token] = userID
	r.mu.Unlock()
}

// ConsumeVerification returns the user the token was issued for. A token
// works once.
func (r *UserRepository) ConsumeVerification(token string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.verifications[token]
	if !ok {
		return "", ErrInvalidVerification
	}
	delete(r.verifications, token)
	return userID, nil
}
