// Package profile reads and edits the signed-in user's profile.
package profile

import (
	"context"
	"errors"
	"sync"

	"github.com/eaglebank/webclient/internal/apiclient"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/models"
	"github.com/eaglebank/webclient/shared/validation"
)

const MsgUpdated = "Profile updated successfully"

var ErrNoUser = errors.New("user id not found")

type API interface {
	GetUser(ctx context.Context, q cqrs.GetUserQuery) models.Response[models.UserProfile]
	UpdateUser(ctx context.Context, cmd cqrs.UpdateProfileCommand) models.Response[models.UserProfile]
}

// Identity tells whose profile to load.
type Identity interface {
	UserID(ctx context.Context) string
}

type Service struct {
	api API
	who Identity

	mu      sync.RWMutex
	profile *models.UserProfile
}

func NewService(api API, who Identity) *Service {
	return &Service{api: api, who: who}
}

// Fetch loads the profile of the token's user and caches it.
func (s *Service) Fetch(ctx context.Context) (models.UserProfile, error) {
	userID := s.who.UserID(ctx)
	if userID == "" {
		return models.UserProfile{}, ErrNoUser
	}
	resp := s.api.GetUser(ctx, cqrs.GetUserQuery{UserID: userID, RequestingUserID: userID})
	if !resp.HasData() {
		if err := apiclient.Check(resp); err != nil {
			return models.UserProfile{}, err
		}
		return models.UserProfile{}, &apiclient.Error{Message: "Failed to load profile information"}
	}
	p := *resp.Data
	s.mu.Lock()
	s.profile = &p
	s.mu.Unlock()
	return p, nil
}

// Update validates and sends the changed fields. The returned profile merges
// the server's answer into the cached one; when the server answers without
// data the profile is fetched again.
func (s *Service) Update(ctx context.Context, upd models.ProfileUpdate) (models.UserProfile, string, error) {
	userID := s.who.UserID(ctx)
	if userID == "" {
		return models.UserProfile{}, "", ErrNoUser
	}
	if errs := validation.Struct(upd); errs != nil {
		return models.UserProfile{}, "", errs
	}

	resp := s.api.UpdateUser(ctx, cqrs.UpdateProfileCommand{UserID: userID, RequestingUserID: userID, ProfileUpdate: upd})
	if err := apiclient.Check(resp); err != nil {
		return models.UserProfile{}, "", err
	}
	msg := resp.Message
	if msg == "" {
		msg = MsgUpdated
	}

	if resp.Data == nil {
		p, err := s.Fetch(ctx)
		return p, msg, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	merged := *resp.Data
	if s.profile != nil {
		merged = merge(*s.profile, *resp.Data)
	}
	s.profile = &merged
	return merged, msg, nil
}

// Cached returns the last loaded profile.
func (s *Service) Cached() (models.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return models.UserProfile{}, false
	}
	return *s.profile, true
}

// Clear drops the cached profile.
func (s *Service) Clear() {
	s.mu.Lock()
	s.profile = nil
	s.mu.Unlock()
}

func merge(prev, next models.UserProfile) models.UserProfile {
	out := prev
	if next.ID != "" {
		out.ID = next.ID
	}
	if next.Email != "" {
		out.Email = next.Email
	}
	if next.FirstName != "" {
		out.FirstName = next.FirstName
	}
	if next.LastName != "" {
		out.LastName = next.LastName
	}
	if next.PhoneNumber != "" {
		out.PhoneNumber = next.PhoneNumber
	}
	if next.BirthDate != "" {
		out.BirthDate = next.BirthDate
	}
	if !next.CreatedAt.IsZero() {
		out.CreatedAt = next.CreatedAt
	}
	if next.LastLoginAt != nil {
		out.LastLoginAt = next.LastLoginAt
	}
	return out
}
