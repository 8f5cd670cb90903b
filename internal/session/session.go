// Package session owns the authentication token of the running client.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eaglebank/webclient/internal/storage"
	"github.com/eaglebank/webclient/shared/tokens"
)

// Watcher is told about token changes. Callbacks run synchronously after the
// change is stored, outside the store's lock.
type Watcher interface {
	TokenSet(ctx context.Context, token string)
	TokenCleared(ctx context.Context)
}

// WatcherFuncs adapts plain functions to Watcher. Nil fields are skipped.
type WatcherFuncs struct {
	OnSet     func(ctx context.Context, token string)
	OnCleared func(ctx context.Context)
}

func (w WatcherFuncs) TokenSet(ctx context.Context, token string) {
	if w.OnSet != nil {
		w.OnSet(ctx, token)
	}
}

func (w WatcherFuncs) TokenCleared(ctx context.Context) {
	if w.OnCleared != nil {
		w.OnCleared(ctx)
	}
}

type Store struct {
	store storage.Store
	log   *zap.SugaredLogger
	now   func() time.Time

	mu       sync.RWMutex
	token    string
	loaded   bool
	watchers map[int]Watcher
	nextID   int
}

func New(st storage.Store, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{
		store:    st,
		log:      log,
		now:      time.Now,
		watchers: make(map[int]Watcher),
	}
}

// Watch registers w and returns a function that removes it.
func (s *Store) Watch(w Watcher) (unwatch func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = w
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

// Token returns the current token, loading it from durable storage the first
// time it is asked for.
func (s *Store) Token(ctx context.Context) (string, bool) {
	s.mu.RLock()
	if s.loaded {
		tok := s.token
		s.mu.RUnlock()
		return tok, tok != ""
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.token, _ = s.store.Get(ctx, storage.KeyAuthToken)
		s.loaded = true
	}
	return s.token, s.token != ""
}

// SetToken stores a freshly issued token and notifies watchers.
func (s *Store) SetToken(ctx context.Context, token string) error {
	if err := s.store.Set(ctx, storage.KeyAuthToken, token); err != nil {
		return err
	}
	s.mu.Lock()
	s.token = token
	s.loaded = true
	watchers := s.snapshotWatchers()
	s.mu.Unlock()

	for _, w := range watchers {
		w.TokenSet(ctx, token)
	}
	return nil
}

// ClearToken forgets the token in memory and in storage. Watchers are only
// notified when there was a token to clear.
func (s *Store) ClearToken(ctx context.Context) error {
	_, had := s.Token(ctx)

	err := s.store.Delete(ctx, storage.KeyAuthToken)
	if err != nil {
		s.log.Warnw("failed to remove stored token", "error", err)
	}

	s.mu.Lock()
	s.token = ""
	s.loaded = true
	watchers := s.snapshotWatchers()
	s.mu.Unlock()

	if had {
		for _, w := range watchers {
			w.TokenCleared(ctx)
		}
	}
	return err
}

// IsValid decodes token without checking its signature and reports whether
// it carries an expiry in the future. Undecodable tokens are invalid.
func (s *Store) IsValid(token string) bool {
	if token == "" {
		return false
	}
	claims, err := tokens.Inspect(token)
	if err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.After(s.now())
}

// Valid reports whether the current token exists and has not expired.
func (s *Store) Valid(ctx context.Context) bool {
	tok, ok := s.Token(ctx)
	return ok && s.IsValid(tok)
}

// Claims decodes the current token.
func (s *Store) Claims(ctx context.Context) (*tokens.Claims, bool) {
	tok, ok := s.Token(ctx)
	if !ok {
		return nil, false
	}
	claims, err := tokens.Inspect(tok)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func (s *Store) UserID(ctx context.Context) string {
	if c, ok := s.Claims(ctx); ok {
		return c.UserID
	}
	return ""
}

func (s *Store) FirstName(ctx context.Context) string {
	if c, ok := s.Claims(ctx); ok {
		return c.FirstName
	}
	return ""
}

func (s *Store) snapshotWatchers() []Watcher {
	out := make([]Watcher, 0, len(s.watchers))
	for i := 0; i < s.nextID; i++ {
		if w, ok := s.watchers[i]; ok {
			out = append(out, w)
		}
	}
	return out
}
