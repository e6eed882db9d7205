// Package session owns authentication state: the current user, the access
// token, and the derived authorization flags. It orchestrates login,
// registration, logout, and restoring a persisted session at startup.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"sensordash/internal/api"
	"sensordash/internal/observe"
	"sensordash/internal/storage"
	"sensordash/internal/types"
)

// Store holds the current session. All exported methods are safe for
// concurrent use.
type Store struct {
	client *api.Client
	slot   storage.Slot
	log    *zap.Logger

	notifier observe.Notifier

	mu    sync.RWMutex
	user  *types.User
	token string

	bootstrapDone chan struct{}
}

// New constructs the store and runs the session bootstrap: the persisted
// token and user record are restored optimistically, then re-validated
// against the server in the background. A validation failure (or a corrupt
// persisted record) converges to the logged-out state. BootstrapDone reports
// when the sequence has settled.
func New(client *api.Client, slot storage.Slot, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		client:        client,
		slot:          slot,
		log:           log,
		bootstrapDone: make(chan struct{}),
	}
	s.bootstrap()
	return s
}

func (s *Store) bootstrap() {
	token, hasToken, err := s.slot.Get(storage.KeyAccessToken)
	if err != nil {
		s.log.Warn("session restore: read token", zap.Error(err))
	}
	savedUser, hasUser, err := s.slot.Get(storage.KeyUser)
	if err != nil {
		s.log.Warn("session restore: read user", zap.Error(err))
	}

	if hasToken && token != "" {
		s.mu.Lock()
		s.token = token
		s.mu.Unlock()
		s.client.SetToken(token)
	}

	if !hasToken || token == "" || !hasUser {
		close(s.bootstrapDone)
		return
	}

	var user types.User
	if err := json.Unmarshal([]byte(savedUser), &user); err != nil {
		s.log.Warn("session restore: corrupt user record", zap.Error(err))
		s.Logout()
		close(s.bootstrapDone)
		return
	}

	// Trust the cached record so the UI can render as signed-in immediately,
	// then confirm the token is still valid.
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	s.notifier.Notify()

	go func() {
		defer close(s.bootstrapDone)
		s.FetchCurrentUser(context.Background())
	}()
}

// BootstrapDone is closed once the startup restore-and-validate sequence has
// settled, in either the signed-in or the logged-out state.
func (s *Store) BootstrapDone() <-chan struct{} {
	return s.bootstrapDone
}

// Subscribe registers fn to run after every session change.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	return s.notifier.Subscribe(fn)
}

// User returns a copy of the current user, or nil when signed out or not yet
// confirmed.
func (s *Store) User() *types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Token returns the current access token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAuthenticated reports whether an access token is present.
func (s *Store) IsAuthenticated() bool {
	return s.Token() != ""
}

// IsAdmin reports whether the current user is a confirmed administrator.
func (s *Store) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.IsAdmin
}

// Login exchanges credentials for a token, persists it, and fetches the
// user's profile. The token is only stored after a successful response.
func (s *Store) Login(ctx context.Context, username, password string) error {
	tok, err := s.client.Login(ctx, username, password)
	if err != nil {
		s.log.Error("login failed", zap.String("username", username), zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.token = tok.AccessToken
	s.mu.Unlock()
	s.client.SetToken(tok.AccessToken)
	if err := s.slot.Set(storage.KeyAccessToken, tok.AccessToken); err != nil {
		s.log.Warn("persist token", zap.Error(err))
	}
	s.notifier.Notify()

	s.FetchCurrentUser(ctx)
	return nil
}

// Register creates a new account. It does not sign the account in.
func (s *Store) Register(ctx context.Context, username, email, password string) error {
	reg := types.Registration{Username: username, Email: email, Password: password}
	if err := s.client.Register(ctx, reg); err != nil {
		s.log.Error("registration failed", zap.String("username", username), zap.Error(err))
		return err
	}
	return nil
}

// FetchCurrentUser refreshes the user record from the server and re-persists
// it. Failure is not propagated: an invalid or expired token must not leave a
// stale signed-in view, so any error forces a logout instead.
func (s *Store) FetchCurrentUser(ctx context.Context) {
	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		s.log.Warn("fetch current user failed, logging out", zap.Error(err))
		s.Logout()
		return
	}
	s.setUser(user)
}

// UpdateProfile applies a partial profile update. On success the in-memory
// user is replaced wholesale with the server's record and re-persisted.
func (s *Store) UpdateProfile(ctx context.Context, up types.ProfileUpdate) error {
	user, err := s.client.UpdateCurrentUser(ctx, up)
	if err != nil {
		s.log.Error("profile update failed", zap.Error(err))
		return err
	}
	s.setUser(user)
	return nil
}

func (s *Store) setUser(user *types.User) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()

	if data, err := json.Marshal(user); err != nil {
		s.log.Warn("serialize user record", zap.Error(err))
	} else if err := s.slot.Set(storage.KeyUser, string(data)); err != nil {
		s.log.Warn("persist user record", zap.Error(err))
	}
	s.notifier.Notify()
}

// Logout clears the in-memory session and removes both persisted entries.
// Calling it while already signed out is a no-op with the same end state.
func (s *Store) Logout() {
	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.mu.Unlock()

	s.client.ClearToken()
	if err := s.slot.Delete(storage.KeyAccessToken); err != nil {
		s.log.Warn("remove persisted token", zap.Error(err))
	}
	if err := s.slot.Delete(storage.KeyUser); err != nil {
		s.log.Warn("remove persisted user", zap.Error(err))
	}
	s.notifier.Notify()
}
