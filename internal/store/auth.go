// Package store holds the mutation coordinators. Every mutation follows
// the same policy: check preconditions locally, dispatch through the
// gateway, and only touch the cache after the daemon confirms the result.
// The daemon is the authority for merged state in an eventually-consistent
// document store, so speculative cache writes are never made.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/kukuri-social/kukuri/internal/cache"
	"github.com/kukuri-social/kukuri/internal/daemon"
	"github.com/kukuri-social/kukuri/internal/gateway"
	"github.com/kukuri-social/kukuri/internal/model"
	"github.com/kukuri-social/kukuri/internal/storage"
	"go.uber.org/zap"
)

// Auth coordinates account creation, sign-in, and logout, and owns the
// current session identity.
type Auth struct {
	gateway *gateway.Gateway
	users   *cache.Cache[*model.User]
	posts   *cache.Cache[*model.Post]
	kv      *storage.Store
	logger  *zap.Logger

	mu            sync.RWMutex
	currentUserID string
}

// NewAuth creates the auth coordinator.
func NewAuth(
	gw *gateway.Gateway,
	users *cache.Cache[*model.User],
	posts *cache.Cache[*model.Post],
	kv *storage.Store,
	logger *zap.Logger,
) *Auth {
	return &Auth{
		gateway: gw,
		users:   users,
		posts:   posts,
		kv:      kv,
		logger:  logger.Named("auth"),
	}
}

// CreateUser registers a new profile and opens a session for it. The
// profile is fetched back from the daemon after confirmation so the cache
// holds the authoritative document, including server-initialized fields.
func (a *Auth) CreateUser(ctx context.Context, displayName, bio string) (*model.User, error) {
	input := &model.CreateUserInput{DisplayName: displayName, Bio: bio}

	result, err := a.gateway.CreateUser(ctx, input)
	if err != nil {
		return nil, err
	}

	if !result.Success {
		return nil, &daemon.CommandError{Command: gateway.CmdCreateUser, Message: result.Message}
	}

	user, err := a.confirmSession(ctx, result.UserID)
	if err != nil {
		return nil, err
	}

	a.logger.Info("Created user", zap.String("userId", user.ID))

	return user, nil
}

// SignIn opens a session for an existing profile.
func (a *Auth) SignIn(ctx context.Context, userID string) (*model.User, error) {
	result, err := a.gateway.SignIn(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !result.Success {
		return nil, &daemon.CommandError{Command: gateway.CmdSignIn, Message: result.Message}
	}

	user, err := a.confirmSession(ctx, result.UserID)
	if err != nil {
		return nil, err
	}

	a.logger.Info("Signed in", zap.String("userId", user.ID))

	return user, nil
}

// RestoreSession signs back in with the persisted current-user id, if one
// exists. Returns nil without error when no session was saved.
func (a *Auth) RestoreSession(ctx context.Context) (*model.User, error) {
	userID, found, err := a.kv.Get(storage.KeyCurrentUser)
	if err != nil {
		return nil, err
	}

	if !found || userID == "" {
		return nil, nil
	}

	return a.SignIn(ctx, userID)
}

// Logout ends the session and clears every cached entity. The local
// key-value store keeps only non-entity preferences.
func (a *Auth) Logout() error {
	a.mu.Lock()
	a.currentUserID = ""
	a.mu.Unlock()

	a.users.Clear()
	a.posts.Clear()

	if err := a.kv.Delete(storage.KeyCurrentUser); err != nil {
		return fmt.Errorf("failed to clear saved session: %w", err)
	}

	a.logger.Info("Logged out")

	return nil
}

// CurrentUserID returns the signed-in user id, or empty when logged out.
func (a *Auth) CurrentUserID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.currentUserID
}

// CurrentUser returns the signed-in user's cached profile.
func (a *Auth) CurrentUser() (*model.User, bool) {
	id := a.CurrentUserID()
	if id == "" {
		return nil, false
	}

	return a.users.Get(id)
}

// confirmSession fetches the confirmed profile, caches it, and persists
// the session identity.
func (a *Auth) confirmSession(ctx context.Context, userID string) (*model.User, error) {
	user, err := a.gateway.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrProfileMissing, userID)
	}

	a.users.Put(user.ID, user)

	a.mu.Lock()
	a.currentUserID = user.ID
	a.mu.Unlock()

	if err := a.kv.Set(storage.KeyCurrentUser, user.ID); err != nil {
		a.logger.Warn("Failed to persist session", zap.Error(err))
	}

	return user, nil
}
