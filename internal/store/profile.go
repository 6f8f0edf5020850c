package store

import (
	"context"
	"fmt"

	"github.com/kukuri-social/kukuri/internal/cache"
	"github.com/kukuri-social/kukuri/internal/daemon"
	"github.com/kukuri-social/kukuri/internal/gateway"
	"github.com/kukuri-social/kukuri/internal/model"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Profiles coordinates profile reads and mutations, including the follow
// graph.
type Profiles struct {
	gateway *gateway.Gateway
	users   *cache.Cache[*model.User]
	auth    *Auth
	logger  *zap.Logger
}

// NewProfiles creates the profile coordinator.
func NewProfiles(gw *gateway.Gateway, users *cache.Cache[*model.User], auth *Auth, logger *zap.Logger) *Profiles {
	return &Profiles{
		gateway: gw,
		users:   users,
		auth:    auth,
		logger:  logger.Named("profiles"),
	}
}

// Fetch returns the profile for userID, loading it through the cache.
// Concurrent fetches for the same absent profile share one daemon call.
// A nil result means the profile does not exist.
func (p *Profiles) Fetch(ctx context.Context, userID string) (*model.User, error) {
	return p.users.Fetch(ctx, userID, func(ctx context.Context) (*model.User, error) {
		return p.gateway.GetProfile(ctx, userID)
	})
}

// Update applies a partial update to the signed-in user's profile. The
// cache entry is refetched after confirmation rather than patched locally,
// since a concurrent peer edit may already have merged into the document.
func (p *Profiles) Update(ctx context.Context, update *model.ProfileUpdate) (*model.User, error) {
	userID := p.auth.CurrentUserID()
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	if update.Empty() {
		user, _ := p.users.Get(userID)
		return user, nil
	}

	result, err := p.gateway.UpdateProfile(ctx, userID, update)
	if err != nil {
		return nil, err
	}

	if !result.Success {
		return nil, &daemon.CommandError{Command: gateway.CmdUpdateProfile, Message: result.Message}
	}

	return p.refetch(ctx, userID)
}

// Follow adds targetUserID to the signed-in user's following set. After
// the daemon confirms, both profiles are refetched: the relation is
// bidirectional-observable and only the daemon knows the merged result.
func (p *Profiles) Follow(ctx context.Context, targetUserID string) error {
	return p.changeFollow(ctx, gateway.CmdFollowUser, targetUserID)
}

// Unfollow removes targetUserID from the signed-in user's following set.
func (p *Profiles) Unfollow(ctx context.Context, targetUserID string) error {
	return p.changeFollow(ctx, gateway.CmdUnfollowUser, targetUserID)
}

func (p *Profiles) changeFollow(ctx context.Context, command, targetUserID string) error {
	userID := p.auth.CurrentUserID()
	if userID == "" {
		return ErrNotAuthenticated
	}

	if userID == targetUserID {
		return ErrSelfFollow
	}

	var (
		result *gateway.UpdateResult
		err    error
	)

	if command == gateway.CmdFollowUser {
		result, err = p.gateway.FollowUser(ctx, userID, targetUserID)
	} else {
		result, err = p.gateway.UnfollowUser(ctx, userID, targetUserID)
	}

	if err != nil {
		return err
	}

	if !result.Success {
		return &daemon.CommandError{Command: command, Message: result.Message}
	}

	// Refetch actor and target together; follower counts changed on both.
	refetch := pool.New().WithContext(ctx).WithCancelOnError()
	for _, id := range []string{userID, targetUserID} {
		refetch.Go(func(ctx context.Context) error {
			_, err := p.refetch(ctx, id)
			return err
		})
	}

	if err := refetch.Wait(); err != nil {
		return fmt.Errorf("failed to refresh profiles after %s: %w", command, err)
	}

	p.logger.Debug("Updated follow relation",
		zap.String("command", command),
		zap.String("userId", userID),
		zap.String("targetUserId", targetUserID))

	return nil
}

// ListUsers fetches every known profile and caches each one.
func (p *Profiles) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := p.gateway.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	for _, user := range users {
		p.users.Put(user.ID, user)
	}

	return users, nil
}

// refetch drops the cached profile and loads the confirmed document.
func (p *Profiles) refetch(ctx context.Context, userID string) (*model.User, error) {
	p.users.Invalidate(userID)

	return p.Fetch(ctx, userID)
}
