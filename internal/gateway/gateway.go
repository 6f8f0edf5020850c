// Package gateway is the typed command boundary to the daemon. Every
// dispatch validates its payload first; invalid payloads fail fast and
// never reach the wire. The gateway never retries: a command either fully
// succeeds or fully fails, and transport failures surface unmodified.
package gateway

import (
	"context"

	"github.com/kukuri-social/kukuri/internal/model"
	"go.uber.org/zap"
)

// Transport is the request/response call into the daemon process.
type Transport interface {
	Call(ctx context.Context, command string, payload, out any) error
}

// Gateway wraps the transport with per-command validation and typing.
type Gateway struct {
	transport Transport
	logger    *zap.Logger
}

// New creates a gateway over the given transport.
func New(transport Transport, logger *zap.Logger) *Gateway {
	return &Gateway{
		transport: transport,
		logger:    logger.Named("gateway"),
	}
}

// CreateUser registers a new profile document.
func (g *Gateway) CreateUser(ctx context.Context, input *model.CreateUserInput) (*UserResult, error) {
	if err := model.Validate(input); err != nil {
		return nil, err
	}

	var result UserResult
	if err := g.transport.Call(ctx, CmdCreateUser, input, &result); err != nil {
		return nil, err
	}

	g.logger.Debug("Dispatched create_user", zap.String("userId", result.UserID))

	return &result, nil
}

// SignIn opens a session for an existing profile.
func (g *Gateway) SignIn(ctx context.Context, userID string) (*UserResult, error) {
	req := signInRequest{UserID: userID}
	if err := model.Validate(req); err != nil {
		return nil, err
	}

	var result UserResult
	if err := g.transport.Call(ctx, CmdSignIn, req, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// GetProfile fetches one profile. A nil user means the profile does not
// exist; that is not an error.
func (g *Gateway) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	req := profileRequest{UserID: userID}
	if err := model.Validate(req); err != nil {
		return nil, err
	}

	var user *model.User
	if err := g.transport.Call(ctx, CmdGetProfile, req, &user); err != nil {
		return nil, err
	}

	return user, nil
}

// UpdateProfile applies a partial profile update. Only fields present in
// the update are sent; the daemon merges them into the document.
func (g *Gateway) UpdateProfile(ctx context.Context, userID string, update *model.ProfileUpdate) (*UpdateResult, error) {
	if err := model.Validate(profileRequest{UserID: userID}); err != nil {
		return nil, err
	}

	if err := update.Validate(); err != nil {
		return nil, err
	}

	payload := update.Fields()
	payload["userId"] = userID

	var result UpdateResult
	if err := g.transport.Call(ctx, CmdUpdateProfile, payload, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// FollowUser adds targetUserID to userID's following set.
func (g *Gateway) FollowUser(ctx context.Context, userID, targetUserID string) (*UpdateResult, error) {
	return g.follow(ctx, CmdFollowUser, userID, targetUserID)
}

// UnfollowUser removes targetUserID from userID's following set.
func (g *Gateway) UnfollowUser(ctx context.Context, userID, targetUserID string) (*UpdateResult, error) {
	return g.follow(ctx, CmdUnfollowUser, userID, targetUserID)
}

func (g *Gateway) follow(ctx context.Context, command, userID, targetUserID string) (*UpdateResult, error) {
	req := followRequest{UserID: userID, TargetUserID: targetUserID}
	if err := model.Validate(req); err != nil {
		return nil, err
	}

	var result UpdateResult
	if err := g.transport.Call(ctx, command, req, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// CreatePost publishes a new post document.
func (g *Gateway) CreatePost(ctx context.Context, input *model.CreatePostInput) (*PostResult, error) {
	if err := model.Validate(input); err != nil {
		return nil, err
	}

	var result PostResult
	if err := g.transport.Call(ctx, CmdCreatePost, input, &result); err != nil {
		return nil, err
	}

	g.logger.Debug("Dispatched create_post", zap.String("postId", result.PostID))

	return &result, nil
}

// GetPosts fetches a page of the global feed, newest first.
func (g *Gateway) GetPosts(ctx context.Context, limit, offset int) ([]*model.Post, error) {
	req := pageRequest{Limit: limit, Offset: offset}
	if err := model.Validate(req); err != nil {
		return nil, err
	}

	var posts []*model.Post
	if err := g.transport.Call(ctx, CmdGetPosts, req, &posts); err != nil {
		return nil, err
	}

	return posts, nil
}

// GetUserPosts fetches a page of one author's posts.
func (g *Gateway) GetUserPosts(ctx context.Context, userID string, limit, offset int) ([]*model.Post, error) {
	req := userPageRequest{UserID: userID, Limit: limit, Offset: offset}
	if err := model.Validate(req); err != nil {
		return nil, err
	}

	var posts []*model.Post
	if err := g.transport.Call(ctx, CmdGetUserPosts, req, &posts); err != nil {
		return nil, err
	}

	return posts, nil
}

// SearchPosts runs a full-text search over post documents.
func (g *Gateway) SearchPosts(ctx context.Context, input *model.SearchPostsInput) ([]*model.Post, error) {
	if err := model.Validate(input); err != nil {
		return nil, err
	}

	var posts []*model.Post
	if err := g.transport.Call(ctx, CmdSearchPosts, input, &posts); err != nil {
		return nil, err
	}

	return posts, nil
}

// GetSettings fetches the settings document for a user, or the daemon's
// defaults when userID is empty.
func (g *Gateway) GetSettings(ctx context.Context, userID string) (*model.Settings, error) {
	req := settingsRequest{UserID: userID}
	if err := model.Validate(req); err != nil {
		return nil, err
	}

	var settings *model.Settings
	if err := g.transport.Call(ctx, CmdGetSettings, req, &settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// UpdateSettings applies a partial settings update.
func (g *Gateway) UpdateSettings(ctx context.Context, userID string, update *model.SettingsUpdate) (*UpdateResult, error) {
	if err := model.Validate(settingsRequest{UserID: userID}); err != nil {
		return nil, err
	}

	if err := update.Validate(); err != nil {
		return nil, err
	}

	payload := update.Fields()
	if userID != "" {
		payload["userId"] = userID
	}

	var result UpdateResult
	if err := g.transport.Call(ctx, CmdUpdateSettings, payload, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// ListUsers fetches every known profile.
func (g *Gateway) ListUsers(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	if err := g.transport.Call(ctx, CmdListUsers, struct{}{}, &users); err != nil {
		return nil, err
	}

	return users, nil
}
