package store

import (
	"context"

	"github.com/kukuri-social/kukuri/internal/cache"
	"github.com/kukuri-social/kukuri/internal/daemon"
	"github.com/kukuri-social/kukuri/internal/gateway"
	"github.com/kukuri-social/kukuri/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Posts coordinates the feed, per-user post lists, post creation, and
// search.
type Posts struct {
	gateway  *gateway.Gateway
	posts    *cache.Cache[*model.Post]
	auth     *Auth
	logger   *zap.Logger
	group    singleflight.Group
	pageSize int
}

// NewPosts creates the post coordinator. pageSize bounds every list fetch.
func NewPosts(gw *gateway.Gateway, posts *cache.Cache[*model.Post], auth *Auth, pageSize int, logger *zap.Logger) *Posts {
	return &Posts{
		gateway:  gw,
		posts:    posts,
		auth:     auth,
		logger:   logger.Named("posts"),
		pageSize: pageSize,
	}
}

// RefreshFeed fetches the first feed page and caches every post.
// Concurrent refreshes are coalesced into one daemon call; every caller
// receives the same list.
func (p *Posts) RefreshFeed(ctx context.Context) ([]*model.Post, error) {
	result, err, _ := p.group.Do("feed", func() (any, error) {
		posts, err := p.gateway.GetPosts(ctx, p.pageSize, 0)
		if err != nil {
			return nil, err
		}

		p.cacheAll(posts)

		return posts, nil
	})
	if err != nil {
		return nil, err
	}

	posts, _ := result.([]*model.Post)

	return posts, nil
}

// FetchUserPosts fetches one author's posts and caches each one.
// Concurrent fetches for the same author share one daemon call.
func (p *Posts) FetchUserPosts(ctx context.Context, userID string) ([]*model.Post, error) {
	result, err, _ := p.group.Do("user:"+userID, func() (any, error) {
		posts, err := p.gateway.GetUserPosts(ctx, userID, p.pageSize, 0)
		if err != nil {
			return nil, err
		}

		p.cacheAll(posts)

		return posts, nil
	})
	if err != nil {
		return nil, err
	}

	posts, _ := result.([]*model.Post)

	return posts, nil
}

// Create publishes a post as the signed-in user. After confirmation the
// full feed is refetched instead of splicing the post in locally, picking
// up server-derived fields (hashtags, mentions) and any peer content that
// arrived during the round trip.
func (p *Posts) Create(ctx context.Context, content string, attachments []string) (string, error) {
	userID := p.auth.CurrentUserID()
	if userID == "" {
		return "", ErrNotAuthenticated
	}

	input := &model.CreatePostInput{
		AuthorID:    userID,
		Content:     content,
		Attachments: attachments,
	}

	result, err := p.gateway.CreatePost(ctx, input)
	if err != nil {
		return "", err
	}

	if !result.Success {
		return "", &daemon.CommandError{Command: gateway.CmdCreatePost, Message: result.Message}
	}

	if _, err := p.RefreshFeed(ctx); err != nil {
		return "", err
	}

	p.logger.Info("Created post", zap.String("postId", result.PostID))

	return result.PostID, nil
}

// Search runs a full-text search. Results are returned directly and not
// cached: the timeline derives from the cache, and search hits from
// arbitrary history would bleed into it.
func (p *Posts) Search(ctx context.Context, query string, limit int) ([]*model.Post, error) {
	input := &model.SearchPostsInput{Query: query, Limit: limit}

	return p.gateway.SearchPosts(ctx, input)
}

func (p *Posts) cacheAll(posts []*model.Post) {
	for _, post := range posts {
		p.posts.Put(post.ID, post)
	}
}
