// Package view derives read-only projections from the entity cache. The
// selectors hold no state of their own: every call reads the cache as it
// is now, so a view can never go stale relative to the event stream.
package view

import (
	"cmp"
	"slices"

	"github.com/kukuri-social/kukuri/internal/cache"
	"github.com/kukuri-social/kukuri/internal/model"
)

// UnknownAuthor is shown when a post's author has not been fetched yet.
// Posts and profiles sync independently, so a post may arrive first.
const UnknownAuthor = "Unknown User"

// Views bundles the selectors over both entity caches.
type Views struct {
	users *cache.Cache[*model.User]
	posts *cache.Cache[*model.Post]
}

// New creates the selector set.
func New(users *cache.Cache[*model.User], posts *cache.Cache[*model.Post]) *Views {
	return &Views{users: users, posts: posts}
}

// Timeline returns every cached post, newest first. Ties on timestamp are
// broken by id so the ordering is stable across derivations.
func (v *Views) Timeline() []*model.Post {
	posts := v.posts.All()

	slices.SortFunc(posts, func(a, b *model.Post) int {
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	return posts
}

// PostsByUser returns the cached posts authored by userID, newest first.
func (v *Views) PostsByUser(userID string) []*model.Post {
	posts := v.Timeline()
	filtered := posts[:0:0]

	for _, post := range posts {
		if post.AuthorID == userID {
			filtered = append(filtered, post)
		}
	}

	return filtered
}

// IsFollowing reports whether actorID follows targetID, reading only the
// actor's own cached following set. The target's followers set is fetched
// independently and may be transiently out of sync, so it is never
// consulted.
func (v *Views) IsFollowing(actorID, targetID string) bool {
	actor, ok := v.users.Get(actorID)
	if !ok {
		return false
	}

	return actor.Follows(targetID)
}

// DisplayNameOrPlaceholder returns the cached display name for userID, or
// a placeholder while the profile is still absent.
func (v *Views) DisplayNameOrPlaceholder(userID string) string {
	user, ok := v.users.Get(userID)
	if !ok {
		return UnknownAuthor
	}

	return user.DisplayName
}
