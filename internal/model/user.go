package model

import "slices"

// User is a profile document as known to this client. Following and
// Followers are maintained by the daemon; this client never edits them
// directly, it only re-fetches the merged result.
type User struct {
	ID          string   `json:"id"          validate:"required,uuid"`
	DisplayName string   `json:"displayName" validate:"required,min=1,max=50"`
	Bio         string   `json:"bio"         validate:"max=160"`
	Avatar      *string  `json:"avatar,omitempty"`
	Following   []string `json:"following"`
	Followers   []string `json:"followers"`
	CreatedAt   int64    `json:"createdAt"`
	UpdatedAt   *int64   `json:"updatedAt,omitempty"`
}

// Equal reports whether two users carry the same logical value.
// Used by the cache to absorb redundant writes.
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}

	if u.ID != other.ID ||
		u.DisplayName != other.DisplayName ||
		u.Bio != other.Bio ||
		u.CreatedAt != other.CreatedAt {
		return false
	}

	if !equalOptional(u.Avatar, other.Avatar) || !equalOptional(u.UpdatedAt, other.UpdatedAt) {
		return false
	}

	return slices.Equal(u.Following, other.Following) &&
		slices.Equal(u.Followers, other.Followers)
}

// Follows reports whether the user's own following set contains targetID.
// The target's followers set is deliberately not consulted since the two
// lists are fetched independently and may be transiently out of sync.
func (u *User) Follows(targetID string) bool {
	return u != nil && slices.Contains(u.Following, targetID)
}

// CreateUserInput carries the fields needed to create a new profile.
type CreateUserInput struct {
	DisplayName string `json:"displayName" validate:"required,min=1,max=50"`
	Bio         string `json:"bio"         validate:"max=160"`
}

func equalOptional[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}
