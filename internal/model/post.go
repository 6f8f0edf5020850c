package model

import "slices"

// Post is a post document as known to this client. Mentions and hashtags
// are derived server-side from the content; the client never computes them.
type Post struct {
	ID          string   `json:"id"       validate:"required,uuid"`
	AuthorID    string   `json:"authorId" validate:"required,uuid"`
	Content     string   `json:"content"  validate:"required,min=1,max=500"`
	Attachments []string `json:"attachments"`
	Mentions    []string `json:"mentions"`
	Hashtags    []string `json:"hashtags"`
	CreatedAt   int64    `json:"createdAt"`
}

// Equal reports whether two posts carry the same logical value.
func (p *Post) Equal(other *Post) bool {
	if p == nil || other == nil {
		return p == other
	}

	if p.ID != other.ID ||
		p.AuthorID != other.AuthorID ||
		p.Content != other.Content ||
		p.CreatedAt != other.CreatedAt {
		return false
	}

	return slices.Equal(p.Attachments, other.Attachments) &&
		slices.Equal(p.Mentions, other.Mentions) &&
		slices.Equal(p.Hashtags, other.Hashtags)
}

// CreatePostInput carries the fields needed to publish a new post.
type CreatePostInput struct {
	AuthorID    string   `json:"authorId" validate:"required,uuid"`
	Content     string   `json:"content"  validate:"required,min=1,max=500"`
	Attachments []string `json:"attachments,omitempty"`
}

// SearchPostsInput carries a full-text search request.
type SearchPostsInput struct {
	Query string `json:"query" validate:"required,min=1,max=100"`
	Limit int    `json:"limit,omitempty" validate:"omitempty,gt=0,max=100"`
}
