package gateway

// Daemon command names.
const (
	CmdCreateUser     = "create_user"
	CmdSignIn         = "sign_in"
	CmdGetProfile     = "get_profile"
	CmdUpdateProfile  = "update_profile"
	CmdFollowUser     = "follow_user"
	CmdUnfollowUser   = "unfollow_user"
	CmdCreatePost     = "create_post"
	CmdGetPosts       = "get_posts"
	CmdGetUserPosts   = "get_user_posts"
	CmdSearchPosts    = "search_posts"
	CmdGetSettings    = "get_settings"
	CmdUpdateSettings = "update_settings"
	CmdListUsers      = "list_users"
)

// UserResult is the daemon's response to create_user and sign_in.
type UserResult struct {
	UserID  string `json:"userId"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// PostResult is the daemon's response to create_post.
type PostResult struct {
	PostID  string `json:"postId"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// UpdateResult is the daemon's response to mutations without a created id.
type UpdateResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type signInRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

type profileRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

type followRequest struct {
	UserID       string `json:"userId"       validate:"required,uuid"`
	TargetUserID string `json:"targetUserId" validate:"required,uuid"`
}

type pageRequest struct {
	Limit  int `json:"limit"  validate:"gt=0,max=100"`
	Offset int `json:"offset" validate:"min=0"`
}

type userPageRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
	Limit  int    `json:"limit"  validate:"gt=0,max=100"`
	Offset int    `json:"offset" validate:"min=0"`
}

type settingsRequest struct {
	UserID string `json:"userId,omitempty" validate:"omitempty,uuid"`
}
