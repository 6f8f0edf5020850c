package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/kukuri-social/kukuri/internal/cache"
	"github.com/kukuri-social/kukuri/internal/daemon"
	"github.com/kukuri-social/kukuri/internal/gateway"
	"github.com/kukuri-social/kukuri/internal/model"
	"github.com/kukuri-social/kukuri/internal/storage"
	"github.com/kukuri-social/kukuri/internal/store"
	"github.com/kukuri-social/kukuri/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testContext stands in for testing.T.Context, which requires Go 1.24.
func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return ctx
}

const (
	actorID  = "3b3e4b6e-7a1c-4f7a-9a64-111111111111"
	targetID = "3b3e4b6e-7a1c-4f7a-9a64-222222222222"
	postID   = "3b3e4b6e-7a1c-4f7a-9a64-333333333333"
)

// fakeTransport replays a programmable handler and records every
// dispatched command in order.
type fakeTransport struct {
	mu      sync.Mutex
	calls   []string
	handler func(command string, payload any) (any, error)
}

func (f *fakeTransport) Call(_ context.Context, command string, payload, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, command)
	handler := f.handler
	f.mu.Unlock()

	if handler == nil {
		return nil
	}

	response, err := handler(command, payload)
	if err != nil {
		return err
	}

	if response == nil || out == nil {
		return nil
	}

	data, err := sonic.Marshal(response)
	if err != nil {
		return err
	}

	return sonic.Unmarshal(data, out)
}

func (f *fakeTransport) callCount(command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0

	for _, c := range f.calls {
		if c == command {
			count++
		}
	}

	return count
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = nil
}

type env struct {
	transport *fakeTransport
	users     *cache.Cache[*model.User]
	posts     *cache.Cache[*model.Post]
	kv        *storage.Store
	auth      *store.Auth
	profiles  *store.Profiles
	feed      *store.Posts
	settings  *store.Settings
	views     *view.Views
}

func setupTest(t *testing.T) *env {
	t.Helper()

	kv, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	logger := zap.NewNop()
	transport := &fakeTransport{}
	users := cache.New[*model.User](logger)
	posts := cache.New[*model.Post](logger)
	gw := gateway.New(transport, logger)
	auth := store.NewAuth(gw, users, posts, kv, logger)

	return &env{
		transport: transport,
		users:     users,
		posts:     posts,
		kv:        kv,
		auth:      auth,
		profiles:  store.NewProfiles(gw, users, auth, logger),
		feed:      store.NewPosts(gw, posts, auth, 20, logger),
		settings:  store.NewSettings(gw, kv, auth, logger),
		views:     view.New(users, posts),
	}
}

func profileOf(id, name string, following []string) *model.User {
	if following == nil {
		following = []string{}
	}

	return &model.User{
		ID:          id,
		DisplayName: name,
		Following:   following,
		Followers:   []string{},
		CreatedAt:   1700000000,
	}
}

// signIn establishes a session for actorID through the normal flow.
func signIn(t *testing.T, e *env) {
	t.Helper()

	e.transport.handler = func(command string, _ any) (any, error) {
		switch command {
		case gateway.CmdSignIn:
			return &gateway.UserResult{UserID: actorID, Success: true}, nil
		case gateway.CmdGetProfile:
			return profileOf(actorID, "Ann", nil), nil
		default:
			return nil, nil
		}
	}

	_, err := e.auth.SignIn(testContext(t), actorID)
	require.NoError(t, err)
	e.transport.reset()
}

func TestCreateUser(t *testing.T) {
	t.Parallel()

	e := setupTest(t)
	e.transport.handler = func(command string, _ any) (any, error) {
		switch command {
		case gateway.CmdCreateUser:
			return &gateway.UserResult{UserID: actorID, Success: true}, nil
		case gateway.CmdGetProfile:
			return profileOf(actorID, "Ann", nil), nil
		default:
			return nil, nil
		}
	}

	user, err := e.auth.CreateUser(testContext(t), "Ann", "")
	require.NoError(t, err)

	// One validated dispatch, then the confirmed profile fetch.
	assert.Equal(t, []string{gateway.CmdCreateUser, gateway.CmdGetProfile}, e.transport.calls)

	// The cache holds the daemon's document with empty follow sets.
	cached, ok := e.users.Get(actorID)
	require.True(t, ok)
	assert.Empty(t, cached.Following)
	assert.Empty(t, cached.Followers)
	assert.Equal(t, user.ID, e.auth.CurrentUserID())

	saved, found, err := e.kv.Get(storage.KeyCurrentUser)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, actorID, saved)
}

func TestCreateUserValidationNeverDispatches(t *testing.T) {
	t.Parallel()

	e := setupTest(t)

	_, err := e.auth.CreateUser(testContext(t), "", "")

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, e.transport.calls)
}

func TestFollowSelfRejected(t *testing.T) {
	t.Parallel()

	e := setupTest(t)
	signIn(t, e)

	err := e.profiles.Follow(testContext(t), actorID)
	require.ErrorIs(t, err, store.ErrSelfFollow)

	var perr *store.PreconditionError
	require.ErrorAs(t, err, &perr)

	// Zero network calls were issued.
	assert.Empty(t, e.transport.calls)
}

func TestFollowRequiresSession(t *testing.T) {
	t.Parallel()

	e := setupTest(t)

	err := e.profiles.Follow(testContext(t), targetID)
	require.ErrorIs(t, err, store.ErrNotAuthenticated)
	assert.Empty(t, e.transport.calls)
}

func TestFollowConfirmThenCache(t *testing.T) {
	t.Parallel()

	e := setupTest(t)
	signIn(t, e)

	followed := false
	e.transport.handler = func(command string, payload any) (any, error) {
		switch command {
		case gateway.CmdFollowUser:
			followed = true
			return &gateway.UpdateResult{Success: true}, nil
		case gateway.CmdGetProfile:
			id := requestedUserID(payload)
			if id == actorID && followed {
				return profileOf(actorID, "Ann", []string{targetID}), nil
			}

			if id == actorID {
				return profileOf(actorID, "Ann", nil), nil
			}

			return profileOf(targetID, "Bob", nil), nil
		default:
			return nil, nil
		}
	}

	require.False(t, e.views.IsFollowing(actorID, targetID))

	err := e.profiles.Follow(testContext(t), targetID)
	require.NoError(t, err)

	// Both profiles were refetched: the relation is visible on each side.
	assert.Equal(t, 1, e.transport.callCount(gateway.CmdFollowUser))
	assert.Equal(t, 2, e.transport.callCount(gateway.CmdGetProfile))

	// The refreshed cache answers the selector immediately.
	assert.True(t, e.views.IsFollowing(actorID, targetID))
}

func TestFollowFailureLeavesCacheUntouched(t *testing.T) {
	t.Parallel()

	e := setupTest(t)
	signIn(t, e)

	e.transport.handler = func(command string, _ any) (any, error) {
		if command == gateway.CmdFollowUser {
			return &gateway.UpdateResult{Success: false, Message: "peer rejected"}, nil
		}

		return nil, nil
	}

	err := e.profiles.Follow(testContext(t), targetID)

	var cerr *daemon.CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "peer rejected", cerr.Message)

	// No cache mutation happened: no refetch, selector still false.
	assert.Equal(t, 0, e.transport.callCount(gateway.CmdGetProfile))
	assert.False(t, e.views.IsFollowing(actorID, targetID))
}

func TestCreatePostRefetchesFeed(t *testing.T) {
	t.Parallel()

	e := setupTest(t)
	signIn(t, e)

	e.transport.handler = func(command string, _ any) (any, error) {
		switch command {
		case gateway.CmdCreatePost:
			return &gateway.PostResult{PostID: postID, Success: true}, nil
		case gateway.CmdGetPosts:
			// The daemon derives hashtags; the client must pick them up by
			// refetching rather than splicing the post in locally.
			return []*model.Post{{
				ID:        postID,
				AuthorID:  actorID,
				Content:   "shipping #go",
				Hashtags:  []string{"go"},
				CreatedAt: 1700000100,
			}}, nil
		default:
			return nil, nil
		}
	}

	created, err := e.feed.Create(testContext(t), "shipping #go", nil)
	require.NoError(t, err)
	assert.Equal(t, postID, created)

	assert.Equal(t, []string{gateway.CmdCreatePost, gateway.CmdGetPosts}, e.transport.calls)

	timeline := e.views.Timeline()
	require.Len(t, timeline, 1)
	assert.Equal(t, []string{"go"}, timeline[0].Hashtags)
}

func TestCreatePostFailureDoesNotTouchFeed(t *testing.T) {
	t.Parallel()

	e := setupTest(t)
	signIn(t, e)

	e.transport.handler = func(command string, _ any) (any, error) {
		if command == gateway.CmdCreatePost {
			return &gateway.PostResult{Success: false, Message: "store unavailable"}, nil
		}

		return nil, nil
	}

	_, err := e.feed.Create(testContext(t), "hello", nil)

	var cerr *daemon.CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 0, e.transport.callCount(gateway.CmdGetPosts))
	assert.Empty(t, e.views.Timeline())
}

func TestUserPostsCoalesced(t *testing.T) {
	t.Parallel()

	e := setupTest(t)

	e.transport.handler = func(command string, _ any) (any, error) {
		if command != gateway.CmdGetUserPosts {
			return nil, nil
		}

		time.Sleep(50 * time.Millisecond)

		return []*model.Post{{ID: postID, AuthorID: targetID, Content: "hi", CreatedAt: 1}}, nil
	}

	var wg sync.WaitGroup

	results := make([][]*model.Post, 2)

	for i := range results {
		i := i // per-iteration copy; the loop var is shared before Go 1.22
		wg.Add(1)

		go func() {
			defer wg.Done()

			posts, err := e.feed.FetchUserPosts(context.Background(), targetID)
			assert.NoError(t, err)
			results[i] = posts
		}()
	}

	wg.Wait()

	// Exactly one underlying fetch; both callers see the same list.
	assert.Equal(t, 1, e.transport.callCount(gateway.CmdGetUserPosts))
	assert.Equal(t, results[0], results[1])
}

func TestLogoutClearsEverything(t *testing.T) {
	t.Parallel()

	e := setupTest(t)
	signIn(t, e)
	e.posts.Put(postID, &model.Post{ID: postID, AuthorID: actorID, Content: "hi", CreatedAt: 1})

	require.NoError(t, e.auth.Logout())

	assert.Equal(t, 0, e.users.Len())
	assert.Equal(t, 0, e.posts.Len())
	assert.Empty(t, e.auth.CurrentUserID())

	_, found, err := e.kv.Get(storage.KeyCurrentUser)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpdateProfileRefetches(t *testing.T) {
	t.Parallel()

	e := setupTest(t)
	signIn(t, e)

	updated := false
	e.transport.handler = func(command string, _ any) (any, error) {
		switch command {
		case gateway.CmdUpdateProfile:
			updated = true
			return &gateway.UpdateResult{Success: true}, nil
		case gateway.CmdGetProfile:
			name := "Ann"
			if updated {
				name = "Annie"
			}

			return profileOf(actorID, name, nil), nil
		default:
			return nil, nil
		}
	}

	user, err := e.profiles.Update(testContext(t), model.NewProfileUpdate().DisplayName("Annie"))
	require.NoError(t, err)

	// The cache holds the daemon's merged document, not the local guess.
	assert.Equal(t, "Annie", user.DisplayName)
	assert.Equal(t, "Annie", e.views.DisplayNameOrPlaceholder(actorID))
}

func TestSettingsPartialUpdate(t *testing.T) {
	t.Parallel()

	e := setupTest(t)
	signIn(t, e)

	e.transport.handler = func(command string, _ any) (any, error) {
		switch command {
		case gateway.CmdGetSettings:
			return model.DefaultSettings(), nil
		case gateway.CmdUpdateSettings:
			return &gateway.UpdateResult{Success: true}, nil
		default:
			return nil, nil
		}
	}

	_, err := e.settings.Load(testContext(t))
	require.NoError(t, err)

	confirmed, err := e.settings.Update(testContext(t), model.NewSettingsUpdate().Theme(model.ThemeDark))
	require.NoError(t, err)

	// Only the present key changed.
	assert.Equal(t, model.ThemeDark, confirmed.Theme)
	assert.Equal(t, "ja", confirmed.Language)

	// The confirmed blob is mirrored locally.
	theme, found, err := e.kv.Get(storage.KeyTheme)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.ThemeDark, theme)

	local, err := e.settings.LoadLocal()
	require.NoError(t, err)
	assert.Equal(t, model.ThemeDark, local.Theme)
}

// requestedUserID extracts the userId field from a request payload. It
// runs on refetch goroutines, so failures surface as an empty id rather
// than failing the test goroutine.
func requestedUserID(payload any) string {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return ""
	}

	var req struct {
		UserID string `json:"userId"`
	}

	if err := sonic.Unmarshal(data, &req); err != nil {
		return ""
	}

	return req.UserID
}
