package setup

import (
	"context"
	"log"
	"time"

	"github.com/kukuri-social/kukuri/internal/cache"
	"github.com/kukuri-social/kukuri/internal/daemon"
	"github.com/kukuri-social/kukuri/internal/gateway"
	"github.com/kukuri-social/kukuri/internal/model"
	"github.com/kukuri-social/kukuri/internal/reconcile"
	"github.com/kukuri-social/kukuri/internal/setup/config"
	"github.com/kukuri-social/kukuri/internal/setup/logging"
	"github.com/kukuri-social/kukuri/internal/storage"
	"github.com/kukuri-social/kukuri/internal/store"
	"github.com/kukuri-social/kukuri/internal/view"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the client.
// Each field represents a subsystem that needs initialization and cleanup.
type App struct {
	Config   *config.Config // Application configuration
	Logger   *zap.Logger    // Main application logger
	KV       *storage.Store // Local key-value store
	Conn     *daemon.Conn   // Connection to the kukuri daemon
	Users    *cache.Cache[*model.User]
	Posts    *cache.Cache[*model.Post]
	Gateway  *gateway.Gateway
	Auth     *store.Auth
	Profiles *store.Profiles
	Feed     *store.Posts
	Settings *store.Settings
	Views    *view.Views

	// One reconciler per document stream; the streams carry independent
	// connectivity signals.
	ProfileSync *reconcile.Reconciler
	PostSync    *reconcile.Reconciler
}

// InitializeApp bootstraps all client dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, logDir string) (*App, error) {
	// Load app configuration
	cfg, configPath, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logger, err := logging.SetupLogging(logDir, cfg.Debug.LogLevel, cfg.Debug.MaxLogsToKeep)
	if err != nil {
		return nil, err
	}

	if configPath != "" {
		logger.Info("Loaded configuration", zap.String("path", configPath))
	} else {
		logger.Info("No config file found, using defaults")
	}

	// Local key-value store for non-entity preferences
	kv, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	// Connect to the daemon hosting the document store
	requestTimeout := time.Duration(cfg.Daemon.RequestTimeout) * time.Millisecond

	conn, err := daemon.Connect(ctx, cfg.Daemon.Addr, requestTimeout, logger)
	if err != nil {
		kv.Close()
		return nil, err
	}

	// Entity caches are the single source of truth for rendering
	users := cache.New[*model.User](logger.Named("cache.users"))
	posts := cache.New[*model.Post](logger.Named("cache.posts"))

	// Command gateway and mutation coordinators
	gw := gateway.New(conn, logger)
	auth := store.NewAuth(gw, users, posts, kv, logger)
	profiles := store.NewProfiles(gw, users, auth, logger)
	feed := store.NewPosts(gw, posts, auth, cfg.Feed.PageSize, logger)
	settings := store.NewSettings(gw, kv, auth, logger)

	// Reconcilers merge peer-sync notifications into the caches
	profileSync := reconcile.New(daemon.StreamProfile, conn,
		users.Invalidate,
		func(ctx context.Context) error {
			_, err := profiles.ListUsers(ctx)
			return err
		},
		logger,
	)
	postSync := reconcile.New(daemon.StreamPost, conn,
		func(authorID string) {
			// Post events carry the author id, not a post id; drop every
			// cached post by that author and let the next read refetch.
			for _, post := range posts.All() {
				if post.AuthorID == authorID {
					posts.Invalidate(post.ID)
				}
			}
		},
		func(ctx context.Context) error {
			_, err := feed.RefreshFeed(ctx)
			return err
		},
		logger,
	)

	return &App{
		Config:      cfg,
		Logger:      logger,
		KV:          kv,
		Conn:        conn,
		Users:       users,
		Posts:       posts,
		Gateway:     gw,
		Auth:        auth,
		Profiles:    profiles,
		Feed:        feed,
		Settings:    settings,
		Views:       view.New(users, posts),
		ProfileSync: profileSync,
		PostSync:    postSync,
	}, nil
}

// StartSync subscribes both reconcilers. Idempotent.
func (a *App) StartSync() error {
	if err := a.ProfileSync.Start(); err != nil {
		return err
	}

	if err := a.PostSync.Start(); err != nil {
		a.ProfileSync.Stop()
		return err
	}

	return nil
}

// Cleanup ensures graceful shutdown of all components in reverse
// initialization order. Logs but does not fail on cleanup errors so every
// component gets a cleanup attempt.
func (a *App) Cleanup() {
	a.ProfileSync.Stop()
	a.PostSync.Stop()

	if err := a.Conn.Close(); err != nil {
		a.Logger.Error("Failed to close daemon connection", zap.Error(err))
	}

	if err := a.KV.Close(); err != nil {
		a.Logger.Error("Failed to close local store", zap.Error(err))
	}

	// Sync buffered logs last
	if err := a.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}
}
