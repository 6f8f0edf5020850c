package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kukuri-social/kukuri/internal/model"
	"github.com/kukuri-social/kukuri/internal/setup"
	"github.com/urfave/cli/v3"
)

// ClientLogDir specifies where client log files are stored.
const ClientLogDir = "logs/client_logs"

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "client",
		Usage: "Kukuri client for the peer-to-peer social network",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the sync engine until interrupted",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return withApp(ctx, func(ctx context.Context, a *setup.App) error {
						if err := a.StartSync(); err != nil {
							return err
						}

						if user, err := a.Auth.RestoreSession(ctx); err == nil && user != nil {
							fmt.Printf("Signed in as %s\n", user.DisplayName)
						}

						if _, err := a.Feed.RefreshFeed(ctx); err != nil {
							a.Logger.Warn("Initial feed refresh failed")
						}

						fmt.Println("Sync engine running, press Ctrl+C to stop")
						<-ctx.Done()

						return nil
					})
				},
			},
			{
				Name:  "create-user",
				Usage: "Create a profile and sign in",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Display name", Required: true},
					&cli.StringFlag{Name: "bio", Usage: "Profile bio"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(ctx, func(ctx context.Context, a *setup.App) error {
						user, err := a.Auth.CreateUser(ctx, c.String("name"), c.String("bio"))
						if err != nil {
							return err
						}

						fmt.Printf("Created user %s (%s)\n", user.DisplayName, user.ID)

						return nil
					})
				},
			},
			{
				Name:      "login",
				Usage:     "Sign in with an existing user id",
				ArgsUsage: "<user-id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(ctx, func(ctx context.Context, a *setup.App) error {
						user, err := a.Auth.SignIn(ctx, c.Args().First())
						if err != nil {
							return err
						}

						fmt.Printf("Signed in as %s\n", user.DisplayName)

						return nil
					})
				},
			},
			{
				Name:  "logout",
				Usage: "End the current session",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return withApp(ctx, func(_ context.Context, a *setup.App) error {
						return a.Auth.Logout()
					})
				},
			},
			{
				Name:  "timeline",
				Usage: "Show the latest posts",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return withApp(ctx, func(ctx context.Context, a *setup.App) error {
						if _, err := a.Feed.RefreshFeed(ctx); err != nil {
							return err
						}

						for _, post := range a.Views.Timeline() {
							printPost(ctx, a, post)
						}

						return nil
					})
				},
			},
			{
				Name:      "post",
				Usage:     "Publish a post",
				ArgsUsage: "<content>",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withSession(ctx, func(ctx context.Context, a *setup.App) error {
						postID, err := a.Feed.Create(ctx, c.Args().First(), nil)
						if err != nil {
							return err
						}

						fmt.Printf("Published post %s\n", postID)

						return nil
					})
				},
			},
			{
				Name:      "follow",
				Usage:     "Follow a user",
				ArgsUsage: "<user-id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withSession(ctx, func(ctx context.Context, a *setup.App) error {
						return a.Profiles.Follow(ctx, c.Args().First())
					})
				},
			},
			{
				Name:      "unfollow",
				Usage:     "Unfollow a user",
				ArgsUsage: "<user-id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withSession(ctx, func(ctx context.Context, a *setup.App) error {
						return a.Profiles.Unfollow(ctx, c.Args().First())
					})
				},
			},
			{
				Name:      "profile",
				Usage:     "Show a user's profile and posts",
				ArgsUsage: "<user-id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(ctx, func(ctx context.Context, a *setup.App) error {
						userID := c.Args().First()

						user, err := a.Profiles.Fetch(ctx, userID)
						if err != nil {
							return err
						}

						if user == nil {
							fmt.Println("Profile not found")
							return nil
						}

						fmt.Printf("%s\n%s\nfollowing %d, followers %d\n\n",
							user.DisplayName, user.Bio, len(user.Following), len(user.Followers))

						if _, err := a.Feed.FetchUserPosts(ctx, userID); err != nil {
							return err
						}

						for _, post := range a.Views.PostsByUser(userID) {
							printPost(ctx, a, post)
						}

						return nil
					})
				},
			},
			{
				Name:      "search",
				Usage:     "Search posts",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 50, Usage: "Maximum number of results"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(ctx, func(ctx context.Context, a *setup.App) error {
						posts, err := a.Feed.Search(ctx, c.Args().First(), int(c.Int("limit")))
						if err != nil {
							return err
						}

						for _, post := range posts {
							fmt.Printf("[%s] %s\n", post.AuthorID, post.Content)
						}

						return nil
					})
				},
			},
			{
				Name:  "status",
				Usage: "Show per-stream network status",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return withApp(ctx, func(ctx context.Context, a *setup.App) error {
						if err := a.StartSync(); err != nil {
							return err
						}

						// Give the daemon a moment to push connectivity events.
						select {
						case <-time.After(2 * time.Second):
						case <-ctx.Done():
						}

						fmt.Printf("profile stream: %s\npost stream:    %s\n",
							a.ProfileSync.Status(), a.PostSync.Status())

						return nil
					})
				},
			},
		},
	}

	return app.Run(ctx, os.Args)
}

// withApp initializes the client, runs fn, and cleans up on every path.
func withApp(ctx context.Context, fn func(context.Context, *setup.App) error) error {
	app, err := setup.InitializeApp(ctx, ClientLogDir)
	if err != nil {
		return err
	}
	defer app.Cleanup()

	return fn(ctx, app)
}

// withSession is withApp plus a restored session; commands that mutate on
// behalf of the user need one.
func withSession(ctx context.Context, fn func(context.Context, *setup.App) error) error {
	return withApp(ctx, func(ctx context.Context, a *setup.App) error {
		user, err := a.Auth.RestoreSession(ctx)
		if err != nil {
			return err
		}

		if user == nil {
			return fmt.Errorf("no saved session, run login or create-user first")
		}

		return fn(ctx, a)
	})
}

func printPost(ctx context.Context, a *setup.App, post *model.Post) {
	// Resolve the author lazily; a missing profile falls back to the
	// placeholder rather than failing the listing.
	if _, err := a.Profiles.Fetch(ctx, post.AuthorID); err != nil {
		a.Logger.Debug("Failed to fetch author profile")
	}

	name := a.Views.DisplayNameOrPlaceholder(post.AuthorID)
	created := time.Unix(post.CreatedAt, 0).Format(time.RFC3339)
	fmt.Printf("%s (%s)\n%s\n\n", name, created, post.Content)
}
