package cmd

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/agnosto/fbtweeter/config"
	"github.com/agnosto/fbtweeter/db"
	"github.com/agnosto/fbtweeter/db/models"
	"github.com/agnosto/fbtweeter/db/repository"
	dbservice "github.com/agnosto/fbtweeter/db/service"
	"github.com/agnosto/fbtweeter/posts"
	"github.com/agnosto/fbtweeter/publish"
	"github.com/agnosto/fbtweeter/server"
	"github.com/agnosto/fbtweeter/service"
	"github.com/agnosto/fbtweeter/twitter"
)

const pendingLimit = 500

// App holds the wired components for one process.
type App struct {
	Config *config.Config
	Logger *log.Logger
	Feed   *posts.FeedClient
	Images *publish.ImageFetcher
	Bot    *service.Bot
	Server *server.Server
}

func NewApp(cfg *config.Config, logger *log.Logger) *App {
	app := &App{Config: cfg, Logger: logger}

	app.Feed = posts.NewFeedClient(cfg)
	app.Images = publish.NewImageFetcher(cfg.Twitter.Timeout, cfg.Twitter.MaxImageBytes)
	publisher := publish.NewPublisher(app.Images, twitter.NewClient(cfg), app.OpenStore, logger)
	app.Bot = service.NewBot(app.Feed, app.OpenStore, publisher, cfg.Schedule.Interval, logger)
	app.Server = server.New(app.Bot, app.OpenStore, logger)
	app.Server.RunToken = cfg.Secrets.StatusToken
	return app
}

func (a *App) OpenStore(ctx context.Context) (repository.PostRepository, error) {
	return db.Open(ctx, a.Config)
}

// Pending lists unpublished records, oldest first.
func (a *App) Pending(ctx context.Context) ([]models.PostRecord, error) {
	repo, err := a.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := repo.Close(ctx); cerr != nil {
			a.Logger.Printf("Error closing store: %v", cerr)
		}
	}()
	return dbservice.NewPostService(repo).Pending(ctx, pendingLimit)
}

// Serve runs the scheduler, plus the status server when one is configured,
// until ctx is cancelled or the bot is shut down.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		a.Bot.Run(gctx)
		return nil
	})

	if addr := a.Config.Server.ListenAddr; addr != "" {
		g.Go(func() error {
			return a.Server.ListenAndServe(gctx, addr, a.Config.Server.Mode)
		})
	}

	return g.Wait()
}
