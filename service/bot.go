package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/agnosto/fbtweeter/config"
	"github.com/agnosto/fbtweeter/db/models"
	dbservice "github.com/agnosto/fbtweeter/db/service"
	"github.com/agnosto/fbtweeter/posts"
	"github.com/agnosto/fbtweeter/publish"
)

type FeedSource interface {
	Fetch(ctx context.Context) ([]posts.FeedItem, error)
}

type PostPublisher interface {
	Publish(ctx context.Context, post models.PostRecord) (string, error)
}

// RunResult summarizes one pipeline execution.
type RunResult struct {
	RunID    string
	Fetched  int
	Kept     int
	Inserted int
	Next     *models.PostRecord
	TweetID  string
	Shared   bool
}

// Bot runs the fetch, dedup, and publish pipeline on a fixed interval.
type Bot struct {
	feed      FeedSource
	openStore publish.StoreOpener
	publisher PostPublisher
	logger    *log.Logger
	interval  time.Duration
	pageID    string

	group    singleflight.Group
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewBot(feed FeedSource, openStore publish.StoreOpener, publisher PostPublisher, interval time.Duration, logger *log.Logger) *Bot {
	return &Bot{
		feed:      feed,
		openStore: openStore,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		pageID:    config.PageID,
		stopChan:  make(chan struct{}),
	}
}

// RunOnce executes the full pipeline. Concurrent callers share the run that
// is already in flight instead of starting a second one.
func (b *Bot) RunOnce(ctx context.Context) (RunResult, error) {
	return b.do(ctx, "run", true)
}

// Sync fetches and stores new posts without publishing anything.
func (b *Bot) Sync(ctx context.Context) (RunResult, error) {
	return b.do(ctx, "sync", false)
}

func (b *Bot) do(ctx context.Context, key string, publishNext bool) (RunResult, error) {
	// The run outlives a caller that gives up, so other waiters still get a result.
	runCtx := context.WithoutCancel(ctx)
	v, err, shared := b.group.Do(key, func() (interface{}, error) {
		return b.pipeline(runCtx, publishNext)
	})
	res, _ := v.(RunResult)
	res.Shared = shared
	return res, err
}

func (b *Bot) pipeline(ctx context.Context, publishNext bool) (RunResult, error) {
	res := RunResult{RunID: uuid.New().String()[:8]}
	logf := func(format string, args ...any) {
		b.logger.Output(2, fmt.Sprintf("[run %s] "+format, append([]any{res.RunID}, args...)...))
	}

	items, err := b.feed.Fetch(ctx)
	if err != nil {
		return res, fmt.Errorf("error making a facebook graph request: %w", err)
	}
	res.Fetched = len(items)

	kept := posts.FilterItems(items, b.pageID)
	res.Kept = len(kept)
	records := posts.Transform(kept)
	logf("Fetched %d posts, %d eligible", res.Fetched, res.Kept)

	inserted, next, err := b.dedupAndSelect(ctx, records)
	if err != nil {
		return res, err
	}
	res.Inserted = inserted
	if inserted > 0 {
		logf("Stored %d new posts", inserted)
	}

	if len(next) == 0 {
		logf("No unpublished posts to tweet")
		return res, nil
	}
	post := next[0]
	res.Next = &post

	if !publishNext {
		logf("Next post to tweet is %s from %s", post.ID, post.CreatedTime.Format(time.RFC3339))
		return res, nil
	}

	tweetID, err := b.publisher.Publish(ctx, post)
	res.TweetID = tweetID
	if err != nil {
		return res, err
	}
	logf("Published post %s", post.ID)
	return res, nil
}

// dedupAndSelect runs in its own store session, closed before publishing starts.
func (b *Bot) dedupAndSelect(ctx context.Context, records []models.PostRecord) (int, []models.PostRecord, error) {
	repo, err := b.openStore(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if cerr := repo.Close(ctx); cerr != nil {
			b.logger.Printf("Error closing store: %v", cerr)
		}
	}()

	return dbservice.NewPostService(repo).DedupAndSelect(ctx, records)
}

func (b *Bot) runAndLog(ctx context.Context) {
	res, err := b.RunOnce(ctx)
	if err != nil {
		b.logger.Printf("[run %s] Run failed: %v", res.RunID, err)
		return
	}
	if res.Shared {
		b.logger.Printf("[run %s] Joined a run already in progress", res.RunID)
	}
}

// Run executes the pipeline immediately and then every interval until ctx is
// done or Shutdown is called. Run errors are logged, never returned.
func (b *Bot) Run(ctx context.Context) {
	b.logger.Printf("Starting bot, running every %s", b.interval)

	b.runAndLog(ctx)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.runAndLog(ctx)
		case <-b.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bot) Shutdown() {
	b.stopOnce.Do(func() { close(b.stopChan) })
}
