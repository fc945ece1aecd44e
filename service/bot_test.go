package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agnosto/fbtweeter/config"
	"github.com/agnosto/fbtweeter/db/models"
	"github.com/agnosto/fbtweeter/db/repository"
	"github.com/agnosto/fbtweeter/posts"
)

type fakeFeed struct {
	items   []posts.FeedItem
	err     error
	calls   atomic.Int32
	release chan struct{}
}

func (f *fakeFeed) Fetch(ctx context.Context) ([]posts.FeedItem, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	return f.items, f.err
}

type store struct {
	mu      sync.Mutex
	posts   map[string]models.PostRecord
	opens   int
	openErr error
}

func newStore(seed ...models.PostRecord) *store {
	s := &store{posts: map[string]models.PostRecord{}}
	for _, p := range seed {
		s.posts[p.ID] = p
	}
	return s
}

func (s *store) open(context.Context) (repository.PostRepository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opens++
	return s, nil
}

func (s *store) FindByIDs(_ context.Context, ids []string) ([]models.PostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PostRecord
	for _, id := range ids {
		if p, ok := s.posts[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *store) InsertMany(_ context.Context, recs []models.PostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range recs {
		if _, ok := s.posts[p.ID]; ok {
			return errors.New("duplicate " + p.ID)
		}
		s.posts[p.ID] = p
	}
	return nil
}

func (s *store) FindUnpublishedOldest(_ context.Context, limit int) ([]models.PostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PostRecord
	for _, p := range s.posts {
		if !p.Published {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedTime.Before(out[j].CreatedTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *store) MarkPublished(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.posts[id]
	p.Published = true
	s.posts[id] = p
	return nil
}

func (s *store) Close(context.Context) error { return nil }

type fakePublisher struct {
	store *store
	err   error
	got   []string
}

func (p *fakePublisher) Publish(ctx context.Context, post models.PostRecord) (string, error) {
	p.got = append(p.got, post.ID)
	if p.err != nil {
		return "", p.err
	}
	return "tweet-" + post.ID, p.store.MarkPublished(ctx, post.ID)
}

var quiet = log.New(io.Discard, "", 0)

func item(id string, created time.Time, image bool) posts.FeedItem {
	it := posts.FeedItem{ID: id, Message: "msg " + id, CreatedTime: posts.GraphTime{Time: created}}
	if image {
		it.FullPicture = "https://img/" + id
	}
	return it
}

func TestRunOnce_PublishesOldestEligible(t *testing.T) {
	base := time.Date(2017, 9, 1, 0, 0, 0, 0, time.UTC)
	feed := &fakeFeed{items: []posts.FeedItem{
		item("new", base.Add(3*time.Hour), true),
		item("old", base.Add(1*time.Hour), true),
		item("noimg", base, false),
		{ID: "self", FullPicture: "https://img/self", From: &posts.Author{ID: config.PageID}, CreatedTime: posts.GraphTime{Time: base}},
	}}
	st := newStore()
	pub := &fakePublisher{store: st}
	bot := NewBot(feed, st.open, pub, time.Hour, quiet)

	res, err := bot.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fetched != 4 || res.Kept != 2 || res.Inserted != 2 {
		t.Errorf("result = %+v", res)
	}
	if len(pub.got) != 1 || pub.got[0] != "old" || res.TweetID != "tweet-old" {
		t.Fatalf("published %v (tweet %q), want old", pub.got, res.TweetID)
	}
	if len(st.posts) != 2 {
		t.Errorf("stored %d posts, want 2", len(st.posts))
	}
	if st.opens != 1 {
		t.Errorf("store opened %d times by the bot, want 1", st.opens)
	}

	// next run publishes the remaining post and inserts nothing
	res, err = bot.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 0 || res.Next == nil || res.Next.ID != "new" {
		t.Fatalf("second run = %+v", res)
	}

	// then nothing is left
	res, err = bot.RunOnce(context.Background())
	if err != nil || res.Next != nil || len(pub.got) != 2 {
		t.Fatalf("third run = %+v err=%v published=%v", res, err, pub.got)
	}
}

func TestSync_DoesNotPublish(t *testing.T) {
	feed := &fakeFeed{items: []posts.FeedItem{item("a", time.Unix(10, 0), true)}}
	st := newStore()
	pub := &fakePublisher{store: st}
	bot := NewBot(feed, st.open, pub, time.Hour, quiet)

	res, err := bot.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 1 || res.Next == nil || res.Next.ID != "a" {
		t.Fatalf("result = %+v", res)
	}
	if len(pub.got) != 0 {
		t.Fatalf("sync published %v", pub.got)
	}
}

func TestPipeline_LogsCallerLine(t *testing.T) {
	feed := &fakeFeed{items: []posts.FeedItem{item("a", time.Unix(10, 0), true)}}
	st := newStore()
	var buf bytes.Buffer
	bot := NewBot(feed, st.open, &fakePublisher{store: st}, time.Hour, log.New(&buf, "", log.Lshortfile))

	if _, err := bot.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d log lines:\n%s", len(lines), buf.String())
	}
	seen := map[string]bool{}
	for _, line := range lines {
		loc, _, _ := strings.Cut(line, " ")
		if !strings.HasPrefix(loc, "bot.go:") || !strings.Contains(line, "[run ") {
			t.Fatalf("unexpected log line %q", line)
		}
		if seen[loc] {
			t.Fatalf("two lines report %s; want the calling line each time:\n%s", loc, buf.String())
		}
		seen[loc] = true
	}
}

func TestRunOnce_ErrorsAbortRun(t *testing.T) {
	boom := errors.New("boom")

	t.Run("feed", func(t *testing.T) {
		st := newStore()
		pub := &fakePublisher{store: st}
		bot := NewBot(&fakeFeed{err: boom}, st.open, pub, time.Hour, quiet)
		if _, err := bot.RunOnce(context.Background()); !errors.Is(err, boom) {
			t.Fatalf("err = %v", err)
		}
		if st.opens != 0 || len(pub.got) != 0 {
			t.Fatal("pipeline continued after feed error")
		}
	})

	t.Run("store", func(t *testing.T) {
		st := newStore()
		st.openErr = boom
		pub := &fakePublisher{store: st}
		bot := NewBot(&fakeFeed{items: []posts.FeedItem{item("a", time.Unix(1, 0), true)}}, st.open, pub, time.Hour, quiet)
		if _, err := bot.RunOnce(context.Background()); !errors.Is(err, boom) {
			t.Fatalf("err = %v", err)
		}
		if len(pub.got) != 0 {
			t.Fatal("published after store error")
		}
	})

	t.Run("publish", func(t *testing.T) {
		st := newStore()
		pub := &fakePublisher{store: st, err: boom}
		bot := NewBot(&fakeFeed{items: []posts.FeedItem{item("a", time.Unix(1, 0), true)}}, st.open, pub, time.Hour, quiet)
		if _, err := bot.RunOnce(context.Background()); !errors.Is(err, boom) {
			t.Fatalf("err = %v", err)
		}
		if st.posts["a"].Published {
			t.Fatal("record published despite publish error")
		}
	})
}

func TestRunOnce_ConcurrentCallersShareRun(t *testing.T) {
	feed := &fakeFeed{release: make(chan struct{})}
	st := newStore()
	bot := NewBot(feed, st.open, &fakePublisher{store: st}, time.Hour, quiet)

	var wg sync.WaitGroup
	results := make([]RunResult, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = bot.RunOnce(context.Background())
		}(i)
	}

	// let all callers reach the in-flight run before releasing it
	deadline := time.Now().Add(2 * time.Second)
	for feed.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(feed.release)
	wg.Wait()

	if n := feed.calls.Load(); n != 1 {
		t.Fatalf("feed fetched %d times, want 1", n)
	}
	for i, r := range results {
		if r.RunID != results[0].RunID {
			t.Errorf("caller %d got run %s, want %s", i, r.RunID, results[0].RunID)
		}
	}
}

func TestRun_ImmediateThenTicks(t *testing.T) {
	feed := &fakeFeed{}
	st := newStore()
	bot := NewBot(feed, st.open, &fakePublisher{store: st}, 20*time.Millisecond, quiet)

	done := make(chan struct{})
	go func() {
		bot.Run(context.Background())
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for feed.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	bot.Shutdown()
	bot.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after Shutdown")
	}
	if feed.calls.Load() < 3 {
		t.Fatalf("only %d runs", feed.calls.Load())
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	feed := &fakeFeed{err: errors.New("graph down")}
	st := newStore()
	bot := NewBot(feed, st.open, &fakePublisher{store: st}, time.Hour, quiet)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bot.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if feed.calls.Load() != 1 {
		t.Fatalf("want exactly the startup run, got %d", feed.calls.Load())
	}
}
