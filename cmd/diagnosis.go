package cmd

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/fatih/color"

	"github.com/agnosto/fbtweeter/config"
	"github.com/agnosto/fbtweeter/db"
	"github.com/agnosto/fbtweeter/posts"
	"github.com/agnosto/fbtweeter/publish"
	"github.com/agnosto/fbtweeter/service"
)

var (
	passColor = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
	infoColor = color.New(color.FgCyan)
)

// DiagnosisSuite checks configuration, secrets, store connectivity and
// the page feed without publishing anything.
type DiagnosisSuite struct {
	cfg        *config.Config
	configPath string
	feed       service.FeedSource
	openStore  publish.StoreOpener
	out        io.Writer
	failures   int
}

func NewDiagnosisSuite(cfg *config.Config, configPath string, feed service.FeedSource, openStore publish.StoreOpener, out io.Writer) *DiagnosisSuite {
	return &DiagnosisSuite{
		cfg:        cfg,
		configPath: configPath,
		feed:       feed,
		openStore:  openStore,
		out:        out,
	}
}

// Run executes every check and returns the number of failures.
func (ds *DiagnosisSuite) Run(ctx context.Context) int {
	ds.log("Starting diagnosis suite...")
	ds.log("----------------------------------")

	ds.testConfig()
	secretsOK := ds.testSecrets()
	if secretsOK {
		ds.testStore(ctx)
		ds.testFeed(ctx)
	}

	ds.log("----------------------------------")
	if ds.failures == 0 {
		passColor.Fprintln(ds.out, "All checks passed.")
	} else {
		failColor.Fprintf(ds.out, "%d check(s) failed.\n", ds.failures)
	}
	return ds.failures
}

func (ds *DiagnosisSuite) log(message string) {
	fmt.Fprintln(ds.out, message)
}

func (ds *DiagnosisSuite) pass(format string, args ...any) {
	passColor.Fprint(ds.out, " - PASS: ")
	fmt.Fprintf(ds.out, format+"\n", args...)
}

func (ds *DiagnosisSuite) fail(format string, args ...any) {
	ds.failures++
	failColor.Fprint(ds.out, " - FAIL: ")
	fmt.Fprintf(ds.out, format+"\n", args...)
}

func (ds *DiagnosisSuite) info(format string, args ...any) {
	infoColor.Fprint(ds.out, " - INFO: ")
	fmt.Fprintf(ds.out, format+"\n", args...)
}

var credentialsPattern = regexp.MustCompile(`://([^:/@]+):([^@]+)@`)

// redactConnectionString hides the password in a store URI.
func redactConnectionString(conn string) string {
	return credentialsPattern.ReplaceAllString(conn, "://$1:[REDACTED]@")
}

func (ds *DiagnosisSuite) testConfig() {
	ds.log("\n[1] Configuration")
	ds.info("Config path: %s", ds.configPath)
	ds.info("Graph API %s, page %s, limit %d", ds.cfg.Feed.GraphVersion, config.PageID, ds.cfg.Feed.Limit)
	ds.info("Runs every %s", ds.cfg.Schedule.Interval)
	ds.pass("Config loaded.")
}

func (ds *DiagnosisSuite) testSecrets() bool {
	ds.log("\n[2] Secrets")
	if err := ds.cfg.Validate(true); err != nil {
		ds.fail("%v", err)
		return ds.cfg.Secrets.FacebookAccessToken != "" && ds.cfg.Secrets.StoreConnectionString != ""
	}
	ds.pass("All secrets present.")
	return true
}

func (ds *DiagnosisSuite) testStore(ctx context.Context) {
	ds.log("\n[3] Store")
	conn := ds.cfg.Secrets.StoreConnectionString
	driver, err := db.ResolveDriver(ds.cfg.Store.Driver, conn)
	if err != nil {
		ds.fail("%v", err)
		return
	}
	ds.info("Driver %s at %s", driver, redactConnectionString(conn))

	start := time.Now()
	repo, err := ds.openStore(ctx)
	if err != nil {
		ds.fail("Could not connect: %v", err)
		return
	}
	defer repo.Close(ctx)

	pending, err := repo.FindUnpublishedOldest(ctx, 1)
	if err != nil {
		ds.fail("Query failed: %v", err)
		return
	}
	ds.pass("Connected in %s.", time.Since(start).Round(time.Millisecond))
	if len(pending) > 0 {
		ds.info("Next post to tweet: %s", pending[0].ID)
	} else {
		ds.info("No unpublished posts.")
	}
}

func (ds *DiagnosisSuite) testFeed(ctx context.Context) {
	ds.log("\n[4] Facebook feed")
	items, err := ds.feed.Fetch(ctx)
	if err != nil {
		ds.fail("Feed request failed: %v", err)
		return
	}
	kept := posts.FilterItems(items, config.PageID)
	ds.pass("Fetched %d posts, %d eligible for tweeting.", len(items), len(kept))
}
