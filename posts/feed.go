package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agnosto/fbtweeter/config"
	"github.com/agnosto/fbtweeter/logger"
)

const graphBaseURL = "https://graph.facebook.com"

// feedFields are the post fields requested from the Graph API.
const feedFields = "message,from,full_picture,created_time"

// graphTimeLayout is how the Graph API formats created_time.
const graphTimeLayout = "2006-01-02T15:04:05-0700"

var ErrNoData = errors.New("graph response has no data")

type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FeedItem is one post from a page feed. Every field but id may be absent.
type FeedItem struct {
	ID          string    `json:"id"`
	Message     string    `json:"message,omitempty"`
	From        *Author   `json:"from,omitempty"`
	FullPicture string    `json:"full_picture,omitempty"`
	CreatedTime GraphTime `json:"created_time"`
}

type GraphTime struct {
	time.Time
}

func (t *GraphTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{graphTimeLayout, time.RFC3339} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid created_time %q", s)
}

func (t GraphTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.Format(graphTimeLayout))), nil
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// FeedResponse is the feed envelope. Items are decoded one by one so a
// malformed post is skipped instead of failing the page.
type FeedResponse struct {
	Data  *[]json.RawMessage `json:"data"`
	Error *graphError        `json:"error,omitempty"`
}

// FeedClient reads the first page of a Facebook page feed.
type FeedClient struct {
	Client      *http.Client
	BaseURL     string
	Version     string
	PageID      string
	AccessToken string
	Limit       int
	Logger      *log.Logger
}

func NewFeedClient(cfg *config.Config) *FeedClient {
	return &FeedClient{
		BaseURL:     graphBaseURL,
		Version:     cfg.Feed.GraphVersion,
		PageID:      config.PageID,
		AccessToken: cfg.Secrets.FacebookAccessToken,
		Limit:       cfg.Feed.Limit,
		Logger:      logger.Logger,
		Client: &http.Client{
			Timeout: cfg.Feed.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 5 * time.Second,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *FeedClient) feedURL() string {
	q := url.Values{}
	q.Set("fields", feedFields)
	q.Set("limit", strconv.Itoa(c.Limit))
	q.Set("access_token", c.AccessToken)

	base := strings.TrimRight(c.BaseURL, "/")
	if c.Version != "" {
		base += "/" + c.Version
	}
	return fmt.Sprintf("%s/%s/feed?%s", base, url.PathEscape(c.PageID), q.Encode())
}

// Fetch returns the posts on the first page of the feed. Pagination is not followed.
func (c *FeedClient) Fetch(ctx context.Context) ([]FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request failed: %w", redactToken(err, c.AccessToken))
	}
	defer resp.Body.Close()

	var feed FeedResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&feed)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && feed.Error != nil {
			return nil, fmt.Errorf("graph request failed with status %d: %s (code %d)", resp.StatusCode, feed.Error.Message, feed.Error.Code)
		}
		return nil, fmt.Errorf("graph request failed with status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode graph feed: %w", decodeErr)
	}
	if feed.Data == nil {
		return nil, ErrNoData
	}
	return c.decodeItems(*feed.Data), nil
}

// decodeItems keeps every item that decodes and has an id; the rest are logged and dropped.
func (c *FeedClient) decodeItems(raw []json.RawMessage) []FeedItem {
	items := make([]FeedItem, 0, len(raw))
	for i, msg := range raw {
		var item FeedItem
		if err := json.Unmarshal(msg, &item); err != nil {
			c.logf("Skipping malformed feed item %d: %v", i, err)
			continue
		}
		if item.ID == "" {
			c.logf("Skipping feed item %d without an id", i)
			continue
		}
		items = append(items, item)
	}
	return items
}

func (c *FeedClient) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Output(2, fmt.Sprintf(format, args...))
	}
}

// redactToken keeps the access token out of logged url.Error messages.
func redactToken(err error, token string) error {
	var uerr *url.Error
	if token == "" || !errors.As(err, &uerr) {
		return err
	}
	return &url.Error{
		Op:  uerr.Op,
		URL: strings.ReplaceAll(uerr.URL, url.QueryEscape(token), "REDACTED"),
		Err: uerr.Err,
	}
}
