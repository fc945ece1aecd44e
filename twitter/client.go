package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"golang.org/x/time/rate"

	"github.com/agnosto/fbtweeter/config"
)

const (
	defaultUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
	defaultTweetURL  = "https://api.twitter.com/2/tweets"
)

var ErrNoMediaID = errors.New("media upload returned no media id")

// --- v1.1 media/upload (simple upload) ---

type MediaUploadResp struct {
	MediaID       int64  `json:"media_id"`
	MediaIDString string `json:"media_id_string"`
}

// --- v2 create tweet ---

type TweetReq struct {
	Text  string      `json:"text"`
	Media *TweetMedia `json:"media,omitempty"`
}

type TweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type TweetResp struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// Client calls the Twitter API with OAuth 1.0a user-context credentials.
type Client struct {
	HTTP      *http.Client
	UploadURL string
	TweetURL  string
	limiter   *rate.Limiter
}

func NewClient(cfg *config.Config) *Client {
	oauthCfg := oauth1.NewConfig(cfg.Secrets.TwitterConsumerKey, cfg.Secrets.TwitterConsumerSecret)
	token := oauth1.NewToken(cfg.Secrets.TwitterAccessTokenKey, cfg.Secrets.TwitterAccessTokenSecret)

	httpClient := oauthCfg.Client(oauth1.NoContext, token)
	httpClient.Timeout = cfg.Twitter.Timeout

	perCall := time.Minute / time.Duration(cfg.Twitter.RequestsPerMinute)
	return &Client{
		HTTP:      httpClient,
		UploadURL: defaultUploadURL,
		TweetURL:  defaultTweetURL,
		limiter:   rate.NewLimiter(rate.Every(perCall), 2),
	}
}

// UploadMedia uploads an image and returns its media id string.
func (c *Client) UploadMedia(ctx context.Context, filename string, data []byte) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait error: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("media", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.UploadURL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var media MediaUploadResp
	if err := c.do(req, &media); err != nil {
		return "", fmt.Errorf("media upload failed: %w", err)
	}
	if media.MediaIDString == "" {
		if media.MediaID == 0 {
			return "", ErrNoMediaID
		}
		media.MediaIDString = fmt.Sprintf("%d", media.MediaID)
	}
	return media.MediaIDString, nil
}

// PostStatus creates a tweet with text and one attached media id. It returns the tweet id.
func (c *Client) PostStatus(ctx context.Context, text, mediaID string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait error: %w", err)
	}

	payload := TweetReq{Text: text}
	if mediaID != "" {
		payload.Media = &TweetMedia{MediaIDs: []string{mediaID}}
	}
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TweetURL, bytes.NewReader(jsonPayload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var tweet TweetResp
	if err := c.do(req, &tweet); err != nil {
		return "", fmt.Errorf("status update failed: %w", err)
	}
	return tweet.Data.ID, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return json.Unmarshal(body, out)
}

// APIError is a non-2xx answer from the Twitter API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("twitter returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("twitter returned status %d: %s", e.StatusCode, e.Message)
}

// errorMessage pulls a readable message out of v1.1 or v2 error bodies.
func errorMessage(body []byte) string {
	var parsed struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return strings.TrimSpace(string(body))
	}
	var msgs []string
	for _, e := range parsed.Errors {
		if e.Message != "" {
			msgs = append(msgs, e.Message)
		}
	}
	if parsed.Detail != "" {
		msgs = append(msgs, parsed.Detail)
	} else if parsed.Title != "" {
		msgs = append(msgs, parsed.Title)
	}
	return strings.Join(msgs, "; ")
}
