package publish

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/agnosto/fbtweeter/db/models"
	"github.com/agnosto/fbtweeter/db/repository"
	"github.com/agnosto/fbtweeter/db/service"
)

// ErrNotRecorded wraps store failures that happen after the tweet went out.
// The record stays unpublished and will be tweeted again on a later run.
var ErrNotRecorded = errors.New("tweet posted but not recorded as published")

type Images interface {
	Fetch(ctx context.Context, imageURL string) ([]byte, string, error)
}

type Social interface {
	UploadMedia(ctx context.Context, filename string, data []byte) (string, error)
	PostStatus(ctx context.Context, text, mediaID string) (string, error)
}

// StoreOpener opens a store connection for one unit of work.
type StoreOpener func(ctx context.Context) (repository.PostRepository, error)

type Publisher struct {
	images    Images
	social    Social
	openStore StoreOpener
	logger    *log.Logger
}

func NewPublisher(images Images, social Social, openStore StoreOpener, logger *log.Logger) *Publisher {
	return &Publisher{images: images, social: social, openStore: openStore, logger: logger}
}

// Publish tweets post with its image, then marks it published. Each step runs
// only after the previous one succeeded; nothing is rolled back on failure.
func (p *Publisher) Publish(ctx context.Context, post models.PostRecord) (string, error) {
	data, name, err := p.images.Fetch(ctx, post.ImageURL)
	if err != nil {
		return "", fmt.Errorf("failed to download image for post %s: %w", post.ID, err)
	}

	mediaID, err := p.social.UploadMedia(ctx, name, data)
	if err != nil {
		return "", fmt.Errorf("failed to upload media for post %s: %w", post.ID, err)
	}
	p.logger.Printf("Uploaded media %s for post %s", mediaID, post.ID)

	tweetID, err := p.social.PostStatus(ctx, post.Text, mediaID)
	if err != nil {
		return "", fmt.Errorf("failed to tweet post %s: %w", post.ID, err)
	}
	p.logger.Printf("Tweeted post %s as %s", post.ID, tweetID)

	if err := p.markPublished(ctx, post.ID); err != nil {
		return tweetID, fmt.Errorf("%w: tweet %s: %w", ErrNotRecorded, tweetID, err)
	}
	return tweetID, nil
}

func (p *Publisher) markPublished(ctx context.Context, id string) error {
	repo, err := p.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := repo.Close(ctx); cerr != nil {
			p.logger.Printf("Error closing store: %v", cerr)
		}
	}()

	return service.NewPostService(repo).MarkPublished(ctx, id)
}
