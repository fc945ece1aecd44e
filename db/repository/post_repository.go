package repository

import (
	"context"
	"errors"

	"github.com/agnosto/fbtweeter/db/models"
)

// ErrNotFound is returned by MarkPublished when no record has the given id.
var ErrNotFound = errors.New("post record not found")

// PostRepository defines the store operations the bot consumes.
type PostRepository interface {
	// FindByIDs returns the stored records whose id is in ids.
	FindByIDs(ctx context.Context, ids []string) ([]models.PostRecord, error)
	// InsertMany stores new records. Callers must not pass ids that already exist.
	InsertMany(ctx context.Context, posts []models.PostRecord) error
	// FindUnpublishedOldest returns up to limit unpublished records, oldest created_time first.
	FindUnpublishedOldest(ctx context.Context, limit int) ([]models.PostRecord, error)
	// MarkPublished flips published to true for id.
	MarkPublished(ctx context.Context, id string) error
	Close(ctx context.Context) error
}

var (
	_ PostRepository = (*GormPostRepository)(nil)
	_ PostRepository = (*MongoPostRepository)(nil)
	_ PostRepository = (*PostgresPostRepository)(nil)
)
