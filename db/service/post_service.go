package service

import (
	"context"
	"fmt"

	"github.com/agnosto/fbtweeter/db/models"
	"github.com/agnosto/fbtweeter/db/repository"
)

// PostService admits new feed posts and picks the next one to publish.
type PostService struct {
	repo repository.PostRepository
}

// NewPostService creates a new post service
func NewPostService(repo repository.PostRepository) *PostService {
	return &PostService{repo: repo}
}

// AdmitNew inserts the records of batch whose id is not stored yet and
// returns how many were inserted. Repeated ids inside batch keep their
// first occurrence.
func (s *PostService) AdmitNew(ctx context.Context, batch []models.PostRecord) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(batch))
	for _, p := range batch {
		ids = append(ids, p.ID)
	}

	existing, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to look up existing posts: %w", err)
	}

	seen := make(map[string]struct{}, len(existing)+len(batch))
	for _, p := range existing {
		seen[p.ID] = struct{}{}
	}

	fresh := make([]models.PostRecord, 0, len(batch))
	for _, p := range batch {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		p.Published = false
		fresh = append(fresh, p)
	}

	if len(fresh) == 0 {
		return 0, nil
	}
	if err := s.repo.InsertMany(ctx, fresh); err != nil {
		return 0, fmt.Errorf("failed to insert %d new posts: %w", len(fresh), err)
	}
	return len(fresh), nil
}

// OldestUnpublished returns at most one record: the unpublished one with the
// smallest created_time.
func (s *PostService) OldestUnpublished(ctx context.Context) ([]models.PostRecord, error) {
	posts, err := s.repo.FindUnpublishedOldest(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to select oldest unpublished post: %w", err)
	}
	return posts, nil
}

// DedupAndSelect admits the new records of batch, then selects the oldest
// unpublished record whether or not anything was inserted.
func (s *PostService) DedupAndSelect(ctx context.Context, batch []models.PostRecord) (int, []models.PostRecord, error) {
	inserted, err := s.AdmitNew(ctx, batch)
	if err != nil {
		return 0, nil, err
	}
	next, err := s.OldestUnpublished(ctx)
	if err != nil {
		return inserted, nil, err
	}
	return inserted, next, nil
}

// Pending lists up to limit unpublished records in publish order.
func (s *PostService) Pending(ctx context.Context, limit int) ([]models.PostRecord, error) {
	return s.repo.FindUnpublishedOldest(ctx, limit)
}

// MarkPublished records that id has been tweeted.
func (s *PostService) MarkPublished(ctx context.Context, id string) error {
	if err := s.repo.MarkPublished(ctx, id); err != nil {
		return fmt.Errorf("failed to mark post %s as published: %w", id, err)
	}
	return nil
}
