package repository

import (
	"context"

	"github.com/agnosto/fbtweeter/db/models"
	"gorm.io/gorm"
)

// GormPostRepository implements PostRepository using GORM
type GormPostRepository struct {
	db *gorm.DB
}

// NewGormPostRepository creates a new post repository
func NewGormPostRepository(db *gorm.DB) *GormPostRepository {
	return &GormPostRepository{db: db}
}

func (r *GormPostRepository) FindByIDs(ctx context.Context, ids []string) ([]models.PostRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var posts []models.PostRecord
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&posts).Error
	return posts, err
}

func (r *GormPostRepository) InsertMany(ctx context.Context, posts []models.PostRecord) error {
	if len(posts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&posts).Error
}

func (r *GormPostRepository) FindUnpublishedOldest(ctx context.Context, limit int) ([]models.PostRecord, error) {
	var posts []models.PostRecord
	err := r.db.WithContext(ctx).
		Where("published = ?", false).
		Order("created_time ASC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

func (r *GormPostRepository) MarkPublished(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&models.PostRecord{}).
		Where("id = ?", id).
		Update("published", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormPostRepository) Close(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
