package models

import (
	"time"

	"github.com/agnosto/fbtweeter/config"
)

// PostRecord is a Facebook post queued for tweeting.
type PostRecord struct {
	ID          string    `gorm:"primaryKey" bson:"_id" db:"id" json:"id"`
	Text        string    `gorm:"not null" bson:"text" db:"text" json:"text"`
	ImageURL    string    `gorm:"not null" bson:"image_url" db:"image_url" json:"image_url"`
	CreatedTime time.Time `gorm:"index:idx_fb_posts_pending,priority:2;not null" bson:"created_time" db:"created_time" json:"created_time"`
	Published   bool      `gorm:"index:idx_fb_posts_pending,priority:1;not null;default:false" bson:"published" db:"published" json:"published"`
}

// TableName overrides the table name
func (PostRecord) TableName() string {
	return config.CollectionName
}
