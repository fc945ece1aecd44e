package posts

import (
	"github.com/agnosto/fbtweeter/db/models"
)

const (
	MaxTextLength = 140
	ellipsis      = "..."
)

// TruncateText caps msg at MaxTextLength runes, replacing the tail with an ellipsis.
func TruncateText(msg string) string {
	runes := []rune(msg)
	if len(runes) <= MaxTextLength {
		return msg
	}
	return string(runes[:MaxTextLength-len(ellipsis)]) + ellipsis
}

// ToRecord maps a feed item to an unpublished post record.
func ToRecord(item FeedItem) models.PostRecord {
	return models.PostRecord{
		ID:          item.ID,
		Text:        TruncateText(item.Message),
		ImageURL:    item.FullPicture,
		CreatedTime: item.CreatedTime.UTC(),
		Published:   false,
	}
}

// Transform maps each item to an unpublished record with ToRecord, keeping order.
func Transform(items []FeedItem) []models.PostRecord {
	out := make([]models.PostRecord, 0, len(items))
	for _, item := range items {
		out = append(out, ToRecord(item))
	}
	return out
}
