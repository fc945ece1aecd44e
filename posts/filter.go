package posts

// Keep reports whether item can be tweeted: it must carry an image and must
// not have been posted by the page itself.
func Keep(item FeedItem, pageID string) bool {
	// Filter out posts without a full picture
	if item.FullPicture == "" {
		return false
	}

	// Filter posts made by the page itself
	if item.From != nil && item.From.ID == pageID {
		return false
	}
	return true
}

// FilterItems returns the items Keep accepts, in feed order.
func FilterItems(items []FeedItem, pageID string) []FeedItem {
	kept := make([]FeedItem, 0, len(items))
	for _, item := range items {
		if Keep(item, pageID) {
			kept = append(kept, item)
		}
	}
	return kept
}
