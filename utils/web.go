package utils

import (
	"net/url"
	"path"
)

// GetFileNameFromURL returns the last path element of urlStr, ignoring the query.
func GetFileNameFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Path == "" {
		return ""
	}
	return path.Base(u.Path)
}
