package utils

import "testing"

func TestGetFileNameFromURL(t *testing.T) {
	tests := map[string]string{
		"https://scontent.xx.fbcdn.net/v/t1.0-9/21230_n.jpg?oh=abc&oe=5A": "21230_n.jpg",
		"https://external.xx.fbcdn.net/safe_image.php?d=AQ":               "safe_image.php",
		"https://example.com/":                                            "/",
		"https://example.com":                                             "",
		"::not a url":                                                     "",
	}
	for in, want := range tests {
		if got := GetFileNameFromURL(in); got != want {
			t.Errorf("GetFileNameFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}
