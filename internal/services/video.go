package services

import (
	"net/url"
	"strings"
)

// VideoID extracts the YouTube video identifier from a watch or short link.
// It reports false for any other host or when the identifier is missing.
func VideoID(raw string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}

	var id string
	switch strings.ToLower(parsed.Hostname()) {
	case "www.youtube.com", "youtube.com":
		id = parsed.Query().Get("v")
	case "youtu.be":
		id = strings.TrimPrefix(parsed.Path, "/")
	default:
		return "", false
	}

	if id == "" {
		return "", false
	}
	return id, true
}
