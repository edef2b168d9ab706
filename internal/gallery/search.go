package gallery

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// MatchVideo reports whether query fuzzily matches the video's title or
// description. An empty query matches everything.
func MatchVideo(query string) func(Video) bool {
	return func(v Video) bool {
		return matches(query, v.Title, v.Description)
	}
}

func MatchPost(query string) func(Post) bool {
	return func(p Post) bool {
		return matches(query, p.Title, p.Description)
	}
}

func matches(query string, fields ...string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	for _, f := range fields {
		if fuzzy.MatchNormalizedFold(query, f) {
			return true
		}
	}
	return false
}
