package youtube

import (
	"regexp"
	"time"
)

const (
	watchURLPrefix = "https://www.youtube.com/watch?v="
	embedURLPrefix = "https://www.youtube.com/embed/"
)

var videoIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Video is one upload returned by a channel search.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
}

// WatchURL returns the watch page URL for v.
func (v Video) WatchURL() string {
	return watchURLPrefix + v.ID
}

// EmbedURL returns the embeddable player URL for v.
func (v Video) EmbedURL() string {
	return EmbedURL(v.ID)
}

// EmbedURL returns the embeddable player URL for a video ID.
func EmbedURL(videoID string) string {
	return embedURLPrefix + videoID
}

// WatchURL returns the watch page URL for a video ID.
func WatchURL(videoID string) string {
	return watchURLPrefix + videoID
}

// ValidVideoID reports whether id looks like a platform video identifier.
func ValidVideoID(id string) bool {
	return videoIDRegex.MatchString(id)
}
