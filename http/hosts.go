package http

import "strings"

// thumbnailDomains are the domains YouTube serves images from.
var thumbnailDomains = []string{"ytimg.com", "ggpht.com", "googleusercontent.com"}

// IsThumbnailHost reports whether host serves YouTube thumbnails or avatars.
func IsThumbnailHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, domain := range thumbnailDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
