package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	ythttp "ytmonitor/http"
)

// ErrThumbnailHost is returned for thumbnail URLs outside the allowed hosts.
var ErrThumbnailHost = errors.New("youtube: thumbnail host not allowed")

// Thumbnail is a fetched image.
type Thumbnail struct {
	ContentType string
	Data        []byte
}

// ThumbnailFetcher retrieves thumbnail images through the resilient HTTP
// client. Only platform image hosts are fetched.
type ThumbnailFetcher struct {
	client    *ythttp.Client
	allowHost func(host string) bool
}

// NewThumbnailFetcher creates a fetcher restricted to the platform image hosts.
func NewThumbnailFetcher(client *ythttp.Client) *ThumbnailFetcher {
	return &ThumbnailFetcher{client: client, allowHost: ythttp.IsThumbnailHost}
}

// WithAllowedHosts replaces the host check, e.g. to admit a test server.
func (t *ThumbnailFetcher) WithAllowedHosts(allow func(host string) bool) *ThumbnailFetcher {
	t.allowHost = allow
	return t
}

// Allowed reports whether rawURL may be fetched.
func (t *ThumbnailFetcher) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return t.allowedURL(u)
}

func (t *ThumbnailFetcher) allowedURL(u *url.URL) bool {
	if (u.Scheme != "https" && u.Scheme != "http") || u.Hostname() == "" {
		return false
	}
	return t.allowHost(u.Hostname())
}

// Fetch downloads the image at rawURL. Redirects are followed only to
// allowed hosts.
func (t *ThumbnailFetcher) Fetch(ctx context.Context, rawURL string) (*Thumbnail, error) {
	if !t.Allowed(rawURL) {
		return nil, fmt.Errorf("%w: %q", ErrThumbnailHost, rawURL)
	}
	ctx = ythttp.WithRedirectPolicy(ctx, func(req *http.Request, _ []*http.Request) error {
		if !t.allowedURL(req.URL) {
			return ErrThumbnailHost
		}
		return nil
	})
	resp, err := t.client.Get(ctx, rawURL)
	if errors.Is(err, ErrThumbnailHost) {
		return nil, fmt.Errorf("%w: %q redirected to a foreign host", ErrThumbnailHost, rawURL)
	}
	if err != nil {
		return nil, httpFailure(OpThumbnail, err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(resp.Body)
	}
	return &Thumbnail{ContentType: ct, Data: resp.Body}, nil
}
