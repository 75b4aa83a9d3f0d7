package youtube

import (
	"bytes"
	"context"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	ythttp "ytmonitor/http"
)

var channelIDLiteral = regexp.MustCompile(`"channelId":"(UC[A-Za-z0-9_-]{22})"`)

// PageResolver finds a channel identifier by reading the channel page. It
// implements PageScraper.
type PageResolver struct {
	client *ythttp.Client
}

// NewPageResolver creates a page resolver using client.
func NewPageResolver(client *ythttp.Client) *PageResolver {
	return &PageResolver{client: client}
}

// ScrapeChannelID fetches pageURL and extracts the channel identifier from
// the canonical link, the channelId meta tag, or the embedded page data, in
// that order. A page without an identifier yields ErrChannelNotFound.
func (p *PageResolver) ScrapeChannelID(ctx context.Context, pageURL string) (string, error) {
	resp, err := p.client.Do(ctx, http.MethodGet, pageURL, map[string]string{
		"Accept-Language": "en-US,en;q=0.9",
	})
	if err != nil {
		return "", httpFailure(OpPage, err)
	}
	if id := ExtractChannelID(resp.Body); id != "" {
		return id, nil
	}
	return "", ErrChannelNotFound
}

// ExtractChannelID returns the channel identifier found in a channel page, or "".
func ExtractChannelID(page []byte) string {
	if id := channelIDFromMarkup(page); id != "" {
		return id
	}
	if m := channelIDLiteral.FindSubmatch(page); m != nil {
		return string(m[1])
	}
	return ""
}

func channelIDFromMarkup(page []byte) string {
	z := html.NewTokenizer(bytes.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "link":
				if attr(tok, "rel") == "canonical" {
					if id := idFromChannelURL(attr(tok, "href")); id != "" {
						return id
					}
				}
			case "meta":
				if attr(tok, "itemprop") == "channelId" || attr(tok, "itemprop") == "identifier" {
					if id := attr(tok, "content"); bareChannelID.MatchString(id) {
						return id
					}
				}
			case "body":
				// Head metadata is exhausted.
				return ""
			}
		}
	}
}

func idFromChannelURL(href string) string {
	ref := ParseReference(href)
	if ref.Kind == KindDirectID && strings.HasPrefix(ref.Value, "UC") {
		return ref.Value
	}
	return ""
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
