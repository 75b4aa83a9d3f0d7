package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	ythttp "ytmonitor/http"
)

// DefaultFeedBaseURL is the channel uploads feed endpoint.
const DefaultFeedBaseURL = "https://www.youtube.com/feeds/videos.xml"

// FeedClient lists a channel's recent uploads from its public Atom feed.
// The feed carries at most 15 entries and costs no API quota. It implements
// VideoSearcher.
type FeedClient struct {
	client  *ythttp.Client
	baseURL string
}

// NewFeedClient creates a feed client. An empty baseURL selects DefaultFeedBaseURL.
func NewFeedClient(client *ythttp.Client, baseURL string) *FeedClient {
	if baseURL == "" {
		baseURL = DefaultFeedBaseURL
	}
	return &FeedClient{client: client, baseURL: baseURL}
}

// FeedURL returns the feed address for channelID.
func (f *FeedClient) FeedURL(channelID string) string {
	return f.baseURL + "?channel_id=" + url.QueryEscape(channelID)
}

// SearchVideos returns up to maxResults entries of the channel feed, newest first.
func (f *FeedClient) SearchVideos(ctx context.Context, channelID string, maxResults int64) ([]Video, error) {
	resp, err := f.client.Get(ctx, f.FeedURL(channelID))
	if err != nil {
		return nil, httpFailure(OpFeed, err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &APIError{Op: OpFeed, StatusCode: resp.StatusCode, Reason: "badFeed", Message: err.Error()}
	}

	videos := make([]Video, 0, len(feed.Items))
	for _, item := range feed.Items {
		if int64(len(videos)) >= maxResults {
			break
		}
		if v, ok := videoFromFeedItem(item, channelID, feed.Title); ok {
			videos = append(videos, v)
		}
	}
	return videos, nil
}

func videoFromFeedItem(item *gofeed.Item, channelID, channelTitle string) (Video, bool) {
	id := extensionValue(item.Extensions, "yt", "videoId")
	if id == "" {
		id = strings.TrimPrefix(item.GUID, "yt:video:")
	}
	if !ValidVideoID(id) {
		return Video{}, false
	}

	v := Video{
		ID:           id,
		Title:        item.Title,
		Description:  item.Description,
		ChannelID:    channelID,
		ChannelTitle: channelTitle,
	}
	if item.Author != nil && item.Author.Name != "" {
		v.ChannelTitle = item.Author.Name
	}
	if item.PublishedParsed != nil {
		v.PublishedAt = item.PublishedParsed.UTC()
	}

	if group := firstExtension(item.Extensions, "media", "group"); group != nil {
		if v.Description == "" {
			if d := group.Children["description"]; len(d) > 0 {
				v.Description = d[0].Value
			}
		}
		if th := group.Children["thumbnail"]; len(th) > 0 {
			v.Thumbnail = th[0].Attrs["url"]
		}
	}
	return v, true
}

func firstExtension(exts ext.Extensions, ns, name string) *ext.Extension {
	if exts == nil {
		return nil
	}
	list := exts[ns][name]
	if len(list) == 0 {
		return nil
	}
	return &list[0]
}

func extensionValue(exts ext.Extensions, ns, name string) string {
	if e := firstExtension(exts, ns, name); e != nil {
		return strings.TrimSpace(e.Value)
	}
	return ""
}

// httpFailure maps an error from the resilient HTTP client onto the
// package's error taxonomy. 4xx statuses become APIError; anything else is
// a TransportError.
func httpFailure(op string, err error) error {
	var httpErr *ythttp.HTTPError
	if errors.As(err, &httpErr) && ythttp.IsClientError(httpErr.StatusCode) {
		return &APIError{Op: op, StatusCode: httpErr.StatusCode, Message: fmt.Sprintf("unexpected status %d", httpErr.StatusCode)}
	}
	var rlErr *ythttp.RateLimitError
	if errors.As(err, &rlErr) {
		return &APIError{Op: op, StatusCode: rlErr.StatusCode, Reason: "rateLimitExceeded", Message: rlErr.Error()}
	}
	return &TransportError{Op: op, Err: err}
}
