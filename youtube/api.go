package youtube

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	ythttp "ytmonitor/http"
	"ytmonitor/internal/metrics"
	"ytmonitor/retry"
)

// Operation names used in errors, logs and metrics.
const (
	OpSearchChannels = "search.channels"
	OpSearchVideos   = "search.videos"
	OpFeed           = "feed"
	OpPage           = "page"
	OpThumbnail      = "thumbnail"
)

// MaxResultsCeiling is the per-request limit of the search endpoint.
const MaxResultsCeiling = 50

// ChannelSearcher finds channel identifiers by free-text query.
type ChannelSearcher interface {
	// SearchChannel returns at most one channel id for query; an empty slice
	// means no match.
	SearchChannel(ctx context.Context, query string) ([]string, error)
}

// VideoSearcher lists a channel's most recent uploads.
type VideoSearcher interface {
	SearchVideos(ctx context.Context, channelID string, maxResults int64) ([]Video, error)
}

// APIConfig configures an APIClient.
type APIConfig struct {
	APIKey string
	// HTTPClient carries every API request. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Endpoint overrides the API base URL, e.g. for tests.
	Endpoint string
	Retry    retry.Config
	// CallTimeout bounds each attempt of an external call.
	CallTimeout time.Duration
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
}

// APIClient talks to the YouTube Data API v3. It implements ChannelSearcher
// and VideoSearcher.
type APIClient struct {
	service     *youtube.Service
	apiKey      string
	retry       retry.Config
	callTimeout time.Duration
	logger      zerolog.Logger
	metrics     *metrics.Metrics
}

// NewAPIClient creates a Data API client.
func NewAPIClient(ctx context.Context, cfg APIConfig) (*APIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("youtube: api key required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &APIClient{
		service:     service,
		apiKey:      cfg.APIKey,
		retry:       cfg.Retry,
		callTimeout: cfg.CallTimeout,
		logger:      cfg.Logger.With().Str("component", "youtube_api").Logger(),
		metrics:     cfg.Metrics,
	}, nil
}

// SearchChannel issues one channel search for query with a limit of 1.
func (a *APIClient) SearchChannel(ctx context.Context, query string) ([]string, error) {
	var ids []string
	err := a.call(ctx, OpSearchChannels, func(ctx context.Context) error {
		resp, err := a.service.Search.List([]string{"id"}).
			Q(query).
			Type("channel").
			MaxResults(1).
			Context(ctx).
			Do(googleapi.QueryParameter("key", a.apiKey))
		if err != nil {
			return err
		}

		ids = ids[:0]
		for _, item := range resp.Items {
			if item.Id != nil && item.Id.ChannelId != "" {
				ids = append(ids, item.Id.ChannelId)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SearchVideos lists the newest uploads of channelID, newest first.
func (a *APIClient) SearchVideos(ctx context.Context, channelID string, maxResults int64) ([]Video, error) {
	var videos []Video
	err := a.call(ctx, OpSearchVideos, func(ctx context.Context) error {
		resp, err := a.service.Search.List([]string{"snippet"}).
			ChannelId(channelID).
			Order("date").
			Type("video").
			MaxResults(maxResults).
			Context(ctx).
			Do(googleapi.QueryParameter("key", a.apiKey))
		if err != nil {
			return err
		}

		videos = make([]Video, 0, len(resp.Items))
		for _, item := range resp.Items {
			if v, ok := videoFromSearchResult(item, channelID); ok {
				videos = append(videos, v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return videos, nil
}

// call runs fn under the retry policy. Each attempt gets its own timeout and
// its error is classified before the retry decision. Only transport failures
// are retried, and only while ctx is live.
func (a *APIClient) call(ctx context.Context, op string, fn func(context.Context) error) error {
	cfg := a.retry
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		a.logger.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("wait", wait).Msg("retrying")
	}
	retryable := func(err error) bool {
		return ctx.Err() == nil && isRetryableTransport(err)
	}

	err := retry.Do(ctx, cfg, retryable, func(ctx context.Context) error {
		attemptCtx := ctx
		if a.callTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, a.callTimeout)
			defer cancel()
		}
		err := classify(op, fn(attemptCtx))
		a.metrics.ExternalCall(op, err)
		return err
	})
	if err == nil {
		return nil
	}

	a.logger.Debug().Err(err).Str("op", op).Msg("call failed")
	var re *retry.RetryableError
	if errors.As(err, &re) {
		// Callers match on the typed error, not the retry wrapper.
		err = re.Err
	}
	var te *TransportError
	var ae *APIError
	if !errors.As(err, &te) && !errors.As(err, &ae) {
		err = &TransportError{Op: op, Err: err}
	}
	return err
}

// classify converts an SDK error into APIError or TransportError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		apiErr := &APIError{Op: op, StatusCode: gerr.Code, Message: gerr.Message}
		if len(gerr.Errors) > 0 {
			apiErr.Reason = gerr.Errors[0].Reason
			if apiErr.Message == "" {
				apiErr.Message = gerr.Errors[0].Message
			}
		}
		return apiErr
	}
	return &TransportError{Op: op, Err: err}
}

// isRetryableTransport retries transport failures only. An open circuit
// fails fast.
func isRetryableTransport(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return !errors.Is(err, ythttp.ErrCircuitOpen)
}

func videoFromSearchResult(item *youtube.SearchResult, channelID string) (Video, bool) {
	if item == nil || item.Id == nil || item.Id.VideoId == "" {
		return Video{}, false
	}
	v := Video{ID: item.Id.VideoId, ChannelID: channelID}
	if s := item.Snippet; s != nil {
		v.Title = html.UnescapeString(s.Title)
		v.Description = html.UnescapeString(s.Description)
		v.ChannelTitle = html.UnescapeString(s.ChannelTitle)
		if s.ChannelId != "" {
			v.ChannelID = s.ChannelId
		}
		if t, err := time.Parse(time.RFC3339, s.PublishedAt); err == nil {
			v.PublishedAt = t.UTC()
		}
		v.Thumbnail = pickThumbnail(s.Thumbnails)
	}
	return v, true
}

// pickThumbnail prefers the medium rendition.
func pickThumbnail(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*youtube.Thumbnail{t.Medium, t.High, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}
