package youtube

import (
	"context"

	"github.com/rs/zerolog"
)

// Fetcher retrieves a channel's most recent uploads. When a fallback is
// configured it is consulted after the API reports exhausted quota.
type Fetcher struct {
	primary  VideoSearcher
	fallback VideoSearcher
	logger   zerolog.Logger
}

// NewFetcher creates a fetcher over primary. fallback may be nil.
func NewFetcher(primary, fallback VideoSearcher, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "fetcher").Logger(),
	}
}

// ClampMaxResults bounds n to [1, MaxResultsCeiling].
func ClampMaxResults(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxResultsCeiling:
		return MaxResultsCeiling
	}
	return n
}

// FetchLatest returns up to maxResults uploads of channelID in API order
// (newest first). On failure it returns an empty slice and a *TransportError
// or *APIError.
func (f *Fetcher) FetchLatest(ctx context.Context, channelID string, maxResults int) ([]Video, error) {
	n := int64(ClampMaxResults(maxResults))

	videos, err := f.primary.SearchVideos(ctx, channelID, n)
	if err != nil && f.fallback != nil && IsQuotaError(err) {
		f.logger.Warn().Err(err).Str("channel_id", channelID).Msg("quota exhausted, reading channel feed")
		videos, err = f.fallback.SearchVideos(ctx, channelID, n)
	}
	if err != nil {
		return []Video{}, err
	}
	if videos == nil {
		videos = []Video{}
	}
	return videos, nil
}
