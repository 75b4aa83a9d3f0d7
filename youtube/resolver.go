package youtube

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"ytmonitor/internal/metrics"
	"ytmonitor/storage"
)

// PageScraper extracts a channel identifier from a channel page.
type PageScraper interface {
	ScrapeChannelID(ctx context.Context, pageURL string) (string, error)
}

// Resolver maps channel references to channel identifiers, consulting and
// updating an identifier cache.
type Resolver struct {
	cache    storage.IDCache
	searcher ChannelSearcher
	scraper  PageScraper
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithScraper enables the page-scrape fallback used when a search has no match.
func WithScraper(s PageScraper) ResolverOption {
	return func(r *Resolver) { r.scraper = s }
}

// WithResolverLogger sets the resolver's logger.
func WithResolverLogger(l zerolog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// WithResolverMetrics sets the metrics sink.
func WithResolverMetrics(m *metrics.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver creates a resolver backed by cache and searcher.
func NewResolver(cache storage.IDCache, searcher ChannelSearcher, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cache:    cache,
		searcher: searcher,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "resolver").Logger()
	return r
}

// Resolve returns the channel identifier for reference.
//
// A cached mapping is returned without any external call. Otherwise the
// reference is classified; direct identifiers need no call, handles and
// usernames cost exactly one channel search. On success the mapping is put
// and flushed once before returning. A flush failure is returned; the
// mapping stays in the in-memory cache.
func (r *Resolver) Resolve(ctx context.Context, reference string) (string, error) {
	log := r.logger.With().Str("reference", reference).Logger()

	if id, ok, err := r.cache.Get(ctx, reference); err != nil {
		log.Warn().Err(err).Msg("id cache lookup failed")
	} else if ok {
		r.metrics.Resolution("cached")
		return id, nil
	}

	ref := ParseReference(reference)
	if err := ref.Validate(); err != nil {
		r.metrics.Resolution("failed")
		return "", err
	}

	var id string
	result := "direct"
	if !ref.Searchable() {
		id = ref.Value
	} else {
		ids, err := r.searcher.SearchChannel(ctx, ref.Value)
		if err != nil {
			r.metrics.Resolution("failed")
			return "", err
		}
		if len(ids) > 0 {
			id, result = ids[0], "searched"
		} else if r.scraper != nil {
			id = r.scrape(ctx, ref)
			result = "scraped"
		}
		if id == "" {
			r.metrics.Resolution("failed")
			return "", &ResolutionError{Reference: reference, Query: ref.Value}
		}
	}

	if err := r.cache.Put(ctx, reference, id); err != nil {
		return "", err
	}
	if err := r.cache.Flush(ctx); err != nil {
		log.Error().Err(err).Str("channel_id", id).Msg("flush id cache failed")
		return "", err
	}

	r.metrics.Resolution(result)
	log.Debug().Str("channel_id", id).Str("via", result).Msg("resolved")
	return id, nil
}

func (r *Resolver) scrape(ctx context.Context, ref Reference) string {
	id, err := r.scraper.ScrapeChannelID(ctx, ref.PageURL())
	if err != nil {
		if !errors.Is(err, ErrChannelNotFound) {
			r.logger.Warn().Err(err).Str("page", ref.PageURL()).Msg("page scrape failed")
		}
		return ""
	}
	return id
}
