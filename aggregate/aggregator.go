// Package aggregate merges the uploads of many channels into one
// keyword-filtered, newest-first list and memoizes the outcome.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ytmonitor/internal/metrics"
	"ytmonitor/youtube"
)

// DefaultTTL is how long an aggregation result is reused.
const DefaultTTL = time.Hour

// ErrAllChannelsFailed is returned when no channel could be aggregated.
var ErrAllChannelsFailed = errors.New("aggregate: all channels failed")

// Failure stages.
const (
	StageResolve = "resolve"
	StageFetch   = "fetch"
)

// Resolver maps a channel reference to a channel identifier.
type Resolver interface {
	Resolve(ctx context.Context, reference string) (string, error)
}

// Fetcher lists a channel's most recent uploads.
type Fetcher interface {
	FetchLatest(ctx context.Context, channelID string, maxResults int) ([]youtube.Video, error)
}

// Request selects what to aggregate.
type Request struct {
	Channels   []string
	MaxResults int
	Keywords   []string
}

// ChannelFailure records a channel skipped during aggregation. Err keeps the
// youtube error types across the memo; any other error keeps only its text.
type ChannelFailure struct {
	Reference string
	Stage     string
	// Message is the full text of the original error.
	Message string
	Err     error
}

// Result is the merged, filtered and sorted output of one aggregation.
type Result struct {
	Videos      []youtube.Video  `json:"videos"`
	Failures    []ChannelFailure `json:"failures"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// AllFailed reports whether every requested channel failed.
func (r *Result) AllFailed(channels int) bool {
	return channels > 0 && len(r.Failures) == channels
}

func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	out.Videos = append([]youtube.Video(nil), r.Videos...)
	out.Failures = append([]ChannelFailure(nil), r.Failures...)
	if out.Videos == nil {
		out.Videos = []youtube.Video{}
	}
	if out.Failures == nil {
		out.Failures = []ChannelFailure{}
	}
	return &out
}

// Options configures an Aggregator.
type Options struct {
	// TTL is how long results are memoized. Zero selects DefaultTTL.
	TTL time.Duration
	// Concurrency bounds how many channels are processed at once. Values
	// below 1 mean sequential processing.
	Concurrency int
	// Cache stores memoized results. Nil selects a MemoryCache.
	Cache   ResultCache
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	// Now is the clock used for GeneratedAt. Nil selects time.Now.
	Now func() time.Time
}

// Aggregator runs resolve, fetch and filter for each channel and merges the
// results.
type Aggregator struct {
	resolver    Resolver
	fetcher     Fetcher
	filter      Filterer
	cache       ResultCache
	ttl         time.Duration
	concurrency int
	logger      zerolog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// New creates an aggregator.
func New(resolver Resolver, fetcher Fetcher, opts Options) *Aggregator {
	a := &Aggregator{
		resolver:    resolver,
		fetcher:     fetcher,
		cache:       opts.Cache,
		ttl:         opts.TTL,
		concurrency: opts.Concurrency,
		logger:      opts.Logger.With().Str("component", "aggregator").Logger(),
		metrics:     opts.Metrics,
		now:         opts.Now,
	}
	if a.cache == nil {
		a.cache = NewMemoryCache()
	}
	if a.ttl <= 0 {
		a.ttl = DefaultTTL
	}
	if a.concurrency < 1 {
		a.concurrency = 1
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// outcome is the work product for one channel.
type outcome struct {
	videos  []youtube.Video
	failure *ChannelFailure
}

// Aggregate returns the merged uploads for req, newest first.
//
// Within the TTL an identical request is answered from the memo without any
// external call. One failing channel never blocks the others; its failure is
// reported in Result.Failures. When every channel fails the empty result is
// returned with an error wrapping ErrAllChannelsFailed and nothing is
// memoized.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (*Result, error) {
	key := Key(req)
	log := a.logger.With().Str("key", key[:12]).Logger()

	if res, ok, err := a.cache.Get(ctx, key); err != nil {
		log.Warn().Err(err).Msg("memo lookup failed")
	} else if ok {
		a.metrics.CacheLookup(true)
		log.Debug().Msg("memo hit")
		return res, nil
	}
	a.metrics.CacheLookup(false)

	start := time.Now()
	outcomes := a.run(ctx, req)

	res := &Result{
		Videos:      []youtube.Video{},
		Failures:    []ChannelFailure{},
		GeneratedAt: a.now().UTC(),
	}
	for _, o := range outcomes {
		if o.failure != nil {
			res.Failures = append(res.Failures, *o.failure)
			continue
		}
		res.Videos = append(res.Videos, o.videos...)
	}
	sort.SliceStable(res.Videos, func(i, j int) bool {
		return res.Videos[i].PublishedAt.After(res.Videos[j].PublishedAt)
	})
	a.metrics.ObserveAggregate(time.Since(start))

	if res.AllFailed(len(req.Channels)) {
		log.Error().Int("channels", len(req.Channels)).Msg("all channels failed")
		return res, fmt.Errorf("%w: %w", ErrAllChannelsFailed, res.Failures[0].Err)
	}

	if err := a.cache.Set(ctx, key, res, a.ttl); err != nil {
		log.Warn().Err(err).Msg("memo store failed")
	}

	log.Info().
		Int("channels", len(req.Channels)).
		Int("videos", len(res.Videos)).
		Int("failures", len(res.Failures)).
		Dur("took", time.Since(start)).
		Msg("aggregated")
	return res.clone(), nil
}

// Invalidate drops every memoized result.
func (a *Aggregator) Invalidate(ctx context.Context) error {
	if err := a.cache.Clear(ctx); err != nil {
		return fmt.Errorf("invalidate: %w", err)
	}
	a.logger.Info().Msg("memo cleared")
	return nil
}

// run processes every channel, writing each outcome into the slot of its
// channel index so the merge order equals channel order.
func (a *Aggregator) run(ctx context.Context, req Request) []outcome {
	outcomes := make([]outcome, len(req.Channels))

	if a.concurrency == 1 || len(req.Channels) < 2 {
		for i, ref := range req.Channels {
			outcomes[i] = a.channel(ctx, ref, req)
		}
		return outcomes
	}

	sem := make(chan struct{}, a.concurrency)
	var wg sync.WaitGroup
	for i, ref := range req.Channels {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, ref string) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = a.channel(ctx, ref, req)
		}(i, ref)
	}
	wg.Wait()
	return outcomes
}

func (a *Aggregator) channel(ctx context.Context, ref string, req Request) outcome {
	id, err := a.resolver.Resolve(ctx, ref)
	if err != nil {
		return a.fail(ref, StageResolve, err)
	}
	videos, err := a.fetcher.FetchLatest(ctx, id, req.MaxResults)
	if err != nil {
		return a.fail(ref, StageFetch, err)
	}
	return outcome{videos: a.filter.Filter(videos, req.Keywords)}
}

func (a *Aggregator) fail(ref, stage string, err error) outcome {
	a.metrics.ChannelFailure(stage)
	a.logger.Warn().Err(err).Str("reference", ref).Str("stage", stage).Msg("channel skipped")
	return outcome{failure: &ChannelFailure{Reference: ref, Stage: stage, Message: err.Error(), Err: normalizeFailure(err)}}
}
