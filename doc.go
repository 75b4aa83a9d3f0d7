// Package ytmonitor monitors a configured set of YouTube channels and serves
// their latest videos as one relevance filtered, newest first list.
//
// Overview
//
// A request flows through four stages:
//
//   - youtube.Resolver turns a channel reference (URL, @handle, bare ID) into
//     a canonical channel ID, caching each mapping in the ID cache
//   - youtube.Fetcher lists a channel's latest uploads through the Data API,
//     falling back to the channel RSS feed when the quota is exhausted
//   - aggregate.Filterer keeps the videos whose title or description
//     contains any keyword, compared case-insensitively
//   - aggregate.Aggregator merges every channel, sorts by publish time and
//     memoizes the result for a TTL until Invalidate is called
//
// The server package exposes the pipeline over HTTP and the cli command wires
// it from configuration.
//
// Configuration
//
// Settings are loaded from several sources:
//
//   1. Command-line flags (highest priority)
//   2. Environment variables, one per flag
//   3. Settings file (ytmonitor.yaml or ~/.config/ytmonitor/ytmonitor.yaml)
//   4. Default values (lowest priority)
//
// Common environment variables:
//
//   - YOUTUBE_API_KEY or YTMONITOR_API_KEY: Data API key
//   - YTMONITOR_CONFIG_PATH: channel and keyword store (JSON or YAML)
//   - YTMONITOR_ID_CACHE: optional SQLite database for resolved channel IDs
//   - YTMONITOR_CACHE_TTL: result memo lifetime, e.g. 30m
//   - YTMONITOR_REDIS_URL: share the result memo through Redis
//   - YTMONITOR_MAX_RESULTS: default videos per channel (1-50)
//   - YTMONITOR_LISTEN_ADDR: HTTP listen address
//   - YTMONITOR_LOG_LEVEL: debug, info, warn or error
//   - YTMONITOR_RSS_FALLBACK, YTMONITOR_SCRAPE_FALLBACK: true or false
//
// Error Handling
//
// Checking for sentinel errors:
//
//	if errors.Is(err, ytmonitor.ErrChannelNotFound) {
//		fmt.Println("no channel matches the reference")
//	}
//
// Extracting wrapped error details:
//
//	var apiErr *ytmonitor.APIError
//	if errors.As(err, &apiErr) && apiErr.IsQuotaExceeded() {
//		fmt.Println("daily quota used up")
//	}
//
// Sub-packages
//
//   - youtube: reference parsing, resolution, fetching, feeds and thumbnails
//   - aggregate: keyword filter, result memo and aggregation
//   - storage: configuration file store and channel ID caches
//   - http: rate limited, circuit breaking HTTP client
//   - retry: exponential backoff retry logic
//   - config: settings loading and validation
//   - server: HTTP API
package ytmonitor
