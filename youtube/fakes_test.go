package youtube

import (
	"context"
	"sync"
)

type fakeCache struct {
	mu       sync.Mutex
	ids      map[string]string
	puts     int
	flushes  int
	flushErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{ids: make(map[string]string)}
}

func (c *fakeCache) Get(ctx context.Context, reference string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.ids[reference]
	return id, ok, nil
}

func (c *fakeCache) Put(ctx context.Context, reference, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[reference] = id
	c.puts++
	return nil
}

func (c *fakeCache) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	return c.flushErr
}

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]string
	err     error
	queries []string
}

func (s *fakeSearcher) SearchChannel(ctx context.Context, query string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.results[query], nil
}

func (s *fakeSearcher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

type fakeVideos struct {
	videos []Video
	err    error
	calls  int
	lastN  int64
}

func (f *fakeVideos) SearchVideos(ctx context.Context, channelID string, maxResults int64) ([]Video, error) {
	f.calls++
	f.lastN = maxResults
	if f.err != nil {
		return nil, f.err
	}
	return f.videos, nil
}

type fakeScraper struct {
	id    string
	err   error
	pages []string
}

func (s *fakeScraper) ScrapeChannelID(ctx context.Context, pageURL string) (string, error) {
	s.pages = append(s.pages, pageURL)
	return s.id, s.err
}
