package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"ytmonitor/youtube"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client), m
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()

	published := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	res := &Result{
		Videos:      []youtube.Video{{ID: "v1", Title: "t", PublishedAt: published}},
		Failures:    []ChannelFailure{{Reference: "@x", Stage: StageResolve, Message: "no channel"}},
		GeneratedAt: published,
	}
	if err := c.Set(ctx, "k", res, time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if got.Videos[0].ID != "v1" || !got.Videos[0].PublishedAt.Equal(published) {
		t.Errorf("video = %+v", got.Videos[0])
	}
	if got.Failures[0].Message != "no channel" || got.Failures[0].Stage != StageResolve {
		t.Errorf("failure = %+v", got.Failures[0])
	}

	if _, ok, err := c.Get(ctx, "missing"); ok || err != nil {
		t.Errorf("Get(missing) = %v, %v", ok, err)
	}
}

func TestRedisCacheExpiry(t *testing.T) {
	c, m := newTestRedisCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", &Result{}, time.Minute)
	if !m.Exists(DefaultRedisPrefix + "k") {
		t.Fatal("key not stored under prefix")
	}

	m.FastForward(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("entry survived its TTL")
	}
}

func TestRedisCacheClearKeepsForeignKeys(t *testing.T) {
	c, m := newTestRedisCache(t)
	ctx := context.Background()

	m.Set("other:key", "keep")
	c.Set(ctx, "a", &Result{}, time.Hour)
	c.Set(ctx, "b", &Result{}, time.Hour)

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Error("entry survived Clear")
	}
	if !m.Exists("other:key") {
		t.Error("Clear removed a key outside the prefix")
	}
}

func TestRedisCacheCorruptEntryIsMiss(t *testing.T) {
	c, m := newTestRedisCache(t)
	m.Set(DefaultRedisPrefix+"k", "not json")

	if _, ok, err := c.Get(context.Background(), "k"); ok || err != nil {
		t.Errorf("Get() = %v, %v; want miss", ok, err)
	}
}

func TestOpenRedisCache(t *testing.T) {
	m := miniredis.RunT(t)
	c, err := OpenRedisCache(context.Background(), "redis://"+m.Addr()+"/0")
	if err != nil {
		t.Fatalf("OpenRedisCache() error = %v", err)
	}
	defer c.Close()
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	if _, err := OpenRedisCache(context.Background(), "not-a-url"); err == nil {
		t.Error("expected error for invalid url")
	}
}
