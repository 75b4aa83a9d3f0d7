package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ytmonitor/retry"
)

const searchVideosBody = `{
 "items": [
  {
   "id": {"kind": "youtube#video", "videoId": "vid1"},
   "snippet": {
    "publishedAt": "2024-03-02T10:00:00Z",
    "channelId": "UCchan",
    "channelTitle": "Chan",
    "title": "Tom &amp; Jerry&#39;s day",
    "description": "first",
    "thumbnails": {
     "default": {"url": "https://i.ytimg.com/vi/vid1/default.jpg"},
     "medium": {"url": "https://i.ytimg.com/vi/vid1/mqdefault.jpg"}
    }
   }
  },
  {
   "id": {"kind": "youtube#video", "videoId": "vid2"},
   "snippet": {
    "publishedAt": "2024-03-01T10:00:00Z",
    "channelId": "UCchan",
    "title": "second",
    "description": "",
    "thumbnails": {"default": {"url": "https://i.ytimg.com/vi/vid2/default.jpg"}}
   }
  }
 ]
}`

func testRetry() retry.Config {
	return retry.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2}
}

func newTestAPIClient(t *testing.T, srv *httptest.Server) *APIClient {
	t.Helper()
	client, err := NewAPIClient(context.Background(), APIConfig{
		APIKey:      "test-key",
		HTTPClient:  srv.Client(),
		Endpoint:    srv.URL + "/",
		Retry:       testRetry(),
		CallTimeout: time.Second,
		Logger:      zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewAPIClient() error = %v", err)
	}
	return client
}

func TestNewAPIClientRequiresKey(t *testing.T) {
	if _, err := NewAPIClient(context.Background(), APIConfig{}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestSearchVideos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/search") {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		for key, want := range map[string]string{
			"key":        "test-key",
			"channelId":  "UCchan",
			"order":      "date",
			"type":       "video",
			"maxResults": "5",
			"part":       "snippet",
		} {
			if got := q.Get(key); got != want {
				t.Errorf("query %s = %q, want %q", key, got, want)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchVideosBody))
	}))
	defer srv.Close()

	videos, err := newTestAPIClient(t, srv).SearchVideos(context.Background(), "UCchan", 5)
	if err != nil {
		t.Fatalf("SearchVideos() error = %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("got %d videos, want 2", len(videos))
	}

	v := videos[0]
	if v.ID != "vid1" || v.ChannelID != "UCchan" || v.ChannelTitle != "Chan" {
		t.Errorf("unexpected video %+v", v)
	}
	if v.Title != "Tom & Jerry's day" {
		t.Errorf("Title = %q, want unescaped", v.Title)
	}
	if v.Thumbnail != "https://i.ytimg.com/vi/vid1/mqdefault.jpg" {
		t.Errorf("Thumbnail = %q, want medium rendition", v.Thumbnail)
	}
	if want := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC); !v.PublishedAt.Equal(want) {
		t.Errorf("PublishedAt = %v, want %v", v.PublishedAt, want)
	}
	if videos[1].Thumbnail != "https://i.ytimg.com/vi/vid2/default.jpg" {
		t.Errorf("fallback thumbnail = %q", videos[1].Thumbnail)
	}
}

func TestSearchChannel(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"match", `{"items":[{"id":{"kind":"youtube#channel","channelId":"UCabc"}}]}`, []string{"UCabc"}},
		{"no match", `{"items":[]}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if q.Get("q") != "someHandle" || q.Get("type") != "channel" || q.Get("maxResults") != "1" {
					t.Errorf("unexpected query %v", q)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			ids, err := newTestAPIClient(t, srv).SearchChannel(context.Background(), "someHandle")
			if err != nil {
				t.Fatalf("SearchChannel() error = %v", err)
			}
			if len(ids) != len(tt.want) || (len(ids) > 0 && ids[0] != tt.want[0]) {
				t.Errorf("SearchChannel() = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestAPIErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"quota gone","errors":[{"reason":"quotaExceeded","message":"quota gone"}]}}`))
	}))
	defer srv.Close()

	_, err := newTestAPIClient(t, srv).SearchVideos(context.Background(), "UCchan", 5)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 403 || apiErr.Reason != "quotaExceeded" || !apiErr.IsQuotaExceeded() {
		t.Errorf("APIError = %+v", apiErr)
	}
	if apiErr.Op != OpSearchVideos {
		t.Errorf("Op = %q", apiErr.Op)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if !IsQuotaError(err) {
		t.Error("IsQuotaError() = false")
	}
}

func TestTransportErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("hijacking unsupported")
			return
		}
		conn, _, _ := hj.Hijack()
		conn.Close()
	}))
	defer srv.Close()

	_, err := newTestAPIClient(t, srv).SearchChannel(context.Background(), "x")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if te.Op != OpSearchChannels {
		t.Errorf("Op = %q", te.Op)
	}
	if calls.Load() < 2 {
		t.Errorf("calls = %d, want retries", calls.Load())
	}
}

func TestCanceledContextIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAPIClient(t, srv).SearchVideos(ctx, "UCchan", 5)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled: %v", err)
	}
}

func TestErrorsArePermanent(t *testing.T) {
	for _, err := range []error{
		&APIError{Op: "x", StatusCode: 400},
		&ResolutionError{Reference: "r"},
		&InvalidReferenceError{Reference: "r"},
	} {
		if retry.IsRetryable(err) {
			t.Errorf("%T should not be retryable", err)
		}
	}
	if !retry.IsRetryable(&TransportError{Op: "x", Err: errors.New("reset")}) {
		t.Error("TransportError should be retryable")
	}
}
