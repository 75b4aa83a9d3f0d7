package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ytmonitor/aggregate"
	"ytmonitor/storage"
	"ytmonitor/youtube"
)

// listInput accepts either a JSON array or a comma/newline separated string.
type listInput []string

func (l *listInput) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*l = storage.SplitList(text)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*l = list
	return nil
}

type configRequest struct {
	Channels listInput `json:"channels"`
	Keywords listInput `json:"keywords"`
}

type playResponse struct {
	VideoID  string `json:"video_id"`
	EmbedURL string `json:"embed_url"`
	WatchURL string `json:"watch_url"`
}

const healthCheckTimeout = 2 * time.Second

func (s *Server) health(c *gin.Context) {
	if len(s.deps.Checks) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	checks := make(gin.H, len(s.deps.Checks))
	for name, p := range s.deps.Checks {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Store.Snapshot())
}

func (s *Server) putConfig(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid body: "+err.Error()))
		return
	}

	if err := s.deps.Store.SaveSettings(c.Request.Context(), req.Channels, req.Keywords); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, errorBody("configuration not saved"))
		return
	}
	c.JSON(http.StatusOK, s.deps.Store.Snapshot())
}

func (s *Server) listVideos(c *gin.Context) {
	req, ok := s.aggregateRequest(c)
	if !ok {
		return
	}
	s.respondAggregate(c, req)
}

func (s *Server) refresh(c *gin.Context) {
	req, ok := s.aggregateRequest(c)
	if !ok {
		return
	}
	if err := s.deps.Aggregator.Invalidate(c.Request.Context()); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, errorBody("cache not cleared"))
		return
	}
	s.respondAggregate(c, req)
}

// aggregateRequest builds the request from the stored configuration and
// the max_results query parameter.
func (s *Server) aggregateRequest(c *gin.Context) (aggregate.Request, bool) {
	maxResults := s.deps.DefaultMaxResults
	if raw := c.Query("max_results"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody("max_results must be an integer"))
			return aggregate.Request{}, false
		}
		maxResults = n
	}

	cfg := s.deps.Store.Snapshot()
	return aggregate.Request{
		Channels:   cfg.Channels,
		MaxResults: youtube.ClampMaxResults(maxResults),
		Keywords:   cfg.Keywords,
	}, true
}

func (s *Server) respondAggregate(c *gin.Context, req aggregate.Request) {
	res, err := s.deps.Aggregator.Aggregate(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		body := gin.H{"error": err.Error(), "videos": []youtube.Video{}}
		if res != nil {
			body["failures"] = res.Failures
		}
		status := http.StatusInternalServerError
		if errors.Is(err, aggregate.ErrAllChannelsFailed) {
			status = http.StatusBadGateway
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) play(c *gin.Context) {
	id := c.Param("id")
	if !youtube.ValidVideoID(id) {
		c.JSON(http.StatusBadRequest, errorBody("invalid video id"))
		return
	}
	c.JSON(http.StatusOK, playResponse{
		VideoID:  id,
		EmbedURL: youtube.EmbedURL(id),
		WatchURL: youtube.WatchURL(id),
	})
}

func (s *Server) thumbnail(c *gin.Context) {
	raw := c.Query("url")
	if s.deps.Thumbnails == nil || !s.deps.Thumbnails.Allowed(raw) {
		c.JSON(http.StatusBadRequest, errorBody("thumbnail url not allowed"))
		return
	}

	th, err := s.deps.Thumbnails.Fetch(c.Request.Context(), raw)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusBadGateway, errorBody("thumbnail unavailable"))
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, th.ContentType, th.Data)
}
