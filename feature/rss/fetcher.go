package rss

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// Config lists the feeds the server follows.
type Config struct {
	// Account is the local reader account the feed buckets belong to.
	Account string `mapstructure:"account" default:"local@rss" validate:"required"`
	// Feeds is a comma separated list of feed URLs.
	Feeds []string `mapstructure:"feeds" default:"" validate:"dive,url"`
	// UserAgent is sent with every fetch.
	UserAgent string `mapstructure:"user_agent" default:"timeline-cache/1.0"`
	// TimeoutSeconds bounds one fetch.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30" validate:"gte=1"`
}

// HTTPFetcher fetches feeds over HTTP with gofeed.
type HTTPFetcher struct {
	parser *gofeed.Parser
}

// NewHTTPFetcher builds a fetcher from cfg.
func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	p := gofeed.NewParser()
	p.UserAgent = cfg.UserAgent
	p.Client = &http.Client{Timeout: timeout}
	return &HTTPFetcher{parser: p}
}

// Fetch implements Service.
func (f *HTTPFetcher) Fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", feedURL, err)
	}
	return feed, nil
}
