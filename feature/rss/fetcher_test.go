package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Example</title><link>https://blog.example.com/</link>
<item><title>One</title><link>https://blog.example.com/1</link><guid>one</guid></item>
</channel></rss>`

func TestHTTPFetcher(t *testing.T) {
	var agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		if r.URL.Path != "/feed.xml" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(Config{UserAgent: "test-agent", TimeoutSeconds: 5})

	feed, err := f.Fetch(context.Background(), srv.URL+"/feed.xml")
	require.NoError(t, err)
	assert.Equal(t, "Example", feed.Title)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "test-agent", agent)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}
