package rss

import (
	"context"
	"errors"
	"strings"
	"testing"

	"timeline-cache/core/model"
	"timeline-cache/feature/timeline"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const feedURL = "https://blog.example/feed.xml"

var reader = model.NewKey("local", "rss")

const document = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Blog</title>
    <link>https://blog.example/</link>
    <description>Posts</description>
    <item>
      <title>Second</title>
      <link>https://blog.example/2</link>
      <guid>post-2</guid>
      <pubDate>Tue, 02 Jan 2024 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>First</title>
      <link>https://mirror.example/1</link>
      <pubDate>Mon, 01 Jan 2024 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Broken</title>
    </item>
  </channel>
</rss>`

func TestMapFeed(t *testing.T) {
	feed, err := Parse(strings.NewReader(document))
	require.NoError(t, err)

	batch, errs := MapFeed(reader, model.RSSBucket(feedURL), feedURL, feed)
	require.Len(t, errs, 1)
	require.Len(t, batch.Statuses, 2)
	require.Len(t, batch.Users, 1)
	assert.Empty(t, batch.References)

	owner := batch.Users[0]
	assert.Equal(t, model.NewKey(feedURL, "blog.example"), owner.UserKey)
	assert.Equal(t, "Example Blog", owner.Name)

	assert.Equal(t, model.NewKey("post-2", "blog.example"), batch.Statuses[0].StatusKey)
	assert.Equal(t, model.NewKey("https://mirror.example/1", "mirror.example"), batch.Statuses[1].StatusKey)
	assert.Greater(t, batch.Entries[0].SortID, batch.Entries[1].SortID)

	item := batch.Statuses[0].Content.(model.RSSItem)
	assert.Equal(t, "Second", item.Item.Title)
	assert.Equal(t, feedURL, item.FeedURL)
}

func TestMapUser_BadURL(t *testing.T) {
	_, err := MapUser("not a url", nil)
	var mapErr *model.MappingError
	require.ErrorAs(t, err, &mapErr)
	assert.Equal(t, "feed_url", mapErr.Field)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse(strings.NewReader("{nope"))
	assert.Error(t, err)
}

type mockService struct {
	mock.Mock
}

func (m *mockService) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	args := m.Called(ctx, url)
	f, _ := args.Get(0).(*gofeed.Feed)
	return f, args.Error(1)
}

func TestSource(t *testing.T) {
	svc := new(mockService)
	src := NewSource(svc, reader, feedURL)
	assert.Equal(t, timeline.RefreshReplace, src.RefreshMode())

	resp, err := src.Load(context.Background(), timeline.Request{Direction: timeline.Append})
	require.NoError(t, err)
	assert.True(t, resp.EndOfStream)

	feed, err := Parse(strings.NewReader(document))
	require.NoError(t, err)
	svc.On("Fetch", mock.Anything, feedURL).Return(feed, nil).Once()
	resp, err = src.Load(context.Background(), timeline.Request{Direction: timeline.Refresh})
	require.NoError(t, err)
	assert.True(t, resp.EndOfStream)
	assert.Len(t, resp.Batch.Entries, 2)

	svc.On("Fetch", mock.Anything, feedURL).Return(nil, errors.New("timeout")).Once()
	_, err = src.Load(context.Background(), timeline.Request{Direction: timeline.Refresh})
	assert.EqualError(t, err, "timeout")
}
