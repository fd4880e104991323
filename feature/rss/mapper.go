// Package rss maps syndication feeds into the cache. A feed is a single page:
// each refresh replaces the bucket with the current items.
package rss

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/mmcdole/gofeed"

	"timeline-cache/core/model"
	"timeline-cache/core/reconcile"
	"timeline-cache/feature/timeline"
)

const platform = model.PlatformRSS

// Parse reads an RSS, Atom or JSON feed document.
func Parse(r io.Reader) (*gofeed.Feed, error) {
	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func itemTime(index int, item *gofeed.Item) int64 {
	switch {
	case item.PublishedParsed != nil:
		return reconcile.MillisOf(*item.PublishedParsed)
	case item.UpdatedParsed != nil:
		return reconcile.MillisOf(*item.UpdatedParsed)
	default:
		return -int64(index)
	}
}

// MapUser builds the synthetic author of a feed, keyed by the feed URL.
func MapUser(feedURL string, feed *gofeed.Feed) (model.UserRecord, error) {
	host := hostOf(feedURL)
	if host == "" {
		return model.UserRecord{}, &model.MappingError{Platform: platform, ItemID: feedURL, Field: "feed_url", Err: model.ErrMissingField}
	}
	content := model.RSSFeedUser{FeedURL: feedURL, Title: feedURL}
	if feed != nil {
		content.Title = feed.Title
		content.Link = feed.Link
		content.Description = feed.Description
		if feed.Image != nil {
			content.ImageURL = feed.Image.URL
		}
	}
	name := content.Title
	if name == "" {
		name = host
	}
	return model.UserRecord{
		UserKey:   model.NewKey(feedURL, host),
		Platform:  platform,
		Name:      name,
		Handle:    host,
		Host:      host,
		AvatarURL: content.ImageURL,
		Content:   content,
	}, nil
}

// MapFeed maps the items of feed into bucket. Items are keyed by GUID, or by
// link when the feed has no GUIDs.
func MapFeed(account model.MicroBlogKey, bucket, feedURL string, feed *gofeed.Feed, opts ...reconcile.Option[*gofeed.Item]) (reconcile.Batch, []error) {
	var batch reconcile.Batch
	owner, err := MapUser(feedURL, feed)
	if err != nil {
		return batch, []error{err}
	}
	if feed == nil {
		return batch, nil
	}
	o := reconcile.BuildOptions(itemTime, opts)
	batch.Users = append(batch.Users, owner)

	var errs []error
	for i, item := range feed.Items {
		if item == nil {
			continue
		}
		id := item.GUID
		if id == "" {
			id = item.Link
		}
		if id == "" {
			errs = append(errs, &model.MappingError{Platform: platform, ItemID: item.Title, Field: "guid", Err: model.ErrMissingField})
			continue
		}
		host := hostOf(item.Link)
		if host == "" {
			host = owner.Host
		}
		key := model.NewKey(id, host)
		st := model.StatusRecord{
			StatusKey:  key,
			AccountKey: account,
			Platform:   platform,
			UserKey:    &owner.UserKey,
			Content:    model.RSSItem{Item: item, FeedTitle: feed.Title, FeedURL: feedURL},
		}
		if item.PublishedParsed != nil {
			st.CreatedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			st.CreatedAt = *item.UpdatedParsed
		}
		batch.Statuses = append(batch.Statuses, st)
		batch.AddEntry(account, bucket, key, o.SortID(i, item))
	}
	return batch, errs
}

// Service fetches a feed document.
type Service interface {
	Fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error)
}

// Source loads one feed into the rss_<url> bucket.
type Source struct {
	svc     Service
	bucket  model.BucketRef
	feedURL string
}

func NewSource(svc Service, account model.MicroBlogKey, feedURL string) *Source {
	return &Source{
		svc:     svc,
		bucket:  model.BucketRef{Account: account, Name: model.RSSBucket(feedURL)},
		feedURL: feedURL,
	}
}

func (s *Source) Bucket() model.BucketRef           { return s.bucket }
func (s *Source) RefreshMode() timeline.RefreshMode { return timeline.RefreshReplace }

func (s *Source) Load(ctx context.Context, req timeline.Request) (*timeline.Response, error) {
	if req.Direction != timeline.Refresh {
		return timeline.EndOfStream(), nil
	}
	feed, err := s.svc.Fetch(ctx, s.feedURL)
	if err != nil {
		return nil, err
	}
	batch, errs := MapFeed(s.bucket.Account, s.bucket.Name, s.feedURL, feed)
	return &timeline.Response{Batch: batch, Errors: errs, EndOfStream: true}, nil
}
