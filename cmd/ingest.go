package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"timeline-cache/core/model"
	"timeline-cache/core/platform/bluesky"
	"timeline-cache/core/platform/mastodon"
	"timeline-cache/core/platform/misskey"
	"timeline-cache/core/reconcile"
	blueskyFeature "timeline-cache/feature/bluesky"
	mastodonFeature "timeline-cache/feature/mastodon"
	misskeyFeature "timeline-cache/feature/misskey"
	"timeline-cache/feature/rss"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Payload kinds accepted by ingest, per platform.
const (
	payloadStatuses      = "statuses"
	payloadNotifications = "notifications"
	payloadFeed          = "feed"
)

// ingestRequest describes one saved API response to merge.
type ingestRequest struct {
	Platform model.PlatformType
	Kind     string
	Account  model.MicroBlogKey
	Bucket   string
	FeedURL  string
}

// defaultBucket picks the bucket a payload lands in when none is given.
func (r ingestRequest) defaultBucket() string {
	switch {
	case r.Platform == model.PlatformRSS:
		return model.RSSBucket(r.FeedURL)
	case r.Kind == payloadNotifications:
		return model.NotificationBucket("all")
	default:
		return model.BucketHome
	}
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var v T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return v, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}

// decodeBatch maps a raw API response into a batch. Items that fail to map
// are reported in the returned slice and left out of the batch.
func decodeBatch(req ingestRequest, r io.Reader) (reconcile.Batch, []error, error) {
	if req.Bucket == "" {
		req.Bucket = req.defaultBucket()
	}

	switch fmt.Sprintf("%s/%s", req.Platform, req.Kind) {
	case "mastodon/statuses":
		items, err := decodeJSON[[]mastodon.Status](r)
		if err != nil {
			return reconcile.Batch{}, nil, err
		}
		batch, errs := mastodonFeature.MapStatuses(req.Account, req.Bucket, items)
		return batch, errs, nil
	case "mastodon/notifications":
		items, err := decodeJSON[[]mastodon.Notification](r)
		if err != nil {
			return reconcile.Batch{}, nil, err
		}
		batch, errs := mastodonFeature.MapNotifications(req.Account, req.Bucket, items)
		return batch, errs, nil
	case "misskey/statuses":
		items, err := decodeJSON[[]misskey.Note](r)
		if err != nil {
			return reconcile.Batch{}, nil, err
		}
		batch, errs := misskeyFeature.MapNotes(req.Account, req.Bucket, items)
		return batch, errs, nil
	case "misskey/notifications":
		items, err := decodeJSON[[]misskey.Notification](r)
		if err != nil {
			return reconcile.Batch{}, nil, err
		}
		batch, errs := misskeyFeature.MapNotifications(req.Account, req.Bucket, items)
		return batch, errs, nil
	case "bluesky/feed", "bluesky/statuses":
		page, err := decodeJSON[bluesky.FeedPage](r)
		if err != nil {
			return reconcile.Batch{}, nil, err
		}
		batch, errs := blueskyFeature.MapFeed(req.Account, req.Bucket, page.Feed)
		return batch, errs, nil
	case "bluesky/notifications":
		page, err := decodeJSON[bluesky.NotificationPage](r)
		if err != nil {
			return reconcile.Batch{}, nil, err
		}
		batch, errs := blueskyFeature.MapNotifications(req.Account, req.Bucket, page)
		return batch, errs, nil
	case "rss/feed":
		if req.FeedURL == "" {
			return reconcile.Batch{}, nil, fmt.Errorf("rss payloads need --feed-url")
		}
		feed, err := rss.Parse(r)
		if err != nil {
			return reconcile.Batch{}, nil, err
		}
		batch, errs := rss.MapFeed(req.Account, req.Bucket, req.FeedURL, feed)
		return batch, errs, nil
	default:
		return reconcile.Batch{}, nil, fmt.Errorf("unsupported payload %s/%s", req.Platform, req.Kind)
	}
}

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <platform> <kind> <file>",
	Short: "Merge a saved API response into the cache",
	Long: `Reads a JSON response saved from a platform API (or a feed document for rss),
maps it into the cache schema and merges it into a bucket of the account.

Kinds: statuses and notifications for mastodon, misskey and bluesky;
feed for bluesky and rss. Use "-" as file to read stdin.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rawAccount, _ := cmd.Flags().GetString("account")
		account, err := model.ParseKey(rawAccount)
		if err != nil {
			return err
		}
		req := ingestRequest{
			Platform: model.PlatformType(args[0]),
			Kind:     args[1],
			Account:  account,
		}
		req.Bucket, _ = cmd.Flags().GetString("bucket")
		req.FeedURL, _ = cmd.Flags().GetString("feed-url")
		replace, _ := cmd.Flags().GetBool("replace")
		if !req.Platform.IsValid() {
			return fmt.Errorf("unknown platform %q", args[0])
		}
		if req.Bucket == "" {
			req.Bucket = req.defaultBucket()
		}

		var in io.Reader = os.Stdin
		if args[2] != "-" {
			f, err := os.Open(args[2])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		batch, mapErrs, err := decodeBatch(req, in)
		if err != nil {
			return err
		}
		for _, e := range mapErrs {
			rt.log.Warn("Skipped item", zap.Error(e))
		}

		opts := reconcile.MergeOptions{}
		if replace {
			opts.ReplaceBucket = &model.BucketRef{Account: account, Name: req.Bucket}
		}
		summary, err := rt.engine.Merge(ctx, batch, opts)
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

func init() {
	RootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().String("account", "", "Account the payload was fetched by (id@host)")
	ingestCmd.Flags().String("bucket", "", "Target bucket, defaults by payload kind")
	ingestCmd.Flags().Bool("replace", false, "Replace the bucket's entries instead of merging")
	ingestCmd.Flags().String("feed-url", "", "URL of the feed for rss payloads")
	_ = ingestCmd.MarkFlagRequired("account")
}
