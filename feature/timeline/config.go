package timeline

// Config holds paging settings.
type Config struct {
	// PageSize is the number of items requested per load.
	PageSize int `mapstructure:"page_size" default:"20" validate:"gte=1,lte=200"`
	// SnapshotLimit caps the items returned by one read of a bucket.
	SnapshotLimit int `mapstructure:"snapshot_limit" default:"200" validate:"gte=1"`
}
