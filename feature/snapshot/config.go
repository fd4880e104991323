package snapshot

// Config holds snapshot export settings.
type Config struct {
	// BatchSize is the number of status rows read per query while exporting.
	BatchSize int `mapstructure:"batch_size" default:"500" validate:"gte=1"`
	// Keep is how many snapshots per account survive rotation. Zero keeps all.
	Keep int `mapstructure:"keep" default:"5" validate:"gte=0"`
}
