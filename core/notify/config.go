package notify

// Config holds configuration for cross-process change notifications.
type Config struct {
	// RedisAddr enables the Redis bridge when set (host:port).
	RedisAddr string `mapstructure:"redis_addr" default:""`
	// RedisPassword authenticates against Redis.
	RedisPassword string `mapstructure:"redis_password" default:""`
	// RedisDB selects the Redis logical database.
	RedisDB int `mapstructure:"redis_db" default:"0" validate:"gte=0"`
	// Channel is the pub/sub channel events are relayed on.
	Channel string `mapstructure:"channel" default:"timeline-cache:events" validate:"required"`
}

// Enabled reports whether the Redis bridge should run.
func (c Config) Enabled() bool {
	return c.RedisAddr != ""
}
