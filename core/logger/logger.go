package logger

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a zap logger from cfg. Debug level selects the development
// preset; an unknown level falls back to info.
func New(cfg *Config) (*zap.Logger, error) {
	var config zap.Config
	if cfg.Level == "debug" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)

	switch cfg.Format {
	case "console":
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.DisableStacktrace = true
	default:
		config.Encoding = "json"
	}
	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Output != "" {
		config.OutputPaths = []string{cfg.Output}
	}
	return config.Build()
}

// WithRayID returns a logger with the ray_id field set from the Fiber context.
func WithRayID(l *zap.Logger, c *fiber.Ctx) *zap.Logger {
	if rid, ok := c.Locals("ray_id").(string); ok && rid != "" {
		return l.With(zap.String("ray_id", rid))
	}
	return l
}

// ForBucket returns a logger scoped to one paging bucket of one account.
func ForBucket(l *zap.Logger, account, bucket string) *zap.Logger {
	return l.With(zap.String("account", account), zap.String("bucket", bucket))
}
