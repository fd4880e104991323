package logger

// Config holds configuration for the logger.
type Config struct {
	// Level is the minimum level written (debug, info, warn, error).
	Level string `mapstructure:"level" default:"info" validate:"oneof=debug info warn error"`
	// Format is the encoder used for log lines (json, console).
	Format string `mapstructure:"format" default:"json" validate:"oneof=json console"`
	// Output is where lines are written: stderr, stdout or a file path.
	Output string `mapstructure:"output" default:"stderr"`
}
