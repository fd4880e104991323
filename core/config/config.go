package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"timeline-cache/core/database"
	"timeline-cache/core/logger"
	"timeline-cache/core/notify"
	"timeline-cache/core/server"
	"timeline-cache/core/storage"
	"timeline-cache/feature/rss"
	"timeline-cache/feature/snapshot"
	"timeline-cache/feature/timeline"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the snapshot object storage.
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the cache database.
	Database database.Config `mapstructure:"database"`
	// Timeline holds paging settings.
	Timeline timeline.Config `mapstructure:"timeline"`
	// Notify holds the optional Redis relay for change events.
	Notify notify.Config `mapstructure:"notify"`
	// Snapshot holds export and rotation settings.
	Snapshot snapshot.Config `mapstructure:"snapshot"`
	// RSS lists the feeds the server follows.
	RSS rss.Config `mapstructure:"rss"`
}

// LoadConfig loads configuration from environment variables and the .env
// file in path, then validates it.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// A missing .env is normal in production.
	_ = godotenv.Overload(envPath)

	v := viper.New()
	bindValues(v, Config{}, "")

	// SERVER_PORT -> server.port
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the validate tags of every section.
func Validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", envName(fe.Namespace()), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// envName turns "Config.Database.Driver" into "DATABASE_DRIVER" using the
// mapstructure tags, so errors name the variable to fix.
func envName(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 0 && parts[0] == "Config" {
		parts = parts[1:]
	}
	t := reflect.TypeOf(Config{})
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		field, ok := t.FieldByName(p)
		if !ok {
			keys = append(keys, p)
			continue
		}
		keys = append(keys, field.Tag.Get("mapstructure"))
		t = field.Type
	}
	return strings.ToUpper(strings.Join(keys, "_"))
}

// bindValues walks the struct and registers every mapstructure key with its
// default tag, so AutomaticEnv can resolve nested keys.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Empty defaults still register the key.
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
