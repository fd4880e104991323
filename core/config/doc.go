// Package config loads the application configuration.
//
// Values come from environment variables, optionally seeded from a .env
// file via godotenv, and are read through Viper. Every section declares its
// keys with mapstructure tags, its defaults with default tags and its
// constraints with validate tags; LoadConfig applies all three.
//
// # Sections
//
//   - Server: listen port, API key, shutdown budget (SERVER_*)
//   - Database: driver and connection settings (DATABASE_*)
//   - Storage: MinIO/S3 bucket for snapshots (STORAGE_*)
//   - Log: level, encoding and output (LOG_*)
//   - Timeline: page size and snapshot limit (TIMELINE_*)
//   - Notify: optional Redis relay (NOTIFY_*)
//   - Snapshot: export batch size and retention (SNAPSHOT_*)
//   - RSS: reader account and followed feeds (RSS_*)
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    return err
//	}
//	db, err := database.Connect(cfg.Database)
package config
