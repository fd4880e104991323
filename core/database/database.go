package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the cache database selected by cfg.Driver and verifies it with a ping.
func Connect(cfg Config) (*gorm.DB, error) {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}

	dialector, err := dialect(cfg, timeout)
	if err != nil {
		return nil, err
	}

	// Suppress GORM logging for cleaner output in the main logger
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	switch {
	case cfg.Driver == DriverSQLite || cfg.Driver == "":
		// SQLite allows a single writer. One connection also keeps an
		// in-memory database alive and shared by every caller.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	default:
		maxOpen := cfg.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 20
		}
		sqlDB.SetMaxIdleConns(maxOpen / 2)
		sqlDB.SetMaxOpenConns(maxOpen)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func dialect(cfg Config, timeout int) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return sqlite.Open(SQLiteDSN(cfg.Path)), nil
	case DriverMySQL:
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		// Special characters in the password must be URL encoded.
		userInfo := url.UserPassword(cfg.User, cfg.Password).String()
		dsn := fmt.Sprintf("%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
			userInfo, cfg.Host, port, cfg.Name, timeout, timeout, timeout)
		return mysql.Open(dsn), nil
	case DriverPostgres:
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d TimeZone=UTC",
			cfg.Host, port, cfg.User, cfg.Password, cfg.Name, sslMode, timeout)
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// SQLiteDSN builds the DSN for a SQLite file. Files run in WAL mode with a busy
// timeout and immediate write transactions so concurrent merges queue instead of
// failing with SQLITE_BUSY. ":memory:" and "file:" URIs are passed through.
func SQLiteDSN(path string) string {
	if path == "" {
		path = "timeline.db"
	}
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	return path + "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
}
