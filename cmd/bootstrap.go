package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"timeline-cache/core/cache"
	"timeline-cache/core/config"
	"timeline-cache/core/database"
	"timeline-cache/core/logger"
	"timeline-cache/core/notify"
	"timeline-cache/core/reconcile"
	"timeline-cache/core/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// deps bundles what every command needs.
type deps struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *gorm.DB
	broker *notify.Broker
	store  *cache.Store
	engine *reconcile.Engine
}

// bootstrap loads the configuration, opens the cache database and migrates
// its schema.
func bootstrap(ctx context.Context) (*deps, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logg = logg.With(zap.String("driver", db.Dialector.Name()))

	broker := notify.NewBroker(logg)
	store := cache.New(db, broker, logg)
	if err := store.Migrate(ctx); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}

	return &deps{
		cfg:    cfg,
		log:    logg,
		db:     db,
		broker: broker,
		store:  store,
		engine: reconcile.NewEngine(store, logg),
	}, nil
}

func (r *deps) Close() {
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = r.log.Sync()
}

// confirmDestructiveAction prompts the user for confirmation unless yes is set.
func confirmDestructiveAction(yes bool) bool {
	if yes {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to confirm destructive actions: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(response) == "yes"
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// objectStorage returns the snapshot client, or an error explaining why none is available.
func (r *deps) objectStorage() (storage.Client, error) {
	client, err := storage.NewClient(r.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}
