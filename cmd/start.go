package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"timeline-cache/core/loader"
	"timeline-cache/core/logger"
	"timeline-cache/core/middleware/auth"
	"timeline-cache/core/middleware/rayid"
	"timeline-cache/core/model"
	"timeline-cache/core/notify"
	"timeline-cache/core/storage"

	"timeline-cache/feature/integrity"
	"timeline-cache/feature/rss"
	"timeline-cache/feature/snapshot"
	"timeline-cache/feature/timeline"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the timeline cache server",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()
		zap.ReplaceGlobals(rt.log)
		logg := rt.log

		// Redis relay (optional)
		if rt.cfg.Notify.Enabled() {
			client := notify.NewRedisClient(rt.cfg.Notify)
			defer client.Close()
			bridge := notify.NewRedisBridge(client, rt.cfg.Notify.Channel, rt.broker, logg)
			if err := bridge.Start(ctx); err != nil {
				logg.Warn("Redis relay unavailable, events stay in-process", zap.Error(err))
			}
		}

		// Snapshot storage (optional)
		objects, err := storage.NewClient(rt.cfg.Storage)
		if err != nil {
			logg.Warn("Object storage unavailable, snapshots disabled", zap.Error(err))
		}

		tl := timeline.NewFeature(rt.engine, rt.broker, logg, rt.cfg.Timeline)
		if len(rt.cfg.RSS.Feeds) > 0 {
			reader, err := model.ParseKey(rt.cfg.RSS.Account)
			if err != nil {
				return err
			}
			fetcher := rss.NewHTTPFetcher(rt.cfg.RSS)
			for _, feed := range rt.cfg.RSS.Feeds {
				tl.Service().Register(rss.NewSource(fetcher, reader, feed))
			}
			logg.Info("Registered RSS feeds", zap.Int("count", len(rt.cfg.RSS.Feeds)))
		}

		mgr := loader.NewManager(logg)
		mgr.Register(tl)
		mgr.Register(integrity.NewFeature(rt.store, objects, rt.cfg.Storage, logg))
		mgr.Register(snapshot.NewFeature(objects, rt.cfg.Storage, rt.store, logg, rt.cfg.Snapshot))

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		// RayID must be first so every log line carries it.
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		app.Get("/health", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"status": "ok", "subscribers": rt.broker.Subscribers()})
		})

		app.Use(auth.New(auth.Config{ApiKey: rt.cfg.Server.ApiKey, Skip: []string{"/health"}}))
		if !rt.cfg.Server.RequiresAuth() {
			logg.Warn("API key not set, the HTTP API is unauthenticated")
		}

		if err := mgr.LoadAll(app); err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			logg.Info("Starting server", zap.String("address", rt.cfg.Server.Address()))
			errCh <- app.Listen(rt.cfg.Server.Address())
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logg.Info("Shutting down server...")
		return app.ShutdownWithTimeout(rt.cfg.Server.ShutdownTimeout())
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}

