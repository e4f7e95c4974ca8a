package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/activity"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/config"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/engine"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/eventbus"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/formstate"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/logging"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/nodestore"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/server"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/session"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/treedef"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default ./tbl.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := nodestore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening node store: %w", err)
	}
	defer store.Close()
	log.Info("node store ready", zap.String("dialect", store.Dialect()))

	var values formstate.Store = formstate.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := formstate.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		values = formstate.NewRedisStore(client, "", cfg.SessionMaxAge)
		log.Info("form values stored in redis")
	}

	activityStore := activity.NewSQLStore(store.DB(), store.Dialect())
	if err := activityStore.CreateTable(ctx); err != nil {
		return fmt.Errorf("creating activity table: %w", err)
	}

	bus := eventbus.New(cfg.EventBuffer, log.Named("eventbus"))
	bus.Subscribe("log", eventbus.NewLogConsumer(log.Named("event")))
	bus.Subscribe("activity", activity.NewIndexer(activityStore, log.Named("activity")))

	svc := engine.New(store, values, session.NewManager(cfg.SessionMaxAge, cfg.SessionIdleTimeout), engine.Options{
		Publisher:  bus,
		Activity:   activityStore,
		BatchLimit: cfg.BatchLimit,
		Logger:     log.Named("engine"),
	})
	if cfg.DuplicateTemplates {
		bus.Subscribe("duplicator", worker.NewDuplicator(store, bus, log.Named("duplicator")))
	}

	if cfg.TreeDir != "" {
		if err := seed(ctx, svc, cfg.TreeDir, log); err != nil {
			return err
		}
	}

	bus.Start(ctx)
	defer bus.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		svc.RunJanitor(gctx, cfg.CleanupInterval)
		return nil
	})
	g.Go(func() error {
		return server.Run(gctx, server.Config{
			Port:    cfg.Port,
			Service: svc,
			Logger:  log,
		})
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// seed imports every definition found in dir.
func seed(ctx context.Context, svc *engine.Service, dir string, log *zap.Logger) error {
	defs, err := treedef.LoadDir(dir)
	if err != nil {
		return fmt.Errorf("loading tree definitions: %w", err)
	}
	for _, def := range defs {
		n, err := svc.ImportTree(ctx, def.TreeID, def.Nodes)
		if err != nil {
			return fmt.Errorf("importing tree %s: %w", def.TreeID, err)
		}
		log.Info("tree seeded", zap.String("tree_id", def.TreeID), zap.Int("nodes", n))
	}
	return nil
}
