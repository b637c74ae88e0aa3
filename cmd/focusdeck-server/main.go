package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/focusdeck/focusdeck/internal/capability"
	capabilityrepo "github.com/focusdeck/focusdeck/internal/capability/repositoryimpl"
	"github.com/focusdeck/focusdeck/internal/config"
	"github.com/focusdeck/focusdeck/internal/delegation"
	delegationrepo "github.com/focusdeck/focusdeck/internal/delegation/repositoryimpl"
	"github.com/focusdeck/focusdeck/internal/eventbus"
	"github.com/focusdeck/focusdeck/internal/journal"
	"github.com/focusdeck/focusdeck/internal/notification"
	"github.com/focusdeck/focusdeck/internal/roster"
	"github.com/focusdeck/focusdeck/internal/server"
	"github.com/focusdeck/focusdeck/internal/sqlite"
	subscriptionrepo "github.com/focusdeck/focusdeck/internal/subscription/repositoryimpl"
	"github.com/focusdeck/focusdeck/pkg/blob"
	"github.com/focusdeck/focusdeck/pkg/clog"
	"github.com/focusdeck/focusdeck/pkg/panicerr"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewHTTPTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Setup database
	db, err := sqlite.Open(env.DBEnv.Path)
	if err != nil {
		slog.Error("failed to open database", "path", env.DBEnv.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Setup event bus
	bus := eventbus.New()

	// Setup repositories
	capabilityRepo := capabilityrepo.NewSQLiteRepository(db.Conn())
	delegationRepo := delegationrepo.NewSQLiteRepository(db.Conn())
	subscriptionRepo := subscriptionrepo.NewSQLiteRepository(db.Conn())

	// Setup core services
	registry := capability.NewRegistry(capabilityRepo, bus)
	manager := delegation.NewManager(delegationRepo, registry, bus)

	// Setup push notification
	vapidEnv := config.VAPIDEnvFromEnv(env)
	sender := notification.NewSender(vapidEnv, subscriptionRepo)
	dispatcher := notification.NewDispatcher(bus, sender)

	// Setup servers
	capabilityServer := capability.NewServer(registry)
	delegationServer := delegation.NewServer(manager)
	notificationServer := notification.NewServer(vapidEnv, subscriptionRepo)

	srv := server.NewServer(env, capabilityServer, delegationServer, notificationServer)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Background workers run behind a panic guard so a crash in one of
	// them surfaces as a log line instead of killing the process.
	runGuarded := func(name string, fn func(context.Context) error) {
		go func() {
			if err := panicerr.SafeContext(fn)(ctx); err != nil {
				slog.Error(name+" exited", "error", err)
			}
		}()
	}

	// Setup event journal
	if env.JournalEnv.Enabled {
		var store blob.Store
		switch env.JournalEnv.Type {
		case "s3":
			store, err = blob.NewS3Store(ctx, env.JournalEnv.S3Bucket, env.JournalEnv.S3Prefix, env.JournalEnv.S3Region)
		default:
			store, err = blob.NewLocalStore(env.JournalEnv.BaseDir)
		}
		if err != nil {
			slog.Error("failed to create journal store", "error", err)
			os.Exit(1)
		}
		jnl := journal.New(bus, store)
		runGuarded("event journal", func(ctx context.Context) error {
			jnl.Start(ctx)
			return nil
		})
	}

	// Setup worker roster
	if env.RosterEnv.Path != "" {
		loader := roster.NewLoader(env.RosterEnv.Path, registry)
		if err := loader.Load(ctx); err != nil {
			slog.Error("failed to load roster", "path", env.RosterEnv.Path, "error", err)
			os.Exit(1)
		}
		runGuarded("roster watcher", loader.Watch)
	}

	runGuarded("notification dispatcher", func(ctx context.Context) error {
		dispatcher.Start(ctx)
		return nil
	})

	go func() {
		err := panicerr.SafeContext(srv.ListenAndServe)(ctx)
		if err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
