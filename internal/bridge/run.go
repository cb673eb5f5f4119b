package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/message-bridge/internal/config"
	"github.com/morezero/message-bridge/pkg/journal"
	"github.com/morezero/message-bridge/pkg/requesting"
	"github.com/morezero/message-bridge/pkg/transport"
)

const runLogPrefix = "bridge:run"

// SetupLogging installs the default slog text handler at the given level.
func SetupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

// Run starts the bridge, blocks until a shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", runLogPrefix, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	SetupLogging(cfg.LogLevel)

	slog.Info(fmt.Sprintf("%s - Starting %s", runLogPrefix, cfg.ServiceName))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Connect to NATS
	nc, err := transport.Connect(cfg.NATSURL, cfg.ServiceName, transport.ConnectOptions{})
	if err != nil {
		return fmt.Errorf("%s - failed to connect to NATS: %w", runLogPrefix, err)
	}

	// Step 2: Optional call journal
	var recorder *journal.Recorder
	var observer requesting.CompletionObserver
	closeJournal := func() {}
	if cfg.JournalEnabled() {
		var store journal.Store
		store, closeJournal, err = openJournal(ctx, cfg)
		if err != nil {
			nc.Close()
			return err
		}
		recorder = journal.NewRecorder(store, journal.RecorderOptions{})
		observer = recorder
	} else {
		slog.Info(fmt.Sprintf("%s - Call journal disabled (JOURNAL_DATABASE_URL and JOURNAL_SQLITE_PATH not set)", runLogPrefix))
	}

	// Step 3: Wire and start the bridge
	b, err := New(cfg, nc, observer)
	if err != nil {
		if recorder != nil {
			recorder.Close(ctx)
		}
		closeJournal()
		nc.Close()
		return err
	}
	b.Start()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", runLogPrefix, sig))

	// Graceful shutdown: the bridge first, so canceled requests still reach the journal.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := b.Shutdown(shutdownCtx); err != nil {
		slog.Warn(fmt.Sprintf("%s - bridge shutdown: %v", runLogPrefix, err))
	}
	if recorder != nil {
		if err := recorder.Close(shutdownCtx); err != nil {
			slog.Warn(fmt.Sprintf("%s - journal flush: %v", runLogPrefix, err))
		}
	}
	closeJournal()
	if err := nc.Drain(); err != nil {
		slog.Warn(fmt.Sprintf("%s - NATS drain: %v", runLogPrefix, err))
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", runLogPrefix))
	return nil
}

// openJournal opens the configured journal store and returns its release func.
func openJournal(ctx context.Context, cfg *config.Config) (journal.Store, func(), error) {
	if cfg.JournalSQLitePath != "" {
		store, err := journal.OpenSQLiteStore(ctx, cfg.JournalSQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("%s - failed to open journal file: %w", runLogPrefix, err)
		}
		slog.Info(fmt.Sprintf("%s - Journaling calls to %s", runLogPrefix, store.Path()))
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Warn(fmt.Sprintf("%s - journal close: %v", runLogPrefix, err))
			}
		}, nil
	}

	pool, err := journal.NewPool(ctx, cfg.JournalDatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%s - failed to connect to journal database: %w", runLogPrefix, err)
	}
	if cfg.RunMigrations {
		if err := migrate(ctx, pool, cfg.MigrationPath); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return journal.NewPgStore(pool), pool.Close, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool, migrationPath string) error {
	migrationSQL, err := journal.LoadMigrationFiles(migrationPath)
	if err != nil {
		return fmt.Errorf("%s - failed to load migrations: %w", runLogPrefix, err)
	}
	if err := journal.RunMigrations(ctx, pool, migrationSQL); err != nil {
		return fmt.Errorf("%s - failed to run migrations: %w", runLogPrefix, err)
	}
	return nil
}

// RunMigrate applies the journal migrations and exits.
func RunMigrate() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", runLogPrefix, err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	SetupLogging(cfg.LogLevel)

	ctx := context.Background()
	pool, err := journal.NewPool(ctx, cfg.JournalDatabaseURL)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to journal database: %w", runLogPrefix, err)
	}
	defer pool.Close()
	return migrate(ctx, pool, cfg.MigrationPath)
}
