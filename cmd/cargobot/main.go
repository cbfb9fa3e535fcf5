package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ulugbekdev/cargobot/bot"
	"github.com/ulugbekdev/cargobot/cache"
	coreconfig "github.com/ulugbekdev/cargobot/core/config"
	"github.com/ulugbekdev/cargobot/core/logger"
	tg "github.com/ulugbekdev/cargobot/core/telegram"
	"github.com/ulugbekdev/cargobot/health"
	"github.com/ulugbekdev/cargobot/store"
	"github.com/ulugbekdev/cargobot/store/filestore"
	"github.com/ulugbekdev/cargobot/store/sheetstore"
	"github.com/ulugbekdev/cargobot/store/sqlstore"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "cargobot:", err)
		os.Exit(1)
	}
}

func run() error {
	// Local development convenience; production sets real env vars.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := coreconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.InitLogger(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Shutdown() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := st.Init(initCtx); err != nil {
		return fmt.Errorf("store init: %w", err)
	}

	ch := cache.New(st)
	if err := ch.Reload(initCtx); err != nil {
		return fmt.Errorf("initial cache load: %w", err)
	}

	reload := time.Duration(cfg.Cache.ReloadSeconds) * time.Second
	go ch.Run(ctx, reload)

	hs := health.New(cfg.Health.Port)
	go func() {
		if err := hs.Run(ctx); err != nil {
			logger.HC.Error("health server stopped",
				slog.String("event", "serve"),
				slog.String("err", err.Error()),
			)
		}
	}()

	b := bot.New(cfg, st, ch)
	reg := b.Registry()

	logger.L.Info("starting bot",
		slog.String("component", "app"),
		slog.String("event", "start"),
		slog.String("backend", cfg.Store.Backend),
		slog.Int("admins", len(cfg.Telegram.AdminIDs)),
	)

	return tg.RunTelegram(ctx, tg.RunOptions{
		Config:      cfg,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(cfg, nil),
		Routes:      b.Routes(reg),
	})
}

// buildStore constructs the configured backend. The second return value,
// when non-nil, releases backend resources on shutdown.
func buildStore(ctx context.Context, cfg *coreconfig.Config) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case coreconfig.BackendSheets:
		creds, err := coreconfig.ParseServiceAccountJSON(cfg.Store.Sheets.Credentials)
		if err != nil {
			return nil, nil, fmt.Errorf("sheets credentials: %w", err)
		}
		s, err := sheetstore.New(ctx, cfg.Store.Sheets.Spreadsheet, creds)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil

	case coreconfig.BackendFile:
		return filestore.New(cfg.Store.File.Path), nil, nil

	case coreconfig.BackendSQL:
		s, err := sqlstore.Connect(cfg.Store.SQL.Driver, cfg.Store.SQL.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
