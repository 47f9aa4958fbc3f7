package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maaaruch/tg-awards-bot/internal/admin"
	"github.com/maaaruch/tg-awards-bot/internal/api"
	"github.com/maaaruch/tg-awards-bot/internal/app"
	"github.com/maaaruch/tg-awards-bot/internal/cache"
	"github.com/maaaruch/tg-awards-bot/internal/config"
	"github.com/maaaruch/tg-awards-bot/internal/metrics"
	"github.com/maaaruch/tg-awards-bot/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("bot stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.DBDriver == config.DriverSQLite {
		if dir := filepath.Dir(cfg.DBDSN); dir != "." && dir != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
	}

	db, err := sql.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.DBDriver == config.DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := storage.New(db, cfg.DBDriver)
	if err := store.InitSchema(ctx); err != nil {
		return err
	}

	var winners cache.WinnersCache = store
	if cfg.CacheBackend == config.CacheRedis {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL, cache.DefaultWinnersKey)
		if err != nil {
			return err
		}
		defer rc.Close()
		winners = rc
	}

	m := metrics.New(prometheus.DefaultRegisterer, "awards")
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var auth *admin.Authenticator
	if cfg.AdminEnabled() {
		auth, err = admin.NewAuthenticator(cfg.AdminUsername, cfg.AdminPasswordHash)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("no admin account configured, /admin is disabled")
	}
	if cfg.AdminKey == "" {
		logger.Warn("ADMIN_KEY is empty, admin API calls will fail")
	}

	client := api.New(cfg.APIBaseURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		api.WithAdminKey(cfg.AdminKey),
		api.WithMetrics(m),
		api.WithLogger(logger),
	)

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return err
	}
	bot.Debug = cfg.Debug
	logger.Info("bot started", "username", bot.Self.UserName, "api", cfg.APIBaseURL, "link_mode", cfg.LinkMode)

	application := app.New(bot, store, client, app.Options{
		Auth:     auth,
		LinkMode: cfg.LinkMode,
		Cache:    winners,
		Metrics:  m,
		Logger:   logger,
	})
	application.Run(ctx)
	return nil
}

func serveMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()
	return srv
}
