package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/adapters/redisrevocation"
	"github.com/goliatone/go-accounts/config"
	"github.com/goliatone/go-accounts/logging"
	"github.com/goliatone/go-accounts/notify"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config    *config.Config
	logger    *logging.ZerologLogger
	db        *bun.DB
	redis     *redis.Client
	repo      accounts.RepositoryManager
	lifecycle *accounts.Lifecycle
	srv       router.Server[*fiber.App]
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	app := &App{
		config: cfg,
		logger: logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Pretty),
	}

	if cfg.HTTP.Debug {
		redacted := *cfg
		redacted.Auth.SigningKey = "****"
		redacted.SMS.APISecret = "****"
		redacted.Mail.Password = "****"
		fmt.Println(print.MaybeHighlightJSON(redacted))
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		app.logger.Error("persistence setup failed", "error", err)
		os.Exit(1)
	}
	defer app.db.Close()

	if err := WithLifecycle(ctx, app); err != nil {
		app.logger.Error("service setup failed", "error", err)
		os.Exit(1)
	}

	WithHTTPServer(app)

	go func() {
		if err := app.srv.Serve(cfg.HTTP.Addr); err != nil {
			app.logger.Error("http server stopped", "error", err)
		}
	}()

	app.logger.Info("accountsd listening", "addr", cfg.HTTP.Addr)

	sig := WaitExitSignal()
	app.logger.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("http shutdown failed", "error", err)
	}

	if app.redis != nil {
		_ = app.redis.Close()
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	dbCfg := app.config.Database

	var (
		sqldb   *sql.DB
		err     error
		dialect string
	)

	if dbCfg.IsPostgres() {
		sqldb, err = sql.Open("pgx", dbCfg.DSN)
		dialect = "pgx"
	} else {
		sqldb, err = sql.Open(sqliteshim.ShimName, dbCfg.DSN)
		dialect = "sqlite3"
	}
	if err != nil {
		return err
	}

	if err := sqldb.PingContext(ctx); err != nil {
		return err
	}

	if err := accounts.Migrate(ctx, sqldb, dialect); err != nil {
		return err
	}

	if dbCfg.IsPostgres() {
		app.db = bun.NewDB(sqldb, pgdialect.New())
	} else {
		app.db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	app.repo = accounts.NewRepositoryManager(app.db)

	return nil
}

func WithLifecycle(ctx context.Context, app *App) error {
	cfg := app.config

	templates, err := notify.NewTemplates()
	if err != nil {
		return err
	}

	var mailer notify.Mailer
	if cfg.Mail.Enabled() {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
		})
	} else {
		mailer = notify.NewLogMailer(app.logger.With("mail"))
	}

	sms := notify.NewSMSClient(notify.SMSConfig{
		APIKey:    cfg.SMS.APIKey,
		APISecret: cfg.SMS.APISecret,
		From:      cfg.SMS.FromNumber,
		AppName:   cfg.App.Name,
		BaseURL:   cfg.SMS.BaseURL,
		Timeout:   cfg.SMS.Timeout,
	})

	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		FromAddress: cfg.Mail.From,
		FromName:    cfg.Mail.FromName,
		AppName:     cfg.App.Name,
		BaseURL:     cfg.App.URL,
	}, mailer, sms, templates).WithLogger(app.logger.With("notify"))

	provider := accounts.NewAccountProvider(app.repo).
		WithLogger(app.logger.With("provider"))

	tokens := accounts.NewTokenService(cfg.Auth, provider).
		WithLogger(app.logger.With("tokens"))

	if cfg.Redis.Enabled() {
		store, client := redisrevocation.NewFromOptions(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return fmt.Errorf("redis: %w", err)
		}
		app.redis = client
		tokens.WithRevocationStore(store)
	}

	broker := accounts.NewResetBroker(app.repo, dispatcher).
		WithBaseURL(cfg.App.URL).
		WithTTL(cfg.Auth.ResetTTL).
		WithLogger(app.logger.With("reset"))

	app.lifecycle = accounts.NewLifecycle(app.repo, dispatcher, tokens, broker).
		WithLogger(app.logger.With("accounts")).
		WithPhoneRegion(cfg.App.PhoneRegion).
		WithResetTTL(cfg.Auth.ResetTTL)

	return nil
}

func WithHTTPServer(app *App) {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: app.config.HTTP.Debug,
			StrictRouting:     false,
		}))
	})

	api := srv.Router()

	accounts.RegisterAccountRoutes(api,
		accounts.WithAccountService(app.lifecycle),
		accounts.WithControllerLogger(app.logger.With("http")),
		accounts.WithControllerDebug(app.config.HTTP.Debug),
	)

	app.srv = srv
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
