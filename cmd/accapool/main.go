package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/accapool/config"
	"github.com/alejandrodnm/accapool/internal/adapters/auth"
	"github.com/alejandrodnm/accapool/internal/adapters/httpapi"
	"github.com/alejandrodnm/accapool/internal/adapters/metrics"
	"github.com/alejandrodnm/accapool/internal/adapters/notify"
	"github.com/alejandrodnm/accapool/internal/adapters/storage"
	"github.com/alejandrodnm/accapool/internal/application/pool"
	"github.com/alejandrodnm/accapool/internal/ports"
	"github.com/gin-gonic/gin"
)

// flags son las opciones de línea de comandos.
type flags struct {
	configPath string
	verbose    bool
	logFormat  string
	board      string
	list       bool
	season     string
	token      string
	operator   bool
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "config/config.yaml", "path to config file")
	flag.BoolVar(&f.verbose, "verbose", false, "set log level to debug")
	flag.StringVar(&f.logFormat, "format", "", "log format: text|json (overrides config)")
	flag.StringVar(&f.board, "board", "", "print the board of a pool and exit")
	flag.BoolVar(&f.list, "list", false, "print all pools and exit")
	flag.StringVar(&f.season, "season", "", "season filter for -list")
	flag.StringVar(&f.token, "token", "", "issue a token for this participant and exit")
	flag.BoolVar(&f.operator, "operator", false, "issue the -token with operator role")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, f)
	cancel()
	if err != nil {
		slog.Error("accapool exited with error", "err", err)
		os.Exit(1)
	}
}

// run arma las dependencias y ejecuta el modo pedido. Todos los recursos se
// cierran con defer antes de volver, también en error.
func run(ctx context.Context, f flags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("load config %q: %w", f.configPath, err)
	}

	if f.verbose {
		cfg.Log.Level = "debug"
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	setupLogger(cfg.Log)

	if f.token != "" {
		return runIssueToken(cfg, f.token, f.operator)
	}

	store, err := storage.Open(ctx, storage.Driver(cfg.Storage.Driver), cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open storage (%s): %w", cfg.Storage.Driver, err)
	}
	defer store.Close()

	console := notify.NewConsole()

	if f.list || f.board != "" {
		svc := pool.New(poolConfig(cfg), store, nil)
		if f.list {
			return runList(ctx, svc, console, f.season)
		}
		return runBoard(ctx, svc, console, f.board)
	}

	slog.Info("accapool starting",
		"config", f.configPath,
		"addr", cfg.Server.Addr,
		"driver", cfg.Storage.Driver,
		"metrics", cfg.Metrics.Enabled,
	)

	sinks := []ports.Notifier{notify.NewActivity(store)}
	if cfg.Notify.Console {
		sinks = append(sinks, console)
	}
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.WebhookRate, 10*time.Second))
	}
	dispatcher := notify.NewDispatcher(cfg.Notify.QueueSize, cfg.Notify.Workers, sinks...)
	defer func() {
		dispatcher.Close()
		if n := dispatcher.Dropped(); n > 0 {
			slog.Warn("events dropped on full queue", "count", n)
		}
	}()

	var opts []pool.Option
	deps := httpapi.Deps{Activity: store}
	if cfg.Metrics.Enabled {
		rec := metrics.New(metrics.WithNamespace(cfg.Metrics.Namespace))
		opts = append(opts, pool.WithMetrics(rec))
		deps.Metrics = rec
		deps.MetricsHandler = rec.Handler()
	}
	deps.Service = pool.New(poolConfig(cfg), store, dispatcher, opts...)

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.TokenTTL())
	if err != nil {
		return fmt.Errorf("set up auth: %w", err)
	}
	deps.Tokens = issuer

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(httpapi.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RatePerSec:     cfg.Server.RatePerSec,
		RateBurst:      cfg.Server.RateBurst,
	}, deps)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, srv, cfg.ShutdownTimeout())
}

// serve atiende hasta que ctx se cancela o el listener falla, y cierra ordenadamente.
func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "err", err)
	}

	slog.Info("accapool stopped cleanly")
	return nil
}

func poolConfig(cfg *config.Config) pool.Config {
	return pool.Config{
		DefaultBuyin:       cfg.DefaultBuyin(),
		DefaultLegs:        cfg.Pool.DefaultLegs,
		DefaultWinningLegs: cfg.Pool.DefaultWinningLegs,
		SubmissionWindow:   cfg.SubmissionWindow(),
		VotingWindow:       cfg.VotingWindow(),
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
