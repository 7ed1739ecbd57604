// Package bootstrap wires the compiled configuration into a running HTTP
// server: the upstream client pool, the proxy service, the audit logger,
// and the router, then owns the process's start/stop lifecycle.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/llmproxy/adapters/clock"
	apihttp "github.com/artpar/llmproxy/adapters/http"
	"github.com/artpar/llmproxy/adapters/httpclient"
	"github.com/artpar/llmproxy/adapters/metrics"
	"github.com/artpar/llmproxy/app"
	"github.com/artpar/llmproxy/config"
	"github.com/rs/zerolog"
)

// EnvLogLevel and EnvLogFormat configure the logger before the config file
// is loaded, since the logger must exist before the config file can even
// be opened. Once loaded, the config's logging.level and
// logging.format=console take precedence.
const (
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"
)

// App is the running process: the compiled config, the wired service, and
// the listening HTTP server.
type App struct {
	Logger     zerolog.Logger
	Built      *config.Built
	Metrics    *metrics.Collector
	HTTPServer *http.Server

	pool *httpclient.Pool
}

// New loads and compiles the configuration at path, wires every component,
// and returns a ready-to-Run App.
func New(path string) (*App, error) {
	logger := setupLoggerFromEnv()
	logger.Info().Str("config_path", path).Msg("loading configuration")

	raw, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	built, err := config.Build(raw)
	if err != nil {
		return nil, fmt.Errorf("build config: %w", err)
	}

	if built.Logging.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	if built.Logging.Level != "" {
		if level, perr := zerolog.ParseLevel(built.Logging.Level); perr == nil {
			logger = logger.Level(level)
		}
	}

	a := &App{Logger: logger, Built: built}

	if built.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	a.pool = httpclient.NewPool()
	upstream := httpclient.NewClient(a.pool)
	audit := apihttp.NewAuditLogger(logger)
	service := app.New(built.Routes, upstream, audit, clock.Real{})
	service.LogBodies = built.Logging.LogBodies

	proxyHandler := apihttp.NewProxyHandler(service, audit, a.Metrics)
	metricsPath := built.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	router := apihttp.NewRouter(proxyHandler, logger, apihttp.RouterConfig{
		Metrics:     a.Metrics,
		MetricsPath: metricsPath,
		ModelNames:  built.Routes.ModelNames,
	})

	host := built.Server.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := built.Server.Port
	if port == 0 {
		port = 8080
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	a.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming responses can run indefinitely
	}

	logger.Info().Str("addr", addr).Int("routes", len(built.Routes.ModelNames())).Msg("http server configured")
	return a, nil
}

// Run starts the HTTP server and blocks until an interrupt signal or a
// listener error, then shuts down gracefully.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the HTTP server and releases pooled upstream
// connections.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}
	if a.pool != nil {
		a.pool.CloseIdle()
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLoggerFromEnv() zerolog.Logger {
	levelStr := os.Getenv(EnvLogLevel)
	if levelStr == "" {
		levelStr = "info"
	}
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv(EnvLogFormat) == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
