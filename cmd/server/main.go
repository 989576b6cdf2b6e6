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

	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/tcpchat/internal/chat"
	"github.com/Tyrowin/tcpchat/internal/config"
	"github.com/Tyrowin/tcpchat/internal/server"
	"github.com/Tyrowin/tcpchat/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [host:port]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configPath, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting chat server",
		"version", version.Version,
		"commit", version.Commit,
		"addr", cfg.Server.Addr,
		"gateway_addr", cfg.Gateway.Addr,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("chat server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("chat server stopped")
}

// loadConfig builds the configuration from defaults, an optional file, the
// environment and finally the positional bind address.
func loadConfig(path string, args []string) (*config.Config, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("expected at most one address argument, got %d", len(args))
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadWithDefaults(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	if len(args) == 1 {
		cfg.Server.Addr = args[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := chat.NewRegistry(cfg.Rooms.Capacity)
	srv := server.New(registry, server.ConfigFrom(cfg), logger)

	var httpServer *http.Server
	if cfg.Gateway.Addr != "" {
		gw := server.NewGateway(srv, logger)
		httpServer = server.CreateServer(cfg.Gateway.Addr, gw.Routes())
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(cfg.Server.Addr); err != nil && !errors.Is(err, server.ErrServerClosed) {
			return fmt.Errorf("chat listener: %w", err)
		}
		return nil
	})

	if httpServer != nil {
		g.Go(func() error {
			logger.Info("gateway listening", "addr", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("gateway: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown requested")

		var errs []error
		if httpServer != nil {
			if err := server.ShutdownServer(httpServer, cfg.Server.ShutdownTimeout); err != nil {
				errs = append(errs, fmt.Errorf("gateway shutdown: %w", err))
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("chat shutdown: %w", err))
		}

		registry.Close()
		return errors.Join(errs...)
	})

	return g.Wait()
}
