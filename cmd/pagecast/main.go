package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/pagecast/pkg/browser"
	"github.com/odvcencio/pagecast/pkg/browser/adapters/cdp"
	"github.com/odvcencio/pagecast/pkg/config"
	"github.com/odvcencio/pagecast/pkg/logging"
	"github.com/odvcencio/pagecast/pkg/server"
	"github.com/odvcencio/pagecast/pkg/stream"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configPath  string
		bindAddress string
		initialURL  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to pagecast.yaml")
	flag.StringVar(&bindAddress, "bind", "", "override server bind address")
	flag.StringVar(&initialURL, "url", "", "override initial page URL")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("pagecast %s (%s, built %s)\n", version, commit, buildDate)
		return
	}

	if err := run(configPath, bindAddress, initialURL); err != nil {
		fmt.Fprintf(os.Stderr, "pagecast: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, bindAddress, initialURL string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if bindAddress != "" {
		cfg.Server.BindAddress = bindAddress
	}
	if initialURL != "" {
		cfg.Browser.InitialURL = initialURL
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	primaryRT, err := cdp.NewRuntime(cdp.Config{
		ExecPath:       cfg.Browser.ExecPath,
		Headless:       true,
		ConnectTimeout: cfg.Browser.ConnectTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating browser runtime: %w", err)
	}

	var mirrorRT browser.Runtime
	if cfg.Browser.EnableMirror {
		rt, err := cdp.NewRuntime(cdp.Config{
			ExecPath:       cfg.Browser.ExecPath,
			Headless:       false,
			ConnectTimeout: cfg.Browser.ConnectTimeout,
		}, logger)
		if err != nil {
			logger.Warn(logging.CategorySession, "mirror_runtime_failed", "mirror runtime unavailable", map[string]any{"error": err.Error()})
		} else {
			mirrorRT = rt
		}
	}

	registry := stream.NewRegistry()
	broadcaster := stream.NewBroadcaster(registry, logger)
	session := stream.NewSession(primaryRT, mirrorRT, registry, broadcaster, stream.SessionConfig{
		InitialURL: cfg.Browser.InitialURL,
		Viewport: browser.Viewport{
			Width:  cfg.Browser.ViewportWidth,
			Height: cfg.Browser.ViewportHeight,
		},
		JPEGQuality:   cfg.Browser.JPEGQuality,
		CaptureFPS:    cfg.Capture.FPS,
		IdlePoll:      cfg.Capture.IdlePoll,
		RetryInterval: cfg.Capture.RetryInterval,
	}, logger)

	if err := session.Start(ctx); err != nil {
		logger.Warn(logging.CategorySession, "session_degraded", "starting without a browser page", map[string]any{"error": err.Error()})
	}
	defer session.Stop()

	srv := server.New(server.Config{
		BindAddress:    cfg.Server.BindAddress,
		StaticDir:      cfg.Server.StaticDir,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		EnableMetrics:  cfg.Server.EnableMetrics,
	}, registry, session, logger)

	logger.Info(logging.CategoryServer, "starting", "pagecast starting", map[string]any{
		"version": version,
		"bind":    cfg.Server.BindAddress,
		"url":     cfg.Browser.InitialURL,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	return g.Wait()
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func buildLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	var logger *logging.Logger
	if cfg.File != "" {
		l, err := logging.NewFileLogger(os.Stderr, cfg.File)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		logger = l
	} else {
		logger = logging.NewLogger(os.Stderr)
	}
	if cfg.Level != "" {
		logger.SetMinLevel(logging.Level(cfg.Level))
	}
	return logger, nil
}
