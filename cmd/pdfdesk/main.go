package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/jask/pdfdesk/internal/config"
	"github.com/jask/pdfdesk/internal/database"
	"github.com/jask/pdfdesk/internal/database/repository"
	"github.com/jask/pdfdesk/internal/extract"
	"github.com/jask/pdfdesk/internal/logging"
	"github.com/jask/pdfdesk/internal/pdftext"
	"github.com/jask/pdfdesk/internal/preview"
	"github.com/jask/pdfdesk/internal/server"
	"github.com/jask/pdfdesk/internal/tui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "pdfdesk",
		Usage: "read the text of PDF documents side by side in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a TOML config file",
				EnvVars: []string{"PDFDESK_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override log.level (debug, info, warn, error)",
			},
		},
		Before: func(c *cli.Context) error {
			if p := c.String("config"); p != "" {
				return os.Setenv("PDFDESK_CONFIG", p)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "open",
				Usage:     "open the viewer, optionally preloading files as one batch",
				ArgsUsage: "[files...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "server",
						Usage: "extraction server base URL (overrides server.url)",
					},
				},
				Action: runOpen,
			},
			{
				Name:  "serve",
				Usage: "run the /api/clean-pdf extraction server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "listen address (overrides server.listen)",
					},
					&cli.BoolFlag{
						Name:  "no-cache",
						Usage: "disable the extraction cache",
					},
					&cli.DurationFlag{
						Name:  "cache-ttl",
						Usage: "purge cached extractions older than this on start (0 keeps all)",
					},
				},
				Action: runServe,
			},
		},
		Action: runOpen,
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, nil
}

func runOpen(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("server") {
		cfg.Server.URL = c.String("server")
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client := extract.New(extract.Options{
		BaseURL:     cfg.Server.URL,
		Timeout:     cfg.Extract.Timeout,
		MaxInFlight: cfg.Extract.MaxInFlight,
		RateLimit:   cfg.Server.RateLimit,
		RateBurst:   cfg.Server.RateBurst,
		Logger:      logger.Named("extract"),
	})
	model := tui.New(c.Context, tui.Options{
		Extractor: client,
		Renderer:  preview.NewRenderer(cfg.Preview.MaxLines, cfg.Preview.Width),
		Logger:    logger.Named("tui"),
		NameWidth: cfg.UI.NameWidth,
		Paths:     c.Args().Slice(),
	})
	logger.Info("starting viewer", zap.String("server", cfg.Server.URL), zap.Int("preload", c.Args().Len()))

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(c.Context))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	listen := cfg.Server.Listen
	if c.IsSet("listen") {
		listen = c.String("listen")
	}

	logger, err := logging.New(cfg.Log.Level, "")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	opts := server.Options{
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		ExemptLoopback: cfg.Server.ExemptLoopback,
		Logger:         logger.Named("server"),
	}
	if cfg.Cache.Enabled && !c.Bool("no-cache") {
		repo, closeDB, err := openCache(c.Context, cfg.Cache.Path, c.Duration("cache-ttl"), logger)
		if err != nil {
			return err
		}
		defer closeDB()
		opts.Cache = repo
	}

	srv := server.New(pdftext.NewExtractor(), opts)
	return srv.ListenAndServe(c.Context, listen)
}

func openCache(ctx context.Context, path string, ttl time.Duration, logger *zap.Logger) (*repository.ExtractionRepo, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("mkdir cache dir: %w", err)
	}
	db, err := database.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}
	if err := database.RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate cache: %w", err)
	}
	repo := repository.NewExtractionRepo(db)
	if ttl > 0 {
		n, err := repo.Purge(ctx, time.Now().Add(-ttl))
		if err != nil {
			logger.Warn("cache purge failed", zap.Error(err))
		} else {
			logger.Info("cache purged", zap.Int64("removed", n), zap.Duration("ttl", ttl))
		}
	}
	count, err := repo.Count(ctx)
	if err == nil {
		logger.Info("extraction cache ready", zap.String("path", path), zap.Int("entries", count))
	}
	return repo, func() { _ = db.Close() }, nil
}
